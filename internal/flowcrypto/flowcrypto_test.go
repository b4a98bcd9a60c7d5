package flowcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"
)

func generateKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return key, pemData
}

// sealRequest builds the vendor-side envelope: a fresh AES key wrapped with
// RSA-OAEP plus a GCM-sealed body.
func sealRequest(t *testing.T, pub *rsa.PublicKey, plaintext []byte) (flowDataB64, aesKeyB64, ivB64 string) {
	t.Helper()
	aesKey := make([]byte, 16)
	iv := make([]byte, 16)
	if _, err := rand.Read(aesKey); err != nil {
		t.Fatalf("random key: %v", err)
	}
	if _, err := rand.Read(iv); err != nil {
		t.Fatalf("random iv: %v", err)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		t.Fatalf("aes cipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		t.Fatalf("gcm: %v", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, aesKey, nil)
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}

	return base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(wrappedKey),
		base64.StdEncoding.EncodeToString(iv)
}

func TestLoadPrivateKeyPKCS8(t *testing.T) {
	key, pemData := generateKeyPEM(t)
	loaded, err := LoadPrivateKey(pemData, "")
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if loaded.N.Cmp(key.N) != 0 {
		t.Error("loaded key does not match the generated key")
	}
}

func TestLoadPrivateKeyPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if _, err := LoadPrivateKey(pemData, ""); err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
}

func TestLoadPrivateKeyGarbage(t *testing.T) {
	if _, err := LoadPrivateKey([]byte("not a key"), ""); err == nil {
		t.Error("expected error for non-PEM input")
	}
}

func TestDecryptRequestRoundTrip(t *testing.T) {
	key, _ := generateKeyPEM(t)
	want := []byte(`{"version":"3.0","action":"ping"}`)
	flowData, wrappedKey, iv := sealRequest(t, &key.PublicKey, want)

	data, aesKey, gotIV, err := DecryptRequest(flowData, wrappedKey, iv, key)
	if err != nil {
		t.Fatalf("DecryptRequest: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("plaintext = %q, want %q", data, want)
	}
	if len(aesKey) != 16 || len(gotIV) != 16 {
		t.Errorf("key/iv lengths = %d/%d", len(aesKey), len(gotIV))
	}
}

func TestDecryptRequestTamperedBody(t *testing.T) {
	key, _ := generateKeyPEM(t)
	flowData, wrappedKey, iv := sealRequest(t, &key.PublicKey, []byte("payload"))

	raw, _ := base64.StdEncoding.DecodeString(flowData)
	raw[0] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, _, _, err := DecryptRequest(tampered, wrappedKey, iv, key); err == nil {
		t.Error("expected authentication failure for tampered body")
	}
}

func TestDecryptRequestWrongKey(t *testing.T) {
	key, _ := generateKeyPEM(t)
	other, _ := generateKeyPEM(t)
	flowData, wrappedKey, iv := sealRequest(t, &key.PublicKey, []byte("payload"))

	if _, _, _, err := DecryptRequest(flowData, wrappedKey, iv, other); err == nil {
		t.Error("expected unwrap failure with the wrong private key")
	}
}

func TestEncryptResponseUsesInvertedIV(t *testing.T) {
	key, _ := generateKeyPEM(t)
	flowData, wrappedKey, ivB64 := sealRequest(t, &key.PublicKey, []byte("request"))

	_, aesKey, iv, err := DecryptRequest(flowData, wrappedKey, ivB64, key)
	if err != nil {
		t.Fatalf("DecryptRequest: %v", err)
	}

	response := []byte(`{"screen":"SUCCESS","data":{}}`)
	sealedB64, err := EncryptResponse(response, aesKey, iv)
	if err != nil {
		t.Fatalf("EncryptResponse: %v", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(sealedB64)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	flipped := make([]byte, len(iv))
	for i, b := range iv {
		flipped[i] = b ^ 0xFF
	}
	block, _ := aes.NewCipher(aesKey)
	gcm, _ := cipher.NewGCMWithNonceSize(block, len(iv))

	got, err := gcm.Open(nil, flipped, sealed, nil)
	if err != nil {
		t.Fatalf("response did not decrypt with the inverted IV: %v", err)
	}
	if !bytes.Equal(got, response) {
		t.Errorf("response plaintext = %q", got)
	}

	// The original IV must not decrypt the response.
	if _, err := gcm.Open(nil, iv, sealed, nil); err == nil {
		t.Error("response decrypted with the request IV")
	}
}

// sealMedia builds encrypted CDN media: AES-CBC with PKCS#7 padding, a
// truncated HMAC trailer and the metadata blob.
func sealMedia(t *testing.T, plaintext []byte) (EncryptionMetadata, []byte) {
	t.Helper()
	encryptionKey := make([]byte, 32)
	hmacKey := make([]byte, 32)
	iv := make([]byte, aes.BlockSize)
	rand.Read(encryptionKey)
	rand.Read(hmacKey)
	rand.Read(iv)

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		t.Fatalf("aes cipher: %v", err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	content := append(ciphertext, mac.Sum(nil)[:hmacTrailerSize]...)

	contentSum := sha256.Sum256(content)
	plainSum := sha256.Sum256(plaintext)

	meta := EncryptionMetadata{
		EncryptedHash: base64.StdEncoding.EncodeToString(contentSum[:]),
		HMACKey:       base64.StdEncoding.EncodeToString(hmacKey),
		IV:            base64.StdEncoding.EncodeToString(iv),
		PlaintextHash: base64.StdEncoding.EncodeToString(plainSum[:]),
		EncryptionKey: base64.StdEncoding.EncodeToString(encryptionKey),
	}
	return meta, content
}

func TestDecryptMediaContent(t *testing.T) {
	want := []byte("the original media bytes, longer than one block to cover CBC chaining")
	meta, content := sealMedia(t, want)

	got, err := DecryptMediaContent(meta, content)
	if err != nil {
		t.Fatalf("DecryptMediaContent: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("plaintext = %q, want %q", got, want)
	}
}

func TestDecryptMediaContentTampered(t *testing.T) {
	meta, content := sealMedia(t, []byte("media bytes"))

	tampered := append([]byte{}, content...)
	tampered[0] ^= 0x01
	if _, err := DecryptMediaContent(meta, tampered); err == nil {
		t.Error("expected hash failure for tampered ciphertext")
	}

	// Consistent ciphertext hash but broken HMAC key.
	badMeta := meta
	badMeta.HMACKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
	if _, err := DecryptMediaContent(badMeta, content); err == nil {
		t.Error("expected hmac failure with the wrong hmac key")
	}
}

func TestDecryptMediaContentTooShort(t *testing.T) {
	short := []byte("tiny")
	sum := sha256.Sum256(short)
	meta := EncryptionMetadata{
		EncryptedHash: base64.StdEncoding.EncodeToString(sum[:]),
		HMACKey:       base64.StdEncoding.EncodeToString(make([]byte, 32)),
		IV:            base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize)),
		PlaintextHash: base64.StdEncoding.EncodeToString(sum[:]),
		EncryptionKey: base64.StdEncoding.EncodeToString(make([]byte, 32)),
	}
	if _, err := DecryptMediaContent(meta, short); err == nil {
		t.Error("expected error for content shorter than the hmac trailer")
	}
}
