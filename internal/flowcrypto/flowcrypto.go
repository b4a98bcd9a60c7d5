// Package flowcrypto implements the envelope encryption used by the
// WhatsApp Flows data-exchange extension and the CDN media decryption
// scheme.
//
// Flow requests carry an RSA-OAEP-wrapped AES key, a base64 IV, and an
// AES-GCM body whose last 16 bytes are the authentication tag. Responses
// are encrypted with the same AES key but a bit-inverted IV.
package flowcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// gcmTagSize is the AES-GCM authentication tag length appended to the body.
const gcmTagSize = 16

// hmacTrailerSize is the truncated HMAC length appended to CDN media.
const hmacTrailerSize = 10

// LoadPrivateKey parses a PEM-encoded RSA private key, decrypting it with
// the password when the block is encrypted (Meta's tooling produces
// DES-EDE3-CBC protected PKCS#1 keys).
func LoadPrivateKey(pemData []byte, password string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key data")
	}

	keyBytes := block.Bytes
	if x509.IsEncryptedPEMBlock(block) {
		decrypted, err := x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt private key: %w", err)
		}
		keyBytes = decrypted
	}

	if key, err := x509.ParsePKCS1PrivateKey(keyBytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// DecryptRequest unwraps and decrypts one Flow data-exchange request. It
// returns the plaintext body plus the AES key and IV needed to encrypt the
// response.
func DecryptRequest(encryptedFlowDataB64, encryptedAESKeyB64, initialVectorB64 string, privateKey *rsa.PrivateKey) (data, aesKey, iv []byte, err error) {
	flowData, err := base64.StdEncoding.DecodeString(encryptedFlowDataB64)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode flow data: %w", err)
	}
	iv, err = base64.StdEncoding.DecodeString(initialVectorB64)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode initial vector: %w", err)
	}
	encryptedAESKey, err := base64.StdEncoding.DecodeString(encryptedAESKeyB64)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode AES key: %w", err)
	}

	aesKey, err = rsa.DecryptOAEP(sha256.New(), nil, privateKey, encryptedAESKey, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to unwrap AES key: %w", err)
	}

	if len(flowData) < gcmTagSize {
		return nil, nil, nil, fmt.Errorf("flow data shorter than GCM tag")
	}
	gcm, err := newGCM(aesKey, len(iv))
	if err != nil {
		return nil, nil, nil, err
	}
	data, err = gcm.Open(nil, iv, flowData, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decrypt flow data: %w", err)
	}
	return data, aesKey, iv, nil
}

// EncryptResponse encrypts a response body with the request's AES key and
// the bit-inverted IV, returning the base64 envelope the vendor expects.
func EncryptResponse(response, aesKey, iv []byte) (string, error) {
	flipped := make([]byte, len(iv))
	for i, b := range iv {
		flipped[i] = b ^ 0xFF
	}

	gcm, err := newGCM(aesKey, len(iv))
	if err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, flipped, response, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func newGCM(aesKey []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build GCM: %w", err)
	}
	return gcm, nil
}

// EncryptionMetadata carries the per-file secrets the vendor attaches to
// encrypted CDN media.
type EncryptionMetadata struct {
	EncryptedHash string `json:"encrypted_hash"`
	HMACKey       string `json:"hmac_key"`
	IV            string `json:"iv"`
	PlaintextHash string `json:"plaintext_hash"`
	EncryptionKey string `json:"encryption_key"`
}

// DecryptMediaContent verifies and decrypts encrypted CDN media: SHA-256 of
// the ciphertext, a 10-byte HMAC-SHA256 trailer over IV plus ciphertext,
// AES-CBC with PKCS#7 padding, and a final plaintext hash check.
func DecryptMediaContent(meta EncryptionMetadata, content []byte) ([]byte, error) {
	encryptedHash, err := base64.StdEncoding.DecodeString(meta.EncryptedHash)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted hash: %w", err)
	}
	hmacKey, err := base64.StdEncoding.DecodeString(meta.HMACKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hmac key: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(meta.IV)
	if err != nil {
		return nil, fmt.Errorf("failed to decode iv: %w", err)
	}
	plaintextHash, err := base64.StdEncoding.DecodeString(meta.PlaintextHash)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plaintext hash: %w", err)
	}
	encryptionKey, err := base64.StdEncoding.DecodeString(meta.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}

	sum := sha256.Sum256(content)
	if !hmac.Equal(sum[:], encryptedHash) {
		return nil, fmt.Errorf("sha256 verification failed for encrypted content")
	}

	if len(content) < hmacTrailerSize {
		return nil, fmt.Errorf("media content shorter than hmac trailer")
	}
	ciphertext := content[:len(content)-hmacTrailerSize]
	providedMAC := content[len(content)-hmacTrailerSize:]

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	if !hmac.Equal(mac.Sum(nil)[:hmacTrailerSize], providedMAC) {
		return nil, fmt.Errorf("hmac validation failed for encrypted content")
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AES cipher: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not block-aligned")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = stripPKCS7(plaintext)
	if err != nil {
		return nil, err
	}

	plainSum := sha256.Sum256(plaintext)
	if !hmac.Equal(plainSum[:], plaintextHash) {
		return nil, fmt.Errorf("decrypted media hash validation failed")
	}
	return plaintext, nil
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid PKCS7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid PKCS7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
