package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
)

// Trigger is the matching rule that selects a handler within a state:
// either a set of message kinds or a text pattern. Triggers are normalized
// when the state entry is registered, so malformed patterns fail fast
// instead of at dispatch time.
type Trigger struct {
	kinds   []models.MessageKind
	rawText string
	pattern *regexp.Regexp
}

// TriggerKinds builds a kind-based trigger. Duplicate kinds are removed at
// registration time.
func TriggerKinds(kinds ...models.MessageKind) Trigger {
	return Trigger{kinds: kinds}
}

// TriggerText builds a pattern-based trigger. A string beginning with "/"
// is treated as a command and anchored so "/echo extra text" matches
// trigger "/echo" but "/echonot" does not; any other string compiles as a
// general regular expression.
func TriggerText(expr string) Trigger {
	return Trigger{rawText: expr}
}

// normalize validates the trigger and compiles patterns. Called once by
// AddState.
func (t Trigger) normalize() (Trigger, error) {
	switch {
	case t.rawText != "":
		expr := t.rawText
		if strings.HasPrefix(expr, "/") {
			// Commands match the command word at the start of the message,
			// followed by whitespace or end of input.
			expr = "^" + regexp.QuoteMeta(expr) + `(\s|$)`
		}
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return Trigger{}, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
		}
		t.pattern = pattern
		return t, nil

	case len(t.kinds) > 0:
		seen := make(map[models.MessageKind]bool, len(t.kinds))
		deduped := make([]models.MessageKind, 0, len(t.kinds))
		for _, kind := range t.kinds {
			if seen[kind] {
				continue
			}
			seen[kind] = true
			deduped = append(deduped, kind)
		}
		t.kinds = deduped
		return t, nil

	default:
		return Trigger{}, fmt.Errorf("%w: trigger must carry kinds or a text pattern", ErrInvalidTrigger)
	}
}

// matches reports whether the trigger selects the given message. Kind
// triggers match on type membership; pattern triggers match the message's
// textual value. Messages without a textual value never match pattern
// triggers and vice versa.
func (t Trigger) matches(msg *models.Message) bool {
	if t.pattern != nil {
		value, ok := msg.TextValue()
		return ok && t.pattern.MatchString(value)
	}
	for _, kind := range t.kinds {
		if msg.Type == kind {
			return true
		}
	}
	return false
}
