package turn

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// TurnIDFields lists, in priority order, the fields that may carry a turn id.
var TurnIDFields = []string{"id", "turn_id", "identifier", "uuid", "turn_uuid"}

var embeddedID = regexp.MustCompile(`id=([^,\s]+)`)

// Probe returns the first present, non-empty field of doc as text.
func Probe(doc gjson.Result, fields ...string) (string, bool) {
	for _, field := range fields {
		if value, ok := present(doc.Get(field)); ok {
			return value, true
		}
	}
	return "", false
}

// ProbeText pulls an "id=<value>" pair out of a textual representation.
func ProbeText(text string) (string, bool) {
	if !strings.Contains(text, "id=") {
		return "", false
	}
	match := embeddedID.FindStringSubmatch(text)
	if len(match) < 2 {
		return "", false
	}
	value := strings.Trim(match[1], `'"`)
	if value == "" {
		return "", false
	}
	return value, true
}

func present(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.Null, gjson.False:
		return "", false
	case gjson.Number:
		if r.Num == 0 {
			return "", false
		}
		return r.Raw, true
	case gjson.String:
		if r.Str == "" {
			return "", false
		}
		return r.Str, true
	default:
		if !r.Exists() || r.Raw == "" || r.Raw == "{}" || r.Raw == "[]" {
			return "", false
		}
		return r.Raw, true
	}
}
