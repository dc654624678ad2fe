package turn

import (
	"fmt"

	chatErrors "github.com/harunnryd/stackchat/internal/errors"

	"github.com/tidwall/gjson"
)

// RawTurn is the turn document exactly as the agent backend returned it.
type RawTurn struct {
	data  []byte
	doc   gjson.Result
	valid bool
}

func NewRawTurn(data []byte) *RawTurn {
	copied := append([]byte(nil), data...)
	raw := &RawTurn{data: copied}
	if gjson.ValidBytes(copied) {
		raw.doc = gjson.ParseBytes(copied)
		raw.valid = true
	}
	return raw
}

// Valid reports whether the document parsed as JSON.
func (r *RawTurn) Valid() bool {
	return r != nil && r.valid
}

// Get probes a gjson path on the document.
func (r *RawTurn) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return r.doc.Get(path)
}

func (r *RawTurn) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

// String returns the textual representation used by the id fallback.
func (r *RawTurn) String() string {
	if r == nil {
		return ""
	}
	return string(r.data)
}

// Steps decodes every step of the turn. On a malformed step it returns the
// steps decoded so far together with an extraction error.
func (r *RawTurn) Steps() ([]Step, error) {
	if !r.Valid() {
		return nil, errNotJSON
	}
	list, err := r.stepList()
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(list))
	for i, elem := range list {
		step, err := decodeStep(i, elem)
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

var errNotJSON = chatErrors.Extraction("turn document is not valid JSON")

func (r *RawTurn) stepList() ([]gjson.Result, error) {
	steps := r.Get("steps")
	if !steps.Exists() || steps.Type == gjson.Null {
		return nil, nil
	}
	if !steps.IsArray() {
		return nil, chatErrors.Extraction(fmt.Sprintf("turn steps is %s, not a list", kindOf(steps)))
	}
	return steps.Array(), nil
}
