package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Payload models the top-level structure of the upstream shop API response.
// Sections are kept raw so that a malformed entry for an untracked shop
// cannot spoil the whole payload.
type Payload struct {
	Data map[string]json.RawMessage `json:"data"`
}

var errNullSection = errors.New("section is null")

// Section decodes the section for key. The boolean is false when the key is
// absent from the payload.
func (p *Payload) Section(key ShopKey) (ShopSection, bool, error) {
	raw, ok := p.Data[string(key)]
	if !ok {
		return ShopSection{}, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ShopSection{}, true, &ShapeError{Path: "data." + string(key), Err: errNullSection}
	}
	var section ShopSection
	if err := json.Unmarshal(raw, &section); err != nil {
		return ShopSection{}, true, &ShapeError{Path: "data." + string(key), Err: err}
	}
	return section, true, nil
}

// ShapeError reports a payload that does not match the expected structure.
type ShapeError struct {
	Path string
	Err  error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected payload shape at %s: %v", e.Path, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }
