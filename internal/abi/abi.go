package abi

import (
	"encoding/json"
	"fmt"
)

// Entry kinds found in an interface description.
const (
	KindFunction    = "function"
	KindEvent       = "event"
	KindConstructor = "constructor"
)

// MutabilityView is the only state mutability classified as a getter.
const MutabilityView = "view"

// Field is a named, typed parameter. Structured ("tuple") fields carry their
// members in Components.
type Field struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	InternalType string  `json:"internalType,omitempty"`
	Indexed      bool    `json:"indexed,omitempty"`
	Components   []Field `json:"components,omitempty"`
}

// Entry is one element of a contract interface description.
type Entry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name,omitempty"`
	Inputs          []Field `json:"inputs"`
	Outputs         []Field `json:"outputs,omitempty"`
	StateMutability string  `json:"stateMutability,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
}

// ParseEntries decodes a JSON interface description.
func ParseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing interface description: %w", err)
	}
	return entries, nil
}
