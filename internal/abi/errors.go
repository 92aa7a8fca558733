package abi

import (
	"encoding/json"
	"sort"
)

// ArrayError collects the failures of an array parameter, one message per
// failed element.
type ArrayError struct {
	Message       []string `json:"message"`
	FailedIndexes []int    `json:"failed_indexes"`
}

// ConversionErrors accumulates coercion failures across all parameters of a
// call. The zero value is ready to use.
type ConversionErrors struct {
	scalar map[string]string
	array  map[string]*ArrayError
}

// Set records the failure of a scalar parameter.
func (e *ConversionErrors) Set(param, msg string) {
	if e.scalar == nil {
		e.scalar = make(map[string]string)
	}
	e.scalar[param] = msg
}

// Append records the failure of element idx of an array parameter.
func (e *ConversionErrors) Append(param string, idx int, msg string) {
	if e.array == nil {
		e.array = make(map[string]*ArrayError)
	}
	ae, ok := e.array[param]
	if !ok {
		ae = &ArrayError{Message: []string{}, FailedIndexes: []int{}}
		e.array[param] = ae
	}
	ae.Message = append(ae.Message, msg)
	ae.FailedIndexes = append(ae.FailedIndexes, idx)
}

func (e *ConversionErrors) Scalar(param string) (string, bool) {
	msg, ok := e.scalar[param]
	return msg, ok
}

func (e *ConversionErrors) Array(param string) (*ArrayError, bool) {
	ae, ok := e.array[param]
	return ae, ok
}

// Params returns the names of all failed parameters, sorted.
func (e *ConversionErrors) Params() []string {
	params := make([]string, 0, e.Len())
	for p := range e.scalar {
		params = append(params, p)
	}
	for p := range e.array {
		if _, ok := e.scalar[p]; !ok {
			params = append(params, p)
		}
	}
	sort.Strings(params)
	return params
}

func (e *ConversionErrors) Len() int {
	if e == nil {
		return 0
	}
	return len(e.scalar) + len(e.array)
}

func (e *ConversionErrors) Empty() bool {
	return e.Len() == 0
}

// Err returns a *ConversionError for method when e holds any failure.
func (e *ConversionErrors) Err(method string) error {
	if e.Empty() {
		return nil
	}
	return &ConversionError{Method: method, Errors: e}
}

// MarshalJSON renders {param: "msg"} for scalars and
// {param: {"message": [...], "failed_indexes": [...]}} for arrays.
func (e *ConversionErrors) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, e.Len())
	if e == nil {
		return json.Marshal(out)
	}
	for p, msg := range e.scalar {
		out[p] = msg
	}
	for p, ae := range e.array {
		out[p] = ae
	}
	return json.Marshal(out)
}
