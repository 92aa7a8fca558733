package abi

import "fmt"

// InvalidCallError is returned when a call fails the existence or arity check.
type InvalidCallError struct {
	Method  string
	Code    int
	Message string
}

func (e *InvalidCallError) Error() string {
	return fmt.Sprintf("invalid call to %s (code %d): %s", e.Method, e.Code, e.Message)
}

// ConversionError carries every argument of a call that failed coercion.
type ConversionError struct {
	Method string
	Errors *ConversionErrors
}

func (e *ConversionError) Error() string {
	details, err := e.Errors.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("invalid arguments for %s", e.Method)
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Method, details)
}

// CoerceParams validates named arguments for method and coerces every one of
// them, in declaration order. Structural failures are returned as an
// *InvalidCallError; per-argument failures are all collected in the returned
// ConversionErrors.
func (r *Registry) CoerceParams(method string, params map[string]any) ([]any, *ConversionErrors, error) {
	if ok, code, msg := r.IsValidParamDict(method, params); !ok {
		return nil, nil, &InvalidCallError{Method: method, Code: code, Message: msg}
	}
	rec, _ := r.Function(method)
	errs := &ConversionErrors{}
	return coerceNamed(rec.ParamNames, rec.ParamTypes, params, errs), errs, nil
}

// CoerceArgs is CoerceParams for positional arguments.
func (r *Registry) CoerceArgs(method string, args []any) ([]any, *ConversionErrors, error) {
	if ok, code, msg := r.IsValid(method, args); !ok {
		return nil, nil, &InvalidCallError{Method: method, Code: code, Message: msg}
	}
	rec, _ := r.Function(method)
	errs := &ConversionErrors{}
	out := make([]any, len(args))
	for i, arg := range args {
		out[i], _ = Coerce(rec.ParamNames[i], rec.ParamTypes[i], arg, errs)
	}
	return out, errs, nil
}

// OrderConstructorArgs arranges named constructor inputs in declaration order
// and validates each of them. The caller's values are returned unchanged; the
// ConversionErrors report every input that would not encode.
func (r *Registry) OrderConstructorArgs(inputs map[string]any) ([]any, *ConversionErrors, error) {
	errs := &ConversionErrors{}
	c := r.Constructor()
	if c == nil {
		if len(inputs) > 0 {
			return nil, nil, fmt.Errorf("contract has no constructor but %d inputs were supplied", len(inputs))
		}
		return []any{}, errs, nil
	}
	if len(c.InputNames) != len(inputs) {
		return nil, nil, fmt.Errorf("constructor expects %d inputs, got %d", len(c.InputNames), len(inputs))
	}

	coerceNamed(c.InputNames, c.InputTypes, inputs, errs)
	ordered := make([]any, len(c.InputNames))
	for i, name := range c.InputNames {
		ordered[i] = inputs[name]
	}
	return ordered, errs, nil
}

func coerceNamed(names, types []string, params map[string]any, errs *ConversionErrors) []any {
	out := make([]any, len(names))
	for i, name := range names {
		v, ok := params[name]
		if !ok {
			errs.Set(name, fmt.Sprintf("Expected type: %s. Argument not supplied", types[i]))
			continue
		}
		out[i], _ = Coerce(name, types[i], v, errs)
	}
	return out
}
