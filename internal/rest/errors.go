package rest

import "fmt"

// ConnectionError is returned when the gateway could not be reached at all.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error connecting to MaticVigil API %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	URL          string
	RequestBody  string
	StatusCode   int
	ResponseBody string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("\nRequest URL: %s\nRequest body: %s\nResponse HTTP status: %d\nResponse body: %s",
		e.URL, e.RequestBody, e.StatusCode, e.ResponseBody)
}

// APIError is returned when the gateway answered but reported failure.
type APIError struct {
	HTTPError
}

func (e *APIError) Error() string {
	return "API call failed: " + e.HTTPError.Error()
}
