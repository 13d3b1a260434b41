package llm

import (
	"errors"
	"fmt"
)

var ErrNoJSONObject = errors.New("no JSON object found in model output")

// ModelInvocationError means the call to the model service itself failed
// (network, auth, quota, empty response). It is never retried here.
type ModelInvocationError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("%s model %s invocation failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// MalformedResponseError means the model answered but no usable JSON object
// could be extracted. Raw holds the full response for diagnosis.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("failed to parse model output: %v\nraw output:\n%s", e.Err, e.Raw)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
