package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindAuth      ErrorKind = "auth"
	KindMalformed ErrorKind = "malformed"
)

// errNoChoices is wrapped when the provider answers without any choice.
var errNoChoices = errors.New("response has no choices")

// ProviderError reports a failed call to the backing LLM. It is never retried.
type ProviderError struct {
	Op         string // "invoke" or "stream"
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s: %s error (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classify wraps an SDK error into a ProviderError.
func classify(op string, err error) *ProviderError {
	pe := &ProviderError{Op: op, Kind: KindTransport, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
	}
	if pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden {
		pe.Kind = KindAuth
	}
	return pe
}

func malformed(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Kind: KindMalformed, Err: err}
}
