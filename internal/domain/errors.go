package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrConnectorDisabled  = errors.New("connector is disabled")
	ErrPrerequisiteFailed = errors.New("prerequisite stage failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidIdentity    = errors.New("invalid entity identity")
	ErrInvalidPayload     = errors.New("invalid webhook payload")
)

// ProviderError is returned by connector clients for non-2xx responses
type ProviderError struct {
	Provider   ConnectorType
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.StatusCode, body)
}

// IsRetryable reports whether the request may succeed if repeated
func (e *ProviderError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuthFailure reports whether the provider rejected the credentials
func (e *ProviderError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AsProviderError unwraps err into a ProviderError when possible
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
