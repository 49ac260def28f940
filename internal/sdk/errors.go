package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError describes a non-2xx (or success=false) answer from the storefront API.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storefront api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("storefront api: %d %s", e.Status, http.StatusText(e.Status))
}

// IsUnauthorized reports whether err is a 401 from the storefront API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the storefront API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message extracts the backend message from err, or returns fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
