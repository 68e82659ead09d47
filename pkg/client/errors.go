package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches an APIError for a 401 or 403 response.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches an APIError for a 404 response.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFile is returned before uploading a file the document
	// service would reject.
	ErrUnsupportedFile = errors.New("unsupported file type: upload PDF, DOCX, DOC or TXT files")

	// ErrStreamClosed is returned by ChatStream.Next after Close.
	ErrStreamClosed = errors.New("chat stream closed")
)

// maxErrorBody caps how much of an error response body is read.
const maxErrorBody = 64 * 1024

// APIError is a non-2xx response from one of the platform services. The
// services are FastAPI apps, which report failures as {"detail": ...}.
type APIError struct {
	Service    Service
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s service: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s service: status %d: %s", e.Service, e.StatusCode, e.Detail)
}

// Is lets errors.Is match ErrUnauthorized and ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

// serverError reports whether the failure should count against the
// service's circuit breaker.
func (e *APIError) serverError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// newAPIError reads and closes resp.Body.
func newAPIError(svc Service, resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		Service:    svc,
		StatusCode: resp.StatusCode,
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil {
			apiErr.Detail = detail
		} else {
			// Validation errors carry a list of objects.
			apiErr.Detail = string(payload.Detail)
		}
		return apiErr
	}

	apiErr.Detail = strings.TrimSpace(string(body))
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
