package arcgis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrServiceError matches any error reported by an ArcGIS service in its
// response body, as opposed to transport failures.
var ErrServiceError = errors.New("arcgis service error")

// ServiceError is the {"error": {...}} object ArcGIS returns, often with
// HTTP 200.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("arcgis error %d: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// Is makes errors.Is(err, ErrServiceError) true for every ServiceError.
func (e *ServiceError) Is(target error) bool {
	return target == ErrServiceError
}

// InvalidToken reports whether the service rejected the credential.
func (e *ServiceError) InvalidToken() bool {
	return e.Code == 498 || e.Code == 499
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}
