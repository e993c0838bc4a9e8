package activitypub

import (
	"fmt"
	"net/http"
)

// ActivityError is a rejection of an inbound activity, carrying the client
// status and a machine-readable reason for the error envelope. Anything else
// bubbling out of the dispatcher is a server-side failure.
type ActivityError struct {
	Status int
	Reason string
}

func (e *ActivityError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) *ActivityError {
	return &ActivityError{Status: http.StatusBadRequest, Reason: fmt.Sprintf(format, args...)}
}

func notFoundErrorf(format string, args ...any) *ActivityError {
	return &ActivityError{Status: http.StatusNotFound, Reason: fmt.Sprintf(format, args...)}
}

func signatureErrorf(format string, args ...any) *ActivityError {
	return &ActivityError{Status: http.StatusUnauthorized, Reason: fmt.Sprintf(format, args...)}
}

func goneError() *ActivityError {
	return &ActivityError{Status: http.StatusGone, Reason: "actor deleted upstream"}
}
