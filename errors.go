package goRelay

import "errors"

var (
	// ErrAdmissionRejected is the parent of every handshake rejection.
	ErrAdmissionRejected = errors.New("admission rejected")
	// ErrOriginNotAllowed is returned when the Origin header is not allow-listed.
	ErrOriginNotAllowed = errors.New("origin not allowed")
	// ErrCredentialRejected is returned when the handshake credential is missing or invalid.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrHandshakeRateLimited is returned when the remote address exceeded its handshake budget.
	ErrHandshakeRateLimited = errors.New("handshake rate limited")

	// ErrProtocolMalformed marks inbound control frames that were dropped.
	ErrProtocolMalformed = errors.New("malformed protocol message")
	// ErrStaleSession marks sessions evicted because their credential expired.
	ErrStaleSession = errors.New("stale session")
	// ErrTransport marks per-recipient send failures.
	ErrTransport = errors.New("transport error")

	// ErrStartup wraps every failure that prevents the bridge from serving.
	ErrStartup = errors.New("startup failed")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("bridge already started")
	// ErrBridgeClosed is returned by Start after Shutdown.
	ErrBridgeClosed = errors.New("bridge closed")
)

// admissionError keeps the specific reason and the parent sentinel reachable
// through errors.Is.
type admissionError struct {
	reason error
	detail error
}

func (e *admissionError) Error() string {
	if e.detail != nil {
		return ErrAdmissionRejected.Error() + ": " + e.reason.Error() + ": " + e.detail.Error()
	}
	return ErrAdmissionRejected.Error() + ": " + e.reason.Error()
}

func (e *admissionError) Unwrap() []error {
	out := []error{ErrAdmissionRejected, e.reason}
	if e.detail != nil {
		out = append(out, e.detail)
	}
	return out
}

func rejectAdmission(reason, detail error) error {
	return &admissionError{reason: reason, detail: detail}
}
