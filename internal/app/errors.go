package app

// ErrorKind separates the three failure families the UI treats differently.
type ErrorKind int

const (
	// KindTransport: connection-level failure (handshake, timeout, retries
	// exhausted). Cleared automatically on a successful (re)connect.
	KindTransport ErrorKind = iota
	// KindProtocol: a server-reported error message, surfaced verbatim.
	KindProtocol
	// KindValidation: a malformed outbound intent, rejected before any
	// message reaches the transport.
	KindValidation
)

// SessionError is what the error feed carries; nil on the feed means
// "no active error".
type SessionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *SessionError) Error() string { return e.Message }

func (e *SessionError) Unwrap() error { return e.Cause }

func transportError(msg string, cause error) *SessionError {
	return &SessionError{Kind: KindTransport, Message: msg, Cause: cause}
}

func protocolError(msg string) *SessionError {
	return &SessionError{Kind: KindProtocol, Message: msg}
}

func validationError(cause error) *SessionError {
	return &SessionError{Kind: KindValidation, Message: cause.Error(), Cause: cause}
}
