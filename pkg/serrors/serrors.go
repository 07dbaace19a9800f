package serrors

// Error is a stable, coded error suitable for cross-service matching.
// Code is machine-readable, Message is human-readable, DocURL optionally
// points at remediation docs.
type Error struct {
	Code    string
	Message string
	DocURL  string
}

func NewError(code, message, docURL string) *Error {
	return &Error{Code: code, Message: message, DocURL: docURL}
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
