package errors

import (
	stderrors "errors"
	"fmt"
)

// DomainError is the single error kind returned by the transfer core. Code is
// the stable outcome code surfaced to callers; Key names the catalog entry
// used to resolve a human readable message.
type DomainError struct {
	Code    int
	Key     string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fallbackMessage(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches any DomainError carrying the same code, so wrapped copies of a
// sentinel still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *DomainError) Wrap(err error) *DomainError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage returns a copy of e whose message overrides the catalog.
func (e *DomainError) WithMessage(msg string) *DomainError {
	cp := *e
	cp.Message = msg
	return &cp
}

// New builds an ad hoc DomainError for codes that come from configuration,
// such as a rule denial carrying its own code and message.
func New(code int, message string) *DomainError {
	return &DomainError{Code: code, Key: keyFor(code), Message: message}
}

// As extracts the DomainError from err's chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf maps err to its outcome code. nil is success; anything that is not
// a DomainError is a miscellaneous failure.
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeMiscellaneous
}
