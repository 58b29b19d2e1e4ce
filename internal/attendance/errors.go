package attendance

import "errors"

var (
	// ErrValidation is returned when roll or name is missing.
	ErrValidation = errors.New("roll number and name are required")
	// ErrExpired is returned when a QR code is past its expiry.
	ErrExpired = errors.New("qr code expired")
)

// DuplicateError reports that attendance for the scope already exists.
// Session is true when the browser session flag caught it before any query ran.
type DuplicateError struct {
	Roll    string
	Date    string
	Scope   Scope
	Session bool
}

func (e *DuplicateError) Error() string {
	if e.Session {
		return "attendance already marked for this subject/branch today"
	}
	return "attendance already marked"
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persist(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup)
}
