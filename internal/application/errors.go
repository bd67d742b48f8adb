package application

import "errors"

// Validation kinds surfaced to clients in the error envelope.
const (
	KindEmailTaken   = "email_taken"
	KindInvalidEmail = "invalid_email"
	KindInvalidName  = "invalid_username"
	KindExpired      = "expired"
)

// ValidationError rejects caller input or an illegal state transition.
// Kind is a stable machine-readable code, Message the human-readable text.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrEmailTaken   = &ValidationError{Kind: KindEmailTaken, Message: "Email already in use"}
	ErrInvalidEmail = &ValidationError{Kind: KindInvalidEmail, Message: "Invalid email format"}
	ErrInvalidName  = &ValidationError{Kind: KindInvalidName, Message: "Invalid name"}
	ErrTokenExpired = &ValidationError{Kind: KindExpired, Message: "Verification token expired"}
)

// ErrNotFound reports that the referenced user does not exist.
var ErrNotFound = errors.New("user not found")

// StorageError wraps an unexpected backing-store fault. Op names the
// operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// wrapStorage passes expected domain errors through untouched and wraps
// everything else as a StorageError.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.Is(err, ErrNotFound) || errors.As(err, &verr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
