package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrValidation marks input that failed schema or cross-field checks.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock marks a movement that would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict marks a request clashing with existing state.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates a missing user identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserSafeMessage renders an error as text suitable for flash messages and form errors.
// Known domain errors keep their message; anything else is reported generically.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrIdempotencyConflict):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "Data tidak ditemukan"
	case errors.Is(err, ErrUnauthorized):
		return "Silakan masuk terlebih dahulu"
	default:
		return "Terjadi kesalahan, silakan coba lagi"
	}
}
