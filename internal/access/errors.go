package access

import "errors"

var (
	ErrAccessPointNotFound = errors.New("access point not found")
	ErrBuildingNotFound    = errors.New("building not found")
	ErrCodeNotFound        = errors.New("access code not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnauthorized        = errors.New("not permitted to manage this credential")
	ErrMasterPinRequired   = errors.New("a valid master pin is required to manage another user's pin")
	ErrOldPinRequired      = errors.New("current pin is required and must match")
	ErrInvalidPin          = errors.New("pin must be 4 to 8 digits")
	ErrInvalidWindow       = errors.New("expiry must be in the future and after the start of validity")
	ErrInvalidImage        = errors.New("invalid image payload")
)

// Reasons written to access logs and returned on verification results.
// Denials use a single generic reason so callers cannot probe which
// credential type came close to matching; the one exception is a face
// hash match whose owner has no access to the building, which is kept
// distinct for audit clarity.
const (
	ReasonGranted          = "granted"
	ReasonDenied           = "Invalid or expired"
	ReasonNoBuildingAccess = "user has no access to this building"
)
