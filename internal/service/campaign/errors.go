package campaign

import "errors"

// Sentinel errors for the campaign lifecycle. Validation errors reject the
// request synchronously with no state mutated.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingTemplate   = errors.New("campaign has no template")
	ErrMissingSegments   = errors.New("campaign targets no segments")
	ErrNotEditable       = errors.New("campaign can only be edited while draft")
)
