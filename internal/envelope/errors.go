package envelope

import "errors"

var (
	ErrUnknownKind    = errors.New("unknown envelope kind")
	ErrMissingField   = errors.New("missing required field")
	ErrFieldTooLong   = errors.New("field too long")
	ErrWrongDirection = errors.New("kind not accepted in this direction")
)
