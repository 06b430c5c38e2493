package permalink

import "errors"

var (
	ErrConfiguration  = errors.New("permalink: invalid configuration")
	ErrNoSourceFields = errors.New("permalink: slug needs at least one source field")
	ErrUnknownScope   = errors.New("permalink: scope names neither an association nor a field")
	ErrUnknownType    = errors.New("permalink: unknown record type")
	ErrNotDeclared    = errors.New("permalink: record type has no slug declaration")
	ErrInvalidSchema  = errors.New("permalink: invalid schema")

	ErrStore          = errors.New("permalink: store operation failed")
	ErrBuilder        = errors.New("permalink: candidate builder failed")
	ErrEmptyCandidate = errors.New("permalink: candidate normalizes to an empty slug")
	ErrConflict       = errors.New("permalink: slug already claimed in scope")
	ErrNotFound       = errors.New("permalink: record not found")
)
