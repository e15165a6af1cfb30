package expenses

import "errors"

var (
	// ErrNotFound is returned when a referenced user, category or record does not exist
	// (or is not visible to the caller).
	ErrNotFound = errors.New("not found")
	// ErrForbiddenCategory is returned when a record references a category the user may not use.
	ErrForbiddenCategory = errors.New("forbidden category")
	// ErrForbidden is returned when the caller may not act on an existing resource.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateName is returned when a user name is already taken.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrEmptyName is returned when a user or category name is blank.
	ErrEmptyName = errors.New("empty name")
	// ErrInvalidAmount is returned for negative amounts or ones that do not fit numeric(14,2).
	ErrInvalidAmount = errors.New("invalid amount")
)
