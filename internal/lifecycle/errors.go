package lifecycle

import "errors"

var (
	// ErrFieldNotFound is returned when a field id does not exist on the
	// target collection.
	ErrFieldNotFound = errors.New("field not found")

	// ErrFieldConflict is returned when a field with the derived slug
	// already exists on the target collection.
	ErrFieldConflict = errors.New("field slug already exists")

	// ErrAlreadyTrashed is returned when trashing a field that is already
	// trashed.
	ErrAlreadyTrashed = errors.New("field is already trashed")

	// ErrNotTrashed is returned when restoring a field that is not trashed.
	ErrNotTrashed = errors.New("field is not trashed")

	// ErrSystemCollection is returned when a lifecycle mutation targets one
	// of the fixed system collections.
	ErrSystemCollection = errors.New("system collections cannot be modified")
)
