package domain

import "errors"

var (
	// ErrUnparsableFile means no format strategy produced a single record.
	ErrUnparsableFile = errors.New("could not parse file")

	// ErrDuplicate is returned by stores when a fingerprint already exists.
	ErrDuplicate = errors.New("duplicate transaction")

	ErrNotFound       = errors.New("not found")
	ErrCategoryInUse  = errors.New("category used in merchant rules")
	ErrCategoryExists = errors.New("category already exists")
	ErrInvalidInput   = errors.New("invalid input")
)
