package domain

import "errors"

var (
	ErrItemNotFound         = errors.New("playlist item not found")
	ErrInvalidDirection     = errors.New("direction must be \"up\" or \"down\"")
	ErrInvalidDuration      = errors.New("duration out of range")
	ErrInvalidKind          = errors.New("unknown item kind")
	ErrInvalidPayload       = errors.New("invalid item payload")
	ErrEmptyPatch           = errors.New("no fields to update")
	ErrCapacityReached      = errors.New("playlist capacity reached")
	ErrOrderIndexTaken      = errors.New("order index already in use")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFileTooLarge         = errors.New("file exceeds upload limit")
	ErrUnauthorized         = errors.New("unauthorized")

	// ErrStoreUnavailable marks transient store failures. Callers may retry.
	ErrStoreUnavailable = errors.New("content store unavailable")

	// ErrReorderConflict means the swap was rejected because one of the two
	// rows changed after it was read. Nothing was written.
	ErrReorderConflict = errors.New("reorder conflicts with a concurrent change")

	// ErrPartialReorder means the swap could not be confirmed after it was
	// applied. Callers must re-read the list instead of trusting local state.
	ErrPartialReorder = errors.New("reorder partially applied")
)
