package widget

import "errors"

var (
	// ErrInvalidPayload is returned when a mount payload is not valid JSON
	// or does not match the payload schema.
	ErrInvalidPayload = errors.New("widget: invalid payload")

	// ErrSearchConfig is returned when neither a search endpoint nor a
	// search callback can be resolved for a field.
	ErrSearchConfig = errors.New("widget: a search endpoint or search callback has to be set")

	// ErrInvalidValue is returned when an initial value cannot be seeded.
	ErrInvalidValue = errors.New("widget: invalid value")

	// ErrInvalidOrder is returned when a reorder request does not contain
	// exactly the currently selected ids.
	ErrInvalidOrder = errors.New("widget: order does not match selection")

	// ErrNotSortable is returned when reordering a widget that has sorting
	// disabled or is not in multi-select mode.
	ErrNotSortable = errors.New("widget: sorting is disabled")

	// ErrNotMultiple is returned for multi-select operations on a
	// single-select widget.
	ErrNotMultiple = errors.New("widget: not a multi-select widget")

	// ErrClosed is returned by operations on a closed widget.
	ErrClosed = errors.New("widget: closed")
)
