package costs

import "errors"

var (
	// ErrBlankName is returned when a custom item name is empty or whitespace.
	ErrBlankName = errors.New("custom item name is blank")

	// ErrUnknownItem is returned when toggling an ID that is not in the catalog.
	ErrUnknownItem = errors.New("unknown catalog item")
)
