package hxselect

// SwapMode is an hx-swap strategy. See https://htmx.org/attributes/hx-swap/.
type SwapMode string

const (
	// SwapOuter replaces the whole target element. Default for actions.
	SwapOuter SwapMode = "outerHTML"
	// SwapInner replaces the target's children. The result list uses it.
	SwapInner SwapMode = "innerHTML"
)
