package dispatch

import "errors"

// Sentinel errors for dispatch operations.
var (
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrNoIdleClients  = errors.New("no idle clients")
	ErrDeliveryFailed = errors.New("delivery to client failed")
	ErrTimeout        = errors.New("timeout waiting for images")
	ErrClientLost     = errors.New("client lost before task finished")
)
