package event

import "errors"

var (
	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("event: nil handler")

	// ErrInvalidTopic is returned for empty or malformed topic patterns.
	ErrInvalidTopic = errors.New("event: invalid topic")

	// ErrBusClosed is returned when publishing on a closed bus.
	ErrBusClosed = errors.New("event: bus closed")
)
