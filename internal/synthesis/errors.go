package synthesis

import "errors"

var (
	errNoChoices = errors.New("synthesis: response has no choices")
	errNoMessage = errors.New("synthesis: choice has no message")
)
