package config

import "errors"

// Errors returned while loading a configuration document.
var (
	// ErrConfigRead is returned when the file is missing or unreadable.
	ErrConfigRead = errors.New("config: read failed")

	// ErrConfigParse is returned when the file is not a well-formed document.
	ErrConfigParse = errors.New("config: parse failed")

	// ErrConfigValidation is returned when a parsed document is rejected.
	// It always wraps one of the more specific errors below.
	ErrConfigValidation = errors.New("config: validation failed")
)

// Specific validation failures, wrapped by ErrConfigValidation.
var (
	ErrMissingMQTTSection = errors.New("configuration is missing mqtt section")
	ErrMissingBroker      = errors.New("configuration missing broker in mqtt section")
	ErrInvalidPort        = errors.New("invalid port supplied for MQTT")
	ErrInvalidField       = errors.New("invalid value in mqtt section")
	ErrRejected           = errors.New("configuration rejected by service")
)
