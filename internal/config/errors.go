package config

import "fmt"

// ParseError reports a config file that is not valid TOML.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying TOML error.
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a config field with an unusable value.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}
