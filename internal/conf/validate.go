// conf/validate.go
package conf

import (
	"fmt"
	"net"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// validateSettings validates the entire Settings struct, collecting every
// violation instead of stopping at the first one.
func validateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateEngineSettings(&settings.Engine); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateAPISettings(&settings.API); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateSessionStoreSettings(&settings.SessionStore); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateEngineSettings(e *EngineConfig) error {
	var errs []string

	switch e.SampleRate {
	case 44100, 48000, 88200, 96000, 192000:
	default:
		errs = append(errs, fmt.Sprintf("engine.samplerate: unusual sample rate %d, expected one of 44100/48000/88200/96000/192000", e.SampleRate))
	}

	if e.Channels < 1 || e.Channels > 8 {
		errs = append(errs, fmt.Sprintf("engine.channels: %d out of supported range [1,8]", e.Channels))
	}

	if e.BufferFrames < 32 || e.BufferFrames > 8192 {
		errs = append(errs, fmt.Sprintf("engine.bufferframes: %d out of supported range [32,8192]", e.BufferFrames))
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateAPISettings(a *APIConfig) error {
	if !a.Enabled {
		return nil
	}

	var errs []string

	if _, _, err := net.SplitHostPort(a.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("api.listen: invalid address %q: %v", a.Listen, err))
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateSessionStoreSettings(s *SessionStoreConfig) error {
	switch s.Driver {
	case "sqlite":
		if s.SQLite.Path == "" {
			return ValidationError{Errors: []string{"sessionstore.sqlite.path: required when driver is sqlite"}}
		}
	case "mysql":
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			return ValidationError{Errors: []string{"sessionstore.mysql: host and database are required when driver is mysql"}}
		}
	default:
		return ValidationError{Errors: []string{fmt.Sprintf("sessionstore.driver: unknown driver %q", s.Driver)}}
	}
	return nil
}
