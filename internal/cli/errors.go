package cli

import (
	"errors"
	"os"

	"github.com/roach88/arictl/internal/config"
	"github.com/roach88/arictl/internal/engine"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric        = "E001" // Unclassified error
	ErrCodeConfig         = "E002" // Config file failed validation
	ErrCodeNotFound       = "E003" // File or directory does not exist
	ErrCodeJournal        = "E004" // Journal database could not be used
	ErrCodeConnection     = "E005" // Transport or event feed could not be set up
	ErrCodeScenarioFailed = "E006" // One or more scenarios failed

	// Command outcomes
	ErrCodeTransport = "E101" // Command never reached the server
	ErrCodeRemote    = "E102" // Server answered with a non-2xx status
	ErrCodeMalformed = "E103" // Success answer lacked an expected field
	ErrCodeTimeout   = "E104" // No answer within the command timeout
)

// journalError marks failures of the journal database.
type journalError struct {
	err error
}

func (e *journalError) Error() string { return "journal: " + e.err.Error() }
func (e *journalError) Unwrap() error { return e.err }

// connectionError marks failures to set up the transport or event feed.
type connectionError struct {
	err error
}

func (e *connectionError) Error() string { return "connection: " + e.err.Error() }
func (e *connectionError) Unwrap() error { return e.err }

// errorCode maps an error to its CLI code.
func errorCode(err error) string {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		switch engineErr.Code {
		case engine.ErrCodeTransport:
			return ErrCodeTransport
		case engine.ErrCodeRemote:
			return ErrCodeRemote
		case engine.ErrCodeMalformedResponse:
			return ErrCodeMalformed
		case engine.ErrCodeTimeout:
			return ErrCodeTimeout
		}
	}

	var cfgErr *config.Error
	var jErr *journalError
	var connErr *connectionError
	switch {
	case errors.As(err, &cfgErr):
		return ErrCodeConfig
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case errors.As(err, &jErr):
		return ErrCodeJournal
	case errors.As(err, &connErr):
		return ErrCodeConnection
	}
	return ErrCodeGeneric
}

// errorDetails returns structured context for an error, if it has any.
func errorDetails(err error) any {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		details := map[string]any{
			"method": engineErr.Method,
			"path":   engineErr.Path,
		}
		if engineErr.Status != 0 {
			details["status"] = engineErr.Status
		}
		if len(engineErr.Body) > 0 {
			details["body"] = string(engineErr.Body)
		}
		return details
	}

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return cfgErr.Messages
	}
	return nil
}
