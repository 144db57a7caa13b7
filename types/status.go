package types

import "fmt"

// Status is the result code reported by the execution engine for Load and for
// every RunLoop step.
type Status int

const (
	StatusSuccess Status = iota
	StatusErrorNotInitialized
	StatusErrorGetLoader
	StatusErrorSystemMode
	StatusErrorLoader
	StatusErrorLoaderEncrypted
	StatusErrorLoaderInvalidFormat
	StatusErrorLoaderGBATitle
	StatusErrorSystemFiles
	StatusErrorSavestate
	StatusErrorArticDisconnected
	StatusShutdownRequested
	StatusErrorUnknown
)

var statusNames = map[Status]string{
	StatusSuccess:                  "Success",
	StatusErrorNotInitialized:      "ErrorNotInitialized",
	StatusErrorGetLoader:           "ErrorGetLoader",
	StatusErrorSystemMode:          "ErrorSystemMode",
	StatusErrorLoader:              "ErrorLoader",
	StatusErrorLoaderEncrypted:     "ErrorLoaderEncrypted",
	StatusErrorLoaderInvalidFormat: "ErrorLoaderInvalidFormat",
	StatusErrorLoaderGBATitle:      "ErrorLoaderGBATitle",
	StatusErrorSystemFiles:         "ErrorSystemFiles",
	StatusErrorSavestate:           "ErrorSavestate",
	StatusErrorArticDisconnected:   "ErrorArticDisconnected",
	StatusShutdownRequested:        "ShutdownRequested",
	StatusErrorUnknown:             "ErrorUnknown",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsLoaderError reports whether s is one of the load-time (bad or missing ROM) codes.
func (s Status) IsLoaderError() bool {
	switch s {
	case StatusErrorLoader, StatusErrorLoaderEncrypted, StatusErrorLoaderInvalidFormat, StatusErrorLoaderGBATitle:
		return true
	}
	return false
}

// StatusError wraps a non-success Status for callers that speak error.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string { return "emulation exited: " + e.Status.String() }

// Err returns nil for Success and ShutdownRequested, a *StatusError otherwise.
// ShutdownRequested is a clean terminal signal, not a failure.
func (s Status) Err() error {
	if s == StatusSuccess || s == StatusShutdownRequested {
		return nil
	}
	return &StatusError{Status: s}
}
