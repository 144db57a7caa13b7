package types

// ErrorKind is the closed taxonomy of run-time failures reported to the host.
type ErrorKind string

const (
	ErrorKindSystemFiles        ErrorKind = "ErrorSystemFiles"
	ErrorKindSavestate          ErrorKind = "ErrorSavestate"
	ErrorKindRemoteDisconnected ErrorKind = "ErrorArticDisconnected"
	ErrorKindUnknown            ErrorKind = "ErrorUnknown"
)
