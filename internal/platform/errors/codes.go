// Package errors provides structured, code-carrying errors for the runtime.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Module errors
	CodePluginFileNotFound Code = "PLUGIN_FILE_NOT_FOUND"
	CodeSymbolNotFound     Code = "SYMBOL_NOT_FOUND"
	CodeModuleReleased     Code = "MODULE_RELEASED"

	// Registry errors
	CodePluginNotRegistered Code = "PLUGIN_NOT_REGISTERED"
	CodeUnsupportedCast     Code = "UNSUPPORTED_CAST"
	CodeOperatorNotFound    Code = "OPERATOR_NOT_FOUND"
	CodeOperatorBuildFailed Code = "OPERATOR_BUILD_FAILED"

	// Auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Protocol errors
	CodeProtocolInvalid    Code = "PROTOCOL_INVALID"
	CodeEventChannelClosed Code = "EVENT_CHANNEL_CLOSED"
)
