package errors

import (
	"context"
	stderrors "errors"
)

// Exit codes are part of the CLI contract; never renumber them.
const (
	ExitOK         = 0
	ExitHTTPStatus = 1
	ExitConnection = 2
	ExitTimeout    = 3
	ExitTransport  = 4
	ExitArchive    = 5
	ExitParsing    = 6
	ExitOutput     = 7
	ExitPublish    = 8
	ExitNotFound   = 9
	ExitConfig     = 10
	ExitCancelled  = 11
)

var exitCodes = map[ErrorType]int{
	ErrTypeHTTPStatus: ExitHTTPStatus,
	ErrTypeConnection: ExitConnection,
	ErrTypeTimeout:    ExitTimeout,
	ErrTypeTransport:  ExitTransport,
	ErrTypeArchive:    ExitArchive,
	ErrTypeParsing:    ExitParsing,
	ErrTypeOutput:     ExitOutput,
	ErrTypePublish:    ExitPublish,
	ErrTypeNotFound:   ExitNotFound,
	ErrTypeConfig:     ExitConfig,
	ErrTypeCancelled:  ExitCancelled,
}

// messages are the operator-facing summaries logged once per failed run
var messages = map[ErrorType]string{
	ErrTypeHTTPStatus: "HTTP error",
	ErrTypeConnection: "Connection error",
	ErrTypeTimeout:    "Timeout error",
	ErrTypeTransport:  "Other transport error",
	ErrTypeArchive:    "Corrupt archive",
	ErrTypeParsing:    "Document could not be parsed",
	ErrTypeOutput:     "Tabular write error",
	ErrTypePublish:    "Storage publish error",
	ErrTypeNotFound:   "No matching data file in feed",
	ErrTypeConfig:     "Configuration error",
	ErrTypeCancelled:  "Run cancelled",
}

// TypeOf returns the category of the outermost AppError in err's chain.
// Unclassified context cancellation reports ErrTypeCancelled and any other
// unclassified error reports the empty type.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTypeCancelled
	}
	return ""
}

// Is reports whether err carries the given category
func Is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// ExitCode maps err to the process exit status. Unclassified errors exit with
// the generic transport code as the least specific category.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := exitCodes[TypeOf(err)]; ok {
		return code
	}
	return ExitTransport
}

// Summary returns the category's operator-facing message
func Summary(err error) string {
	if msg, ok := messages[TypeOf(err)]; ok {
		return msg
	}
	return "Unexpected error"
}
