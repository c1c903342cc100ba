package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// HasCode 错误链中是否存在指定错误码的 AppError
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// Code 返回错误链中最外层 AppError 的错误码，没有时返回空串
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrRPConnect       = "RPC_CONNECT_ERROR"
	ErrBlockFetch      = "BLOCK_FETCH_ERROR"
	ErrEventParse      = "EVENT_PARSE_ERROR"

	ErrLedgerUnavailable = "LEDGER_UNAVAILABLE"
	ErrLedgerCallFailed  = "LEDGER_CALL_FAILED"
	ErrInvalidSide       = "INVALID_SIDE"
	ErrStorageFault      = "STORAGE_FAULT"
	ErrEmptyMessage      = "EMPTY_MESSAGE"
	ErrUnauthorized      = "UNAUTHORIZED"
	ErrInvalidKey        = "INVALID_KEY"
	ErrMediaFetch        = "MEDIA_FETCH_ERROR"
)
