package sherror

import (
	"errors"
	"fmt"
)

const (
	SHR_UNEXPECTED             = "SHRU"
	SHR_TABLE_NOT_FOUND        = "SHRT"
	SHR_INVALID_SHARDING_VALUE = "SHRV"
	SHR_TABLE_EXISTS           = "SHRE"
	SHR_NOT_IMPLEMENTED        = "SHRN"
	SHR_NO_DATASOURCE          = "SHRD"
	SHR_ROUTING_ERROR          = "SHRR"
	SHR_CONFIG_ERROR           = "SHRC"
	SHR_INSERT_MULTI_NODE      = "SHRI"
	SHR_CROSS_DATASOURCE       = "SHRX"
)

var existingErrorCodeMap = map[string]string{
	SHR_TABLE_NOT_FOUND:        "table not found",
	SHR_INVALID_SHARDING_VALUE: "invalid sharding value",
	SHR_TABLE_EXISTS:           "table already exists",
	SHR_NOT_IMPLEMENTED:        "unsupported statement",
	SHR_NO_DATASOURCE:          "failed to match any data source",
	SHR_ROUTING_ERROR:          "routing error",
	SHR_CONFIG_ERROR:           "invalid configuration",
	SHR_INSERT_MULTI_NODE:      "insert routed to multiple data nodes",
	SHR_CROSS_DATASOURCE:       "cross data source statement",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "unexpected error"
}

type ShError struct {
	Err error

	ErrorCode string
}

var _ error = &ShError{}

func New(errorCode string, msg string) *ShError {
	return &ShError{
		Err:       errors.New(msg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, args ...any) *ShError {
	return &ShError{
		Err:       fmt.Errorf(format, args...),
		ErrorCode: errorCode,
	}
}

func NewByCode(errorCode string) *ShError {
	return New(errorCode, GetMessageByCode(errorCode))
}

func (er *ShError) Error() string {
	return fmt.Sprintf("%s: %s", GetMessageByCode(er.ErrorCode), er.Err)
}

func (er *ShError) Unwrap() error {
	return er.Err
}

// HasCode reports whether err, or any error it wraps, is a ShError with the given code.
func HasCode(err error, code string) bool {
	var se *ShError
	if errors.As(err, &se) {
		return se.ErrorCode == code
	}
	return false
}
