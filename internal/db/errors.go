package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
)

// Op constants name backend operations for error context.
const (
	OpPing        = "PING"
	OpSearch      = "SEARCH"
	OpMultiSearch = "MSEARCH"
	OpCount       = "COUNT"
	OpScroll      = "SCROLL"
	OpClearScroll = "CLEAR_SCROLL"
	OpHSet        = "HSET"
	OpHGetAll     = "HGETALL"
	OpExpire      = "PEXPIRE"
	OpDel         = "DEL"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
