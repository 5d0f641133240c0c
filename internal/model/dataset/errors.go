package dataset

import (
	"errors"
	"fmt"
)

// ErrorKind 数据集加载失败的分类
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not-found"
	KindMalformed ErrorKind = "malformed"
	KindUnknown   ErrorKind = "unknown"
)

// LoadError is returned by the loader for every failed load. Err carries the
// underlying detail, which is logged and never shown to the user.
type LoadError struct {
	Kind     ErrorKind
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dataset %s (%s): %v", e.Kind, e.Location, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// KindOf classifies err, defaulting to KindUnknown for errors not produced by the loader.
func KindOf(err error) ErrorKind {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Kind
	}
	return KindUnknown
}
