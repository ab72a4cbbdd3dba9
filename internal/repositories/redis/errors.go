package redis

import (
	"context"
	"errors"
	"fmt"
	"net"

	goredis "github.com/redis/go-redis/v9"
)

type errorKind int

const (
	kindInternal errorKind = iota
	kindNotFound
	kindUnavailable
)

// Error classifies Redis failures so services can branch on category
// without importing this package's internals.
type Error struct {
	Op   string
	kind errorKind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the key was absent.
func (e *Error) IsNotFound() bool { return e != nil && e.kind == kindNotFound }

// IsConflict always reports false; the cart store is last-writer-wins.
func (e *Error) IsConflict() bool { return false }

// IsUnavailable reports whether the failure looks transient.
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

func newCartError(op string, kind errorKind, err error) *Error {
	return &Error{Op: op, kind: kind, Err: err}
}

func wrapCartError(op string, err error) *Error {
	return newCartError(op, classify(err), err)
}

func classify(err error) errorKind {
	switch {
	case errors.Is(err, goredis.Nil):
		return kindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return kindUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return kindUnavailable
	}
	return kindInternal
}
