// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package lazy provides values that are computed on first use.
package lazy

import (
	"sync"
)

// Value is computed by its function the first time it is resolved. The
// result, error included, is kept for every later call.
type Value[T any] struct {
	once  sync.Once
	fn    func() (T, error)
	value T
	err   error
}

// New returns a Value computed by fn.
func New[T any](fn func() (T, error)) *Value[T] {
	return &Value[T]{fn: fn}
}

// Of returns a Value that is already resolved to v.
func Of[T any](v T) *Value[T] {
	l := &Value[T]{value: v}
	l.once.Do(func() {})
	return l
}

// Resolve computes the value if needed and returns it. It is safe for
// concurrent use.
func (l *Value[T]) Resolve() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.fn()
		l.fn = nil
	})
	return l.value, l.err
}
