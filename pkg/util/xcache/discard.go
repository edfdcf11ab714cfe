package xcache

import (
	"context"

	"github.com/wuxler/zipline/pkg/util/xgeneric"
)

// NewDiscard returns a new cache implementation which discard all oprations.
func NewDiscard[T any]() Cache[T] {
	return discardCacheImpl[T]{}
}

type discardCacheImpl[T any] struct {
}

// Get always reports a miss and returns the zero value.
func (s discardCacheImpl[T]) Get(_ context.Context, key string, options ...Option[T]) (T, bool) {
	return xgeneric.ZeroValue[T](), false
}

// Set does nothing; the value is discarded.
func (s discardCacheImpl[T]) Set(_ context.Context, key string, value T, options ...Option[T]) {
}

// Delete does nothing.
func (s discardCacheImpl[T]) Delete(_ context.Context, key string) {
}
