// Package query binds route functions to cache-friendly query options: a
// key that identifies the call and a function that performs it with the
// caller's cancellation.
package query

import (
	"context"
	"fmt"

	"github.com/adamwoolhether/routefetch/client"
	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// Context is handed to the data builder given to [GenerateWith]. While the
// key is being computed it carries [context.Background] and a nil Key.
type Context struct {
	context.Context
	Key []any
}

// Options is a keyed, cancellable query.
type Options[T any] struct {
	Key []any
	Fn  func(ctx context.Context) (T, error)
}

// Generate binds f to fixed data. layer, which may be nil, is merged over
// the cancellation of each invocation.
func Generate[T any](f *client.Func[T], data any, layer reqconf.Layer) Options[T] {
	return GenerateWith(f, func(Context) any { return data }, layer)
}

// GenerateWith binds f to data produced per invocation by withContext. The
// key is computed once, up front, from a call to withContext with an empty
// Context.
func GenerateWith[T any](f *client.Func[T], withContext func(Context) any, layer reqconf.Layer) Options[T] {
	key := f.KeyWith(withContext(Context{Context: context.Background()}))

	return Options[T]{
		Key: key,
		Fn: func(ctx context.Context) (T, error) {
			data := withContext(Context{Context: ctx, Key: key})

			call, err := reqconf.Merge(reqconf.Init{Signal: ctx.Done()}, layer)
			if err != nil {
				var zero T
				return zero, fmt.Errorf("merging query config: %w", err)
			}

			return f.Call(ctx, data, call)
		},
	}
}
