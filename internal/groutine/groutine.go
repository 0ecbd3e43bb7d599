// Package groutine runs goroutines that carry pprof labels, so scan workers
// can be told apart in goroutine profiles.
package groutine

import (
	"context"
	"runtime/pprof"
)

// NameLabel is the pprof label holding the goroutine name.
const NameLabel = "goroutine"

// Go runs fn in a new goroutine labelled with name plus any extra key/value
// label pairs, and returns a channel closed once fn returns.
// fn receives a context carrying the labels; a nil ctx means context.Background().
func Go(ctx context.Context, name string, fn func(ctx context.Context), kv ...string) <-chan struct{} {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(kv)%2 != 0 {
		panic("groutine: odd number of label arguments")
	}

	done := make(chan struct{})
	labels := pprof.Labels(append([]string{NameLabel, name}, kv...)...)

	go pprof.Do(ctx, labels, func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	})
	return done
}

// Name returns the name given to the goroutine that owns ctx, or "".
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := pprof.Label(ctx, NameLabel)
	return name
}
