package render

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type guarded struct {
	inner Adapter
}

// Guard wraps a so that a panic inside Render becomes an Error outcome with
// FallbackMessage instead of unwinding into the caller.
func Guard(a Adapter) Adapter {
	if g, ok := a.(guarded); ok {
		return g
	}
	return guarded{inner: a}
}

func (g guarded) Name() string { return g.inner.Name() }

func (g guarded) Render(ctx context.Context, source string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("adapter", g.inner.Name()).
				Str("panic", fmt.Sprint(r)).
				Msg("Renderer panicked")
			out = failed(FallbackMessage, "")
		}
	}()
	return g.inner.Render(ctx, source)
}
