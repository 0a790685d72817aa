package httpx

import (
	"context"
	"net/http"

	"github.com/tapcard/cardshop/internal/orders"
)

func contextWithActor(ctx context.Context, a orders.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom reads the actor set by requireAdmin. Handlers pass it on to the
// service explicitly.
func actorFrom(r *http.Request) orders.Actor {
	a, _ := r.Context().Value(actorKey{}).(orders.Actor)
	return a
}
