package eventctx

import "context"

// Actor captures who initiated a request and from where. The identity
// middleware fills it from gateway headers; services read it to stamp
// provenance onto appended events.
type Actor struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
}

type key int

const actorKey key = 0

// WithActor returns a context carrying the actor. Producers call it once
// per request and hand the result down into the event services.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, actor)
}

// FromContext reports the actor stored by WithActor, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
