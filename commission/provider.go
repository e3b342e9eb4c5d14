package commission

import "context"

// Provider is the narrow persistence contract the lifecycle store depends on.
// Exactly one backend is active per process, selected once at startup.
//
// Write is an idempotent upsert by record id. Remove is an idempotent delete;
// removing an unknown id is not an error. Subscribe pushes the full current
// record set on registration and again after every change, including changes
// caused by this process's own writes; the returned function tears the
// subscription down. A write already in flight when the subscription is torn
// down still completes.
type Provider interface {
	Write(ctx context.Context, id string, rec Record) error
	Remove(ctx context.Context, id string) error
	Subscribe(ctx context.Context, onSnapshot func([]Record), onError func(error)) (func(), error)
}
