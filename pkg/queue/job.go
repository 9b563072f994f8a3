package queue

import "context"

// Job handles one message type.
type Job interface {
	Name() string
	Type() string
	// Handle receives the payload as json.RawMessage; decode it with ParsePayload.
	Handle(ctx context.Context, payload interface{}) error
}
