package output

import "context"

// StateStorage interface - Output port
// Durable key/value storage for the serialized console state. Values are whole
// blobs: Save overwrites, there is no merge.
type StateStorage interface {
	// Load returns the stored blob, or domain.ErrStateNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save overwrites the blob stored under key.
	Save(ctx context.Context, key string, value []byte) error

	// Clear removes the blob. Clearing a missing key is not an error.
	Clear(ctx context.Context, key string) error
}
