package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"facebot/internal/domain"
	"facebot/internal/ports/output"
	"facebot/pkg/validator"

	"github.com/sirupsen/logrus"
)

// DefaultStorageKey is the key the console state is stored under
const DefaultStorageKey = "chatSessions"

const saveTimeout = 5 * time.Second

// Persister struct - Mirrors the session store into durable storage.
// It keeps no state of its own: every change event overwrites the stored blob with
// the full snapshot, and Restore loads it back on start.
type Persister struct {
	storage   output.StateStorage
	key       string
	validator validator.Validator
}

// NewPersister func - Creates new persister for the given storage key
func NewPersister(storage output.StateStorage, key string) *Persister {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Persister{
		storage:   storage,
		key:       key,
		validator: validator.New(),
	}
}

// Observe is a session store observer that flushes every change
func (p *Persister) Observe(event domain.ChangeEvent) {
	data, err := json.Marshal(event.Snapshot)
	if err != nil {
		logrus.Errorf("Failed to serialize console state: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := p.storage.Save(ctx, p.key, data); err != nil {
		logrus.Errorf("Failed to persist console state after %s: %v", event.Kind, err)
		return
	}
	logrus.Debugf("Persisted console state after %s (%d bytes)", event.Kind, len(data))
}

// Restore loads the stored state into the store. A missing value leaves the store's
// default session in place. A failed load leaves both storage and store untouched and
// returns the wrapped domain.ErrStorageUnavailable. A value that does not decode or has
// the wrong shape is cleared from storage, the store is reset to one default session
// carrying a notice, and the wrapped domain.ErrMalformedPersistedState is returned for
// logging; the store is valid either way.
func (p *Persister) Restore(ctx context.Context, store output.SessionStore) error {
	data, err := p.storage.Load(ctx, p.key)
	if errors.Is(err, domain.ErrStateNotFound) {
		logrus.Infof("No saved console state under key %q, starting fresh", p.key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load %q: %v", domain.ErrStorageUnavailable, p.key, err)
	}

	snapshot, err := p.decode(data)
	if err != nil {
		return p.recover(ctx, store, err)
	}

	store.Restore(snapshot)
	logrus.Infof("Restored %d session(s), active=%s", len(snapshot.Sessions), store.ActiveSessionID())
	return nil
}

func (p *Persister) decode(data []byte) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode: %w", err)
	}
	if err := p.validator.ValidateStruct(snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("shape: %w", err)
	}

	// requests that were in flight did not survive the restart
	for i := range snapshot.Sessions {
		kept := snapshot.Sessions[i].Messages[:0]
		for _, msg := range snapshot.Sessions[i].Messages {
			if msg.Placeholder == domain.PlaceholderNone {
				kept = append(kept, msg)
			}
		}
		snapshot.Sessions[i].Messages = kept
	}
	return snapshot, nil
}

func (p *Persister) recover(ctx context.Context, store output.SessionStore, cause error) error {
	err := fmt.Errorf("%w: %v", domain.ErrMalformedPersistedState, cause)
	logrus.Warnf("Discarding saved console state under key %q: %v", p.key, err)

	if clearErr := p.storage.Clear(ctx, p.key); clearErr != nil {
		logrus.Errorf("Failed to clear corrupted console state: %v", clearErr)
	}

	store.Restore(domain.Snapshot{})
	store.AppendMessage(store.ActiveSessionID(), domain.NewBotMessage(domain.RestoreFailedText))
	return err
}
