package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/sasha-s/go-deadlock"

	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// Wallet is the credential store consulted on every session open.
// Reads are lock-free; imports are serialized per label.
type Wallet struct {
	store Store
	locks *labelLocks
}

func New(store Store) *Wallet {
	return &Wallet{store: store, locks: newLabelLocks()}
}

func (w *Wallet) Store() Store { return w.store }

// Import stores id under id.Label. An existing label is left untouched and
// ErrAlreadyExists is returned.
func (w *Wallet) Import(ctx context.Context, id Identity) error {
	if id.Type == "" {
		id.Type = X509
	}
	if err := id.Validate(); err != nil {
		return err
	}
	unlock := w.locks.lock(id.Label)
	defer unlock()

	exists, err := w.store.Exists(ctx, id.Label)
	if err != nil {
		return fmt.Errorf("import %s: %w", id.Label, err)
	}
	if exists {
		logging.Warn("an identity for %q already exists in the wallet", id.Label)
		return fmt.Errorf("import %s: %w", id.Label, ErrAlreadyExists)
	}
	data, err := id.Marshal()
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, id.Label, data); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			logging.Warn("an identity for %q already exists in the wallet", id.Label)
		}
		return fmt.Errorf("import %s: %w", id.Label, err)
	}
	logging.Info("added %q to the wallet", id.Label)
	return nil
}

// Lookup returns the identity stored under label or ErrNotFound.
func (w *Wallet) Lookup(ctx context.Context, label string) (Identity, error) {
	data, err := w.store.Get(ctx, label)
	if err != nil {
		return Identity{}, err
	}
	id, err := Unmarshal(label, data)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// List returns stored labels. Callers must not rely on the order.
func (w *Wallet) List(ctx context.Context) ([]string, error) {
	return w.store.List(ctx)
}

// Export returns a detached copy of the stored identity.
func (w *Wallet) Export(ctx context.Context, label string) (Identity, error) {
	id, err := w.Lookup(ctx, label)
	if err != nil {
		return Identity{}, err
	}
	id.Certificate = append([]byte(nil), id.Certificate...)
	id.PrivateKey = append([]byte(nil), id.PrivateKey...)
	return id, nil
}

// Remove deletes an identity. Administrative only.
func (w *Wallet) Remove(ctx context.Context, label string) error {
	unlock := w.locks.lock(label)
	defer unlock()
	return w.store.Remove(ctx, label)
}

// labelLocks hands out one mutex per label and drops it when unused.
type labelLocks struct {
	mu    deadlock.Mutex
	locks map[string]*labelLock
}

type labelLock struct {
	mu   deadlock.Mutex
	refs int
}

func newLabelLocks() *labelLocks { return &labelLocks{locks: map[string]*labelLock{}} }

func (l *labelLocks) lock(label string) func() {
	l.mu.Lock()
	ll, ok := l.locks[label]
	if !ok {
		ll = &labelLock{}
		l.locks[label] = ll
	}
	ll.refs++
	l.mu.Unlock()

	ll.mu.Lock()
	return func() {
		ll.mu.Unlock()
		l.mu.Lock()
		ll.refs--
		if ll.refs == 0 {
			delete(l.locks, label)
		}
		l.mu.Unlock()
	}
}
