package wallet

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrEmptyKeystore     = errors.New("no key files found in keystore")
	ErrAmbiguousKeystore = errors.New("keystore holds several keys and none matches the certificate")
)

// Store is the backing storage for wallet records, keyed by label.
// Put must refuse to overwrite an existing label with ErrAlreadyExists.
type Store interface {
	Put(ctx context.Context, label string, data []byte) error
	Get(ctx context.Context, label string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, label string) (bool, error)
	Remove(ctx context.Context, label string) error
}
