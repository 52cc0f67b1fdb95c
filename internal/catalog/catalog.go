package catalog

import (
	"context"
	"time"

	"github.com/hyperengineering/rigbuild/internal/types"
)

// Catalog is the read side of the parts database plus the seed upsert.
type Catalog interface {
	PartsByCategory(ctx context.Context, cat types.Category) ([]types.Part, error)
	ListParts(ctx context.Context) ([]types.Part, error)
	GetPart(ctx context.Context, id string) (*types.Part, error)
	UpsertParts(ctx context.Context, parts []types.Part) (int, error)
	CountParts(ctx context.Context) (int64, error)
}

// SessionStore persists whole-session state blobs keyed by session id.
// Writes replace the previous blob; last write wins.
type SessionStore interface {
	LoadSession(ctx context.Context, id string) ([]byte, error)
	SaveSession(ctx context.Context, id string, state []byte) error
	DeleteSession(ctx context.Context, id string) error
	PurgeSessions(ctx context.Context, olderThan time.Time, keep []string) (int64, error)
}

// Store is everything the server needs from the database.
type Store interface {
	Catalog
	SessionStore
	Close() error
}
