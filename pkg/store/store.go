// Package store persists resolution passes so the HTTP endpoint and the
// terminal browser can serve the last catalog without re-walking GitLab.
//
// Two backends exist:
//   - [FileStore]: a JSON snapshot in the cache directory (default)
//   - [MongoStore]: versions upserted by (name, normalized version) plus one
//     summary document per pass, for shared deployments
//
// Use [Open] to pick one from configuration.
package store

import (
	"context"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

// ErrNoCatalog is returned by Latest when no pass has been saved yet.
var ErrNoCatalog = errs.Sentinel(errs.ErrCodeNotFound)

// Store saves catalogs and returns the most recent one.
type Store interface {
	Save(ctx context.Context, cat *repository.Catalog) error
	Latest(ctx context.Context) (*repository.Catalog, error)
	Close() error
}

// Open returns a MongoStore when mongoURI is set, otherwise a FileStore
// in dir.
func Open(ctx context.Context, dir, mongoURI, database string) (Store, error) {
	if mongoURI != "" {
		return NewMongoStore(ctx, mongoURI, database)
	}
	return NewFileStore(dir)
}
