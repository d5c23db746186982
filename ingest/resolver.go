// Package ingest implements the server side of every transport: decoding
// inbound batches, resolving the entity each record belongs to, and
// writing records into partitioned storage.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"scouter/pkg/apperror"
	"scouter/pkg/cache"
	"scouter/pkg/database"
	"scouter/profile"
)

const entityCacheTTL = 10 * time.Minute

// EntityResolver maps a (space, name, version, drift_type) identity to its
// stable surrogate entity_id, caching hits so steady-state ingestion rarely
// round-trips to Postgres. Entities are created exclusively by the
// registration path (package registry); a miss here means a client is
// sending records for an identity nobody has registered a profile for yet,
// which is a rejected record, not an implicit registration.
type EntityResolver struct {
	db    database.DB
	cache cache.Cache
}

// NewEntityResolver builds a resolver backed by db and cache.
func NewEntityResolver(db database.DB, c cache.Cache) *EntityResolver {
	return &EntityResolver{db: db, cache: c}
}

// Resolve returns the Entity for the given identity, consulting the cache
// first, then Postgres. It fails with apperror.ErrEntityNotFound if no
// profile has ever been registered for this identity.
func (r *EntityResolver) Resolve(ctx context.Context, space, name, version string, driftType profile.DriftType) (profile.Entity, error) {
	key := entityCacheKey(space, name, version, driftType)

	if cached, err := r.cache.Get(ctx, key); err == nil {
		var entity profile.Entity
		if jsonErr := json.Unmarshal(cached, &entity); jsonErr == nil {
			return entity, nil
		}
	}

	entity, err := r.lookup(ctx, space, name, version, driftType)
	if err != nil {
		return profile.Entity{}, err
	}

	if encoded, err := json.Marshal(entity); err == nil {
		_ = r.cache.Set(ctx, key, encoded, entityCacheTTL)
	}
	return entity, nil
}

func (r *EntityResolver) lookup(ctx context.Context, space, name, version string, driftType profile.DriftType) (profile.Entity, error) {
	var entity profile.Entity
	row := r.db.QueryRow(ctx,
		`SELECT entity_id, space, name, version, drift_type FROM entity
		 WHERE space = $1 AND name = $2 AND version = $3 AND drift_type = $4`,
		space, name, version, string(driftType))
	err := row.Scan(&entity.EntityID, &entity.Space, &entity.Name, &entity.Version, &entity.DriftType)
	if err == nil {
		return entity, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Entity{}, apperror.ErrEntityNotFound
	}
	return profile.Entity{}, apperror.Wrap(err, apperror.CodeInternal, "failed to look up entity")
}

func entityCacheKey(space, name, version string, driftType profile.DriftType) string {
	return "entity:" + space + "/" + name + "/" + version + "/" + string(driftType)
}
