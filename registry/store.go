// Package registry implements the server-side profile registration path:
// it is the only code allowed to create an entity row or insert a profile
// row, matching the "entity created on first register_profile" lifecycle.
// ingest resolves records against entities this package has already
// created; it never creates one itself.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"scouter/pkg/apperror"
	"scouter/pkg/database"
	"scouter/profile"
)

func findEntity(ctx context.Context, db database.DB, space, name, version string, driftType profile.DriftType) (profile.Entity, bool, error) {
	var entity profile.Entity
	row := db.QueryRow(ctx,
		`SELECT entity_id, space, name, version, drift_type FROM entity
		 WHERE space = $1 AND name = $2 AND version = $3 AND drift_type = $4`,
		space, name, version, string(driftType))
	err := row.Scan(&entity.EntityID, &entity.Space, &entity.Name, &entity.Version, &entity.DriftType)
	if err == nil {
		return entity, true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Entity{}, false, nil
	}
	return profile.Entity{}, false, apperror.Wrap(err, apperror.CodeInternal, "failed to look up entity")
}

// createEntity inserts entity, resolving a concurrent registration race for
// the same identity onto the surviving row via the upsert's RETURNING.
func createEntity(ctx context.Context, db database.DB, entity profile.Entity) (profile.Entity, error) {
	row := db.QueryRow(ctx,
		`INSERT INTO entity (entity_id, space, name, version, drift_type)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (space, name, version, drift_type) DO UPDATE SET space = entity.space
		 RETURNING entity_id, space, name, version, drift_type`,
		entity.EntityID, entity.Space, entity.Name, entity.Version, string(entity.DriftType))
	var resolved profile.Entity
	if err := row.Scan(&resolved.EntityID, &resolved.Space, &resolved.Name, &resolved.Version, &resolved.DriftType); err != nil {
		return profile.Entity{}, apperror.Wrap(err, apperror.CodeInternal, "failed to create entity")
	}
	return resolved, nil
}

// findActiveProfile returns the active profile for (entityID, driftType),
// if any. Only one profile may be active per entity/drift-type pair;
// Register enforces that invariant using this lookup.
func findActiveProfile(ctx context.Context, db database.DB, entityID string, driftType profile.DriftType) (*profile.Profile, error) {
	row := db.QueryRow(ctx,
		`SELECT uid, entity_id, drift_type, scouter_version, created_at, updated_at, active,
		        schedule, next_run, previous_run, status, processing_started_at, spc, psi, custom, llm
		 FROM profile
		 WHERE entity_id = $1 AND drift_type = $2 AND active = true`,
		entityID, string(driftType))
	p, err := scanProfileRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// getProfile loads one profile by uid regardless of active state, for
// GET /profile?uid=... and as the read-back step of PATCH /profile/status.
func getProfile(ctx context.Context, db database.DB, uid string) (*profile.Profile, error) {
	row := db.QueryRow(ctx,
		`SELECT uid, entity_id, drift_type, scouter_version, created_at, updated_at, active,
		        schedule, next_run, previous_run, status, processing_started_at, spc, psi, custom, llm
		 FROM profile
		 WHERE uid = $1`,
		uid)
	p, err := scanProfileRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.New(apperror.CodeNotFound, "profile not found")
	}
	return p, err
}

// listProfilesByEntity returns every profile (active or not) registered
// for an entity, for GET /profile?entity_id=....
func listProfilesByEntity(ctx context.Context, db database.DB, entityID string) ([]*profile.Profile, error) {
	rows, err := db.Query(ctx,
		`SELECT uid, entity_id, drift_type, scouter_version, created_at, updated_at, active,
		        schedule, next_run, previous_run, status, processing_started_at, spc, psi, custom, llm
		 FROM profile
		 WHERE entity_id = $1
		 ORDER BY created_at DESC`,
		entityID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "list profiles failed")
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfileRow(row rowScanner) (*profile.Profile, error) {
	var (
		p                                 profile.Profile
		processingAt                      *time.Time
		spcRaw, psiRaw, customRaw, llmRaw []byte
	)
	if err := row.Scan(&p.UID, &p.EntityID, &p.DriftType, &p.ScouterVersion, &p.CreatedAt, &p.UpdatedAt,
		&p.Active, &p.Schedule, &p.NextRun, &p.PreviousRun, &p.Status, &processingAt,
		&spcRaw, &psiRaw, &customRaw, &llmRaw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.CodeInternal, "scan profile row failed")
	}
	p.ProcessingAt = processingAt

	switch p.DriftType {
	case profile.DriftSPC:
		var spc profile.SPCProfile
		if err := json.Unmarshal(spcRaw, &spc); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode spc baseline failed")
		}
		p.SPC = &spc
	case profile.DriftPSI:
		var psi profile.PSIProfile
		if err := json.Unmarshal(psiRaw, &psi); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode psi baseline failed")
		}
		p.PSI = &psi
	case profile.DriftCustom:
		var custom profile.CustomProfile
		if err := json.Unmarshal(customRaw, &custom); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode custom baseline failed")
		}
		p.Custom = &custom
	case profile.DriftLLM:
		var llm profile.LLMProfile
		if err := json.Unmarshal(llmRaw, &llm); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode llm baseline failed")
		}
		p.LLM = &llm
	}
	return &p, nil
}

// insertProfile writes a freshly constructed profile. uid is assumed
// unique (profile.New assigns a UUIDv7).
func insertProfile(ctx context.Context, db database.DB, p *profile.Profile) error {
	spc, psi, custom, llm, err := marshalVariants(p)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx,
		`INSERT INTO profile (uid, entity_id, drift_type, scouter_version, created_at, updated_at, active,
		        schedule, next_run, previous_run, status, processing_started_at, spc, psi, custom, llm)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.UID, p.EntityID, p.DriftType, p.ScouterVersion, p.CreatedAt, p.UpdatedAt, p.Active,
		p.Schedule, p.NextRun, nullableTime(p.PreviousRun), p.Status, p.ProcessingAt, spc, psi, custom, llm)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "insert profile failed")
	}
	return nil
}

func marshalVariants(p *profile.Profile) (spc, psi, custom, llm []byte, err error) {
	switch p.DriftType {
	case profile.DriftSPC:
		spc, err = json.Marshal(p.SPC)
	case profile.DriftPSI:
		psi, err = json.Marshal(p.PSI)
	case profile.DriftCustom:
		custom, err = json.Marshal(p.Custom)
	case profile.DriftLLM:
		llm, err = json.Marshal(p.LLM)
	}
	if err != nil {
		err = apperror.Wrap(err, apperror.CodeInvalidProfile, "encode profile variant failed")
	}
	return
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// setActive flips a profile's active flag, used by Deactivate-on-conflict
// and by PATCH /profile/status.
func setActive(ctx context.Context, db database.DB, uid string, active bool, now time.Time) error {
	tag, err := db.Exec(ctx,
		`UPDATE profile SET active = $1, updated_at = $2 WHERE uid = $3`,
		active, now, uid)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "update profile active flag failed")
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.CodeNotFound, "profile not found")
	}
	return nil
}
