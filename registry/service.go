package registry

import (
	"context"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/audit"
	"scouter/pkg/database"
	"scouter/profile"
)

// RegisterRequest is the decoded body of POST /profile. Exactly one of the
// variant fields must be set, matching profile.New's closed tagged union.
type RegisterRequest struct {
	Space            string                 `json:"space"`
	Name             string                 `json:"name"`
	Version          string                 `json:"version"`
	DriftType        profile.DriftType      `json:"drift_type"`
	Schedule         string                 `json:"schedule"`
	DeactivateOthers bool                   `json:"deactivate_others"`
	SPC              *profile.SPCProfile    `json:"spc,omitempty"`
	PSI              *profile.PSIProfile    `json:"psi,omitempty"`
	Custom           *profile.CustomProfile `json:"custom,omitempty"`
	LLM              *profile.LLMProfile    `json:"llm,omitempty"`
}

// Registrar is the server-side implementation of the profile registration
// surface (POST /profile, PATCH /profile/status, GET /profile), reachable
// over both HTTP and gRPC.
type Registrar struct {
	db database.DB
}

// NewRegistrar builds a Registrar backed by db.
func NewRegistrar(db database.DB) *Registrar {
	return &Registrar{db: db}
}

// Register resolves (creating if necessary) the entity for req's identity
// triple, enforces the one-active-profile-per-(entity,drift_type)
// invariant, and persists a new profile. Without DeactivateOthers, a
// second registration for an already-active (entity, drift_type) pair
// fails with apperror.ErrProfileConflict.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*profile.Profile, error) {
	if req.Space == "" || req.Name == "" || req.Version == "" {
		return nil, apperror.ErrMissingEntity
	}
	if !req.DriftType.Valid() {
		return nil, apperror.NewWithField(apperror.CodeInvalidDriftType,
			"unknown drift type", "drift_type")
	}

	entity, err := r.resolveEntity(ctx, req.Space, req.Name, req.Version, req.DriftType)
	if err != nil {
		return nil, err
	}

	existing, err := findActiveProfile(ctx, r.db, entity.EntityID, req.DriftType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !req.DeactivateOthers {
			r.audit(ctx, audit.ActionCreate, audit.OutcomeDenied, entity.EntityID, "",
				"register conflicts with an active profile", apperror.ErrProfileConflict)
			return nil, apperror.ErrProfileConflict
		}
		now := time.Now()
		if err := setActive(ctx, r.db, existing.UID, false, now); err != nil {
			return nil, err
		}
		r.audit(ctx, audit.ActionUpdate, audit.OutcomeSuccess, entity.EntityID, existing.UID,
			"deactivated by a conflicting registration", nil)
	}

	p, err := profile.New(entity, req.Schedule, req.SPC, req.PSI, req.Custom, req.LLM)
	if err != nil {
		r.audit(ctx, audit.ActionCreate, audit.OutcomeFailure, entity.EntityID, "", "register", err)
		return nil, err
	}
	if err := insertProfile(ctx, r.db, p); err != nil {
		return nil, err
	}
	r.audit(ctx, audit.ActionCreate, audit.OutcomeSuccess, entity.EntityID, p.UID, "register", nil)
	return p, nil
}

func (r *Registrar) resolveEntity(ctx context.Context, space, name, version string, driftType profile.DriftType) (profile.Entity, error) {
	existing, ok, err := findEntity(ctx, r.db, space, name, version, driftType)
	if err != nil {
		return profile.Entity{}, err
	}
	if ok {
		return existing, nil
	}
	created, err := profile.NewEntity(space, name, version, driftType)
	if err != nil {
		return profile.Entity{}, err
	}
	return createEntity(ctx, r.db, created)
}

// Get returns a single profile by uid.
func (r *Registrar) Get(ctx context.Context, uid string) (*profile.Profile, error) {
	return getProfile(ctx, r.db, uid)
}

// ListByEntity returns every profile registered for entityID.
func (r *Registrar) ListByEntity(ctx context.Context, entityID string) ([]*profile.Profile, error) {
	return listProfilesByEntity(ctx, r.db, entityID)
}

// SetActive implements PATCH /profile/status: activating or deactivating a
// profile by uid, independent of the conflict-driven deactivation Register
// performs on other profiles.
func (r *Registrar) SetActive(ctx context.Context, uid string, active bool) (*profile.Profile, error) {
	now := time.Now()
	if err := setActive(ctx, r.db, uid, active, now); err != nil {
		return nil, err
	}
	action := audit.ActionUpdate
	reason := "deactivate"
	if active {
		reason = "activate"
	}
	p, err := getProfile(ctx, r.db, uid)
	if err != nil {
		return nil, err
	}
	r.audit(ctx, action, audit.OutcomeSuccess, p.EntityID, uid, reason, nil)
	return p, nil
}

func (r *Registrar) audit(ctx context.Context, action audit.Action, outcome audit.Outcome, entityID, profileUID, reason string, cause error) {
	entry := audit.NewEntry().
		Service("scouter-server").
		Method("registry." + reason).
		Action(action).
		Outcome(outcome).
		Resource("profile", profileUID).
		Meta("entity_id", entityID).
		Meta("reason", reason)
	if cause != nil {
		entry = entry.Error(string(apperror.Code(cause)), cause.Error())
	}
	_ = audit.Get().Log(ctx, entry.Build())
}
