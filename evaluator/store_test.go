package evaluator

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"scouter/profile"
)

func TestClaimProfile_SucceedsWhenRowAffected(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	claimed, err := claimProfile(t.Context(), db, "uid-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Error("expected claim to succeed")
	}
}

func TestClaimProfile_LosesRaceWhenNoRowAffected(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
	claimed, err := claimProfile(t.Context(), db, "uid-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Error("expected claim to lose the race")
	}
}

func TestReclaimStale_ReturnsRowsAffected(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("UPDATE 3")}
	n, err := reclaimStale(t.Context(), db, 15*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 reclaimed, got %d", n)
	}
}

func TestFetchEligible_DecodesVariantByDriftType(t *testing.T) {
	spc, _ := json.Marshal(profile.SPCProfile{
		Features:  map[string]profile.SPCFeature{"x": {Center: 1, Sigma: 0.1}},
		AlertRule: "10100000",
	})
	now := time.Now()
	db := &fakeDB{
		queryRows: [][]fakeRow{{
			{values: []any{
				"uid-1", "entity-1", "spc", "1.0", now, now, true,
				"0 */5 * * * *", now, now, "pending", nil,
				spc, []byte(nil), []byte(nil), []byte(nil),
			}},
		}},
	}

	profiles, err := fetchEligible(t.Context(), db, now, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]
	if p.DriftType != profile.DriftSPC {
		t.Errorf("expected drift type spc, got %s", p.DriftType)
	}
	if p.SPC == nil || p.SPC.Features["x"].Center != 1 {
		t.Errorf("expected decoded spc baseline, got %+v", p.SPC)
	}
}

func TestPersistTick_WritesLifecycleFields(t *testing.T) {
	db := &fakeDB{}
	p := &profile.Profile{UID: "uid-1", Status: profile.StatusCompleted, NextRun: time.Now()}
	if err := persistTick(t.Context(), db, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].sql, "UPDATE profile") {
		t.Fatalf("expected one profile update, got %+v", db.execs)
	}
}
