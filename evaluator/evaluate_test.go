package evaluator

import (
	"context"
	"strings"
	"testing"
	"time"

	"scouter/profile"
)

type recordingDispatcher struct {
	alerts []Alert
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a Alert) error {
	d.alerts = append(d.alerts, a)
	return nil
}

func spcTestProfile() *profile.Profile {
	return &profile.Profile{
		UID:       "uid-1",
		EntityID:  "entity-1",
		DriftType: profile.DriftSPC,
		Schedule:  "0 */5 * * * *",
		Status:    profile.StatusProcessing,
		SPC: &profile.SPCProfile{
			Features: map[string]profile.SPCFeature{
				"x": {Center: 10, Sigma: 1, OneLCL: 9, OneUCL: 11, TwoLCL: 8, TwoUCL: 12, ThreeLCL: 7, ThreeUCL: 13},
			},
			AlertRule: "8 16 4 8 2 4 1 1",
		},
	}
}

func TestEvaluate_SPC_FiresAlertOutOfBounds(t *testing.T) {
	now := time.Now()
	db := &fakeDB{
		queryRows: [][]fakeRow{{
			{values: []any{20.0}}, // far beyond the three-sigma limit
		}},
	}
	dispatcher := &recordingDispatcher{}
	p := spcTestProfile()
	p.CreatedAt = now.Add(-time.Hour)

	if err := Evaluate(t.Context(), db, dispatcher, nil, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(dispatcher.alerts))
	}
	if p.Status != profile.StatusCompleted {
		t.Errorf("expected profile to complete, got %s", p.Status)
	}

	var sawSPCDrift, sawAlert bool
	for _, e := range db.execs {
		if strings.Contains(e.sql, "INSERT INTO spc_drift") {
			sawSPCDrift = true
		}
		if strings.Contains(e.sql, "INSERT INTO drift_alerts") {
			sawAlert = true
		}
	}
	if !sawSPCDrift || !sawAlert {
		t.Errorf("expected both a spc_drift and a drift_alerts insert, execs=%+v", db.execs)
	}
}

func TestEvaluate_SPC_EmptyWindowSkipsFeature(t *testing.T) {
	db := &fakeDB{queryRows: [][]fakeRow{{}}}
	dispatcher := &recordingDispatcher{}
	p := spcTestProfile()

	if err := Evaluate(t.Context(), db, dispatcher, nil, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.alerts) != 0 {
		t.Errorf("expected no alerts for an empty window, got %d", len(dispatcher.alerts))
	}
	if p.Status != profile.StatusCompleted {
		t.Errorf("expected profile to complete even with nothing to evaluate, got %s", p.Status)
	}
}

func TestEvaluate_UnknownDriftTypeFails(t *testing.T) {
	db := &fakeDB{}
	p := &profile.Profile{UID: "uid-1", EntityID: "entity-1", DriftType: "bogus", Schedule: "0 */5 * * * *", Status: profile.StatusProcessing}

	err := Evaluate(t.Context(), db, &recordingDispatcher{}, nil, p)
	if err == nil {
		t.Fatal("expected an error for an unknown drift type")
	}
	if p.Status != profile.StatusFailed {
		t.Errorf("expected profile to be marked failed, got %s", p.Status)
	}
}
