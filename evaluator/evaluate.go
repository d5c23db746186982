package evaluator

import (
	"context"
	"sort"
	"time"

	"scouter/drift"
	"scouter/pkg/apperror"
	"scouter/pkg/database"
	"scouter/pkg/metrics"
	"scouter/profile"
)

// Evaluate runs one tick for a single claimed profile: read the raw
// samples accumulated since its previous run, score them with the
// matching drift kernel, persist the derived metric rows, dispatch any
// fired alerts, and advance the profile's schedule. The caller must have
// already claimed p (status == Processing) before calling this.
//
// LLM profiles are not evaluated here; their pending records are drained
// by package workflow instead.
func Evaluate(ctx context.Context, db database.DB, dispatcher Dispatcher, m *metrics.Metrics, p *profile.Profile) error {
	now := time.Now()
	since := p.PreviousRun
	if since.IsZero() {
		since = p.CreatedAt
	}

	var err error
	switch p.DriftType {
	case profile.DriftSPC:
		err = evaluateSPC(ctx, db, dispatcher, p, since, now)
	case profile.DriftPSI:
		err = evaluatePSI(ctx, db, dispatcher, p, since, now)
	case profile.DriftCustom:
		err = evaluateCustom(ctx, db, dispatcher, p, since, now)
	case profile.DriftLLM:
		// handled by package workflow
	default:
		err = apperror.New(apperror.CodeInvalidDriftType, "evaluator cannot score unknown drift type")
	}

	if m != nil {
		m.RecordEvaluation(string(p.DriftType), err == nil, time.Since(now))
	}

	if err != nil {
		if failErr := p.Fail(now); failErr != nil {
			return failErr
		}
		if persistErr := persistTick(ctx, db, p); persistErr != nil {
			return persistErr
		}
		return err
	}

	if err := p.Complete(now); err != nil {
		return err
	}
	return persistTick(ctx, db, p)
}

func sortedFeatureNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func evaluateSPC(ctx context.Context, db database.DB, dispatcher Dispatcher, p *profile.Profile, since, now time.Time) error {
	for _, feature := range sortedFeatureNames(p.SPC.Features) {
		baseline := p.SPC.Features[feature]
		window, err := readSPCWindow(ctx, db, p.EntityID, feature, since, now)
		if err != nil {
			return err
		}
		if len(window) == 0 {
			continue
		}
		result, err := drift.SPC(baseline, window, p.SPC.AlertRule)
		if err != nil {
			return err
		}
		result.Feature = feature
		if err := persistSPC(ctx, db, p.EntityID, result, now); err != nil {
			return err
		}
		if result.Fired() {
			if err := fireAlert(ctx, db, dispatcher, Alert{
				EntityID: p.EntityID, DriftType: p.DriftType, Feature: feature,
				Kind: string(result.Kind), Value: result.Mean, CreatedAt: now,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func evaluatePSI(ctx context.Context, db database.DB, dispatcher Dispatcher, p *profile.Profile, since, now time.Time) error {
	for _, feature := range sortedFeatureNames(p.PSI.Features) {
		baseline := p.PSI.Features[feature]
		counts, err := readPSIWindow(ctx, db, p.EntityID, feature, since, now)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			continue
		}
		result, err := drift.PSI(baseline, counts, p.PSI.Threshold)
		if err != nil {
			return err
		}
		result.Feature = feature
		if err := persistPSI(ctx, db, p.EntityID, result, now); err != nil {
			return err
		}
		if result.Fired {
			if err := fireAlert(ctx, db, dispatcher, Alert{
				EntityID: p.EntityID, DriftType: p.DriftType, Feature: feature,
				Kind: "psi_threshold_exceeded", Value: result.Value, CreatedAt: now,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func evaluateCustom(ctx context.Context, db database.DB, dispatcher Dispatcher, p *profile.Profile, since, now time.Time) error {
	for _, metric := range p.Custom.Metrics {
		value, ok, err := readCustomWindow(ctx, db, p.EntityID, metric.Name, since, now)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		result := drift.Custom(metric, value)
		if err := persistCustom(ctx, db, p.EntityID, result, now); err != nil {
			return err
		}
		if result.Fired {
			if err := fireAlert(ctx, db, dispatcher, Alert{
				EntityID: p.EntityID, DriftType: p.DriftType, Feature: metric.Name,
				Kind: string(metric.AlertThreshold), Value: result.Value, CreatedAt: now,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// fireAlert persists the audit row first, then dispatches. A dispatcher
// failure is logged by the dispatcher itself and never rolls back the
// metric or alert rows already written.
func fireAlert(ctx context.Context, db database.DB, dispatcher Dispatcher, a Alert) error {
	if err := persistAlert(ctx, db, a); err != nil {
		return err
	}
	if dispatcher != nil {
		_ = dispatcher.Dispatch(ctx, a)
	}
	return nil
}
