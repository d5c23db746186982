package queue

import (
	"time"

	"scouter/pkg/apperror"
	"scouter/profile"
	"scouter/wire"
)

// accumulator buffers raw samples for one profile between flushes and
// materializes them into wire.Record batches, one drift-type-specific rule
// per baseline kind. It holds no locking of its own; Queue serializes
// access.
type accumulator struct {
	entity    profile.Entity
	driftType profile.DriftType

	spcProfile *profile.SPCProfile
	psiProfile *profile.PSIProfile

	spcValues  map[string][]spcObservation
	psiCounts  map[string]map[int]int
	customVals []customObservation
	llmSampled []wire.Record

	pending    int
	sampleRate int
	sampleSeen uint64
}

type spcObservation struct {
	value     float64
	createdAt time.Time
}

type customObservation struct {
	metric    string
	value     float64
	createdAt time.Time
}

func newAccumulator(entity profile.Entity, driftType profile.DriftType, spc *profile.SPCProfile, psi *profile.PSIProfile, sampleRate int) *accumulator {
	if sampleRate < 1 {
		sampleRate = 1
	}
	return &accumulator{
		entity:     entity,
		driftType:  driftType,
		spcProfile: spc,
		psiProfile: psi,
		spcValues:  make(map[string][]spcObservation),
		psiCounts:  make(map[string]map[int]int),
		sampleRate: sampleRate,
	}
}

// insertFeatures validates and buffers one SPC or PSI sample.
func (a *accumulator) insertFeatures(sample Features, now time.Time) error {
	switch a.driftType {
	case profile.DriftSPC:
		if a.spcProfile == nil {
			return apperror.New(apperror.CodeInvalidProfile, "queue has no spc baseline to validate against")
		}
		for name, v := range sample {
			if _, ok := a.spcProfile.Features[name]; !ok {
				return apperror.NewWithField(apperror.CodeInvalidFeatureConfig, "feature is not part of the spc baseline", name)
			}
			num, err := requireNumber(v, name)
			if err != nil {
				return err
			}
			a.spcValues[name] = append(a.spcValues[name], spcObservation{value: num, createdAt: now})
			a.pending++
		}
		return nil
	case profile.DriftPSI:
		if a.psiProfile == nil {
			return apperror.New(apperror.CodeInvalidProfile, "queue has no psi baseline to validate against")
		}
		for name, v := range sample {
			feature, ok := a.psiProfile.Features[name]
			if !ok {
				return apperror.NewWithField(apperror.CodeInvalidFeatureConfig, "feature is not part of the psi baseline", name)
			}
			binID, err := locateBin(feature, v)
			if err != nil {
				return err
			}
			counts, ok := a.psiCounts[name]
			if !ok {
				counts = make(map[int]int)
				a.psiCounts[name] = counts
			}
			counts[binID]++
			a.pending++
		}
		return nil
	default:
		return apperror.New(apperror.CodeInvalidProfile, "insertFeatures called against a non-feature profile")
	}
}

// insertMetrics validates and buffers one Custom sample.
func (a *accumulator) insertMetrics(sample Metrics, allowed map[string]bool, now time.Time) error {
	if a.driftType != profile.DriftCustom {
		return apperror.New(apperror.CodeInvalidProfile, "insertMetrics called against a non-custom profile")
	}
	for name, v := range sample {
		if !allowed[name] {
			return apperror.NewWithField(apperror.CodeInvalidFeatureConfig, "metric is not part of the custom baseline", name)
		}
		a.customVals = append(a.customVals, customObservation{metric: name, value: v, createdAt: now})
		a.pending++
	}
	return nil
}

// insertLLM applies 1-in-sample_rate sampling and buffers a materialized
// record when the counter selects this insertion.
func (a *accumulator) insertLLM(rec LlmRecord, now time.Time) {
	a.sampleSeen++
	if int(a.sampleSeen-1)%a.sampleRate != 0 {
		return
	}
	a.llmSampled = append(a.llmSampled, wire.NewLLMRecord(a.entity.Space, a.entity.Name, a.entity.Version, now, rec.Context, rec.Prompt))
	a.pending++
}

// materialize drains every accumulator into wire records, one rule per
// baseline kind, and resets the accumulator for the next batch.
func (a *accumulator) materialize() []wire.Record {
	var out []wire.Record
	switch a.driftType {
	case profile.DriftSPC:
		for feature, obs := range a.spcValues {
			for _, o := range obs {
				out = append(out, wire.NewSPCRecord(a.entity.Space, a.entity.Name, a.entity.Version, o.createdAt, feature, o.value))
			}
		}
		a.spcValues = make(map[string][]spcObservation)
	case profile.DriftPSI:
		now := time.Now()
		for feature, counts := range a.psiCounts {
			for binID, count := range counts {
				if count == 0 {
					continue
				}
				out = append(out, wire.NewPSIRecord(a.entity.Space, a.entity.Name, a.entity.Version, now, feature, uint32(binID), uint32(count)))
			}
		}
		a.psiCounts = make(map[string]map[int]int)
	case profile.DriftCustom:
		for _, o := range a.customVals {
			out = append(out, wire.NewCustomRecord(a.entity.Space, a.entity.Name, a.entity.Version, o.createdAt, o.metric, o.value))
		}
		a.customVals = nil
	case profile.DriftLLM:
		out = append(out, a.llmSampled...)
		a.llmSampled = nil
	}
	a.pending = 0
	return out
}
