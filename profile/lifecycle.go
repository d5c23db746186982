package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"scouter/pkg/apperror"
)

// scouterVersion is stamped onto every profile created by this build so
// stored baselines can be migrated if the numeric format ever changes.
const scouterVersion = "1.0"

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// New assembles a Profile for the given entity and variant payload. Exactly
// one of spc/psi/custom/llm must be non-nil and must match entity.DriftType;
// this is how the closed tagged union is enforced in Go without a sum type.
func New(entity Entity, schedule string, spc *SPCProfile, psi *PSIProfile, custom *CustomProfile, llm *LLMProfile) (*Profile, error) {
	if entity.EntityID == "" {
		return nil, apperror.ErrMissingEntity
	}
	schedule, nextRun, err := resolveSchedule(schedule)
	if err != nil {
		return nil, err
	}

	uid, err := uuid.NewV7()
	if err != nil {
		uid = uuid.New()
	}

	p := &Profile{
		UID:            uid.String(),
		EntityID:       entity.EntityID,
		DriftType:      entity.DriftType,
		ScouterVersion: scouterVersion,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		Active:         true,
		Schedule:       schedule,
		NextRun:        nextRun,
		Status:         StatusPending,
		SPC:            spc,
		PSI:            psi,
		Custom:         custom,
		LLM:            llm,
	}

	if err := p.checkVariantMatchesType(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) checkVariantMatchesType() error {
	set := 0
	for _, v := range []bool{p.SPC != nil, p.PSI != nil, p.Custom != nil, p.LLM != nil} {
		if v {
			set++
		}
	}
	if set != 1 {
		return apperror.New(apperror.CodeInvalidProfile, "exactly one drift variant payload must be set")
	}
	switch p.DriftType {
	case DriftSPC:
		if p.SPC == nil {
			return apperror.New(apperror.CodeInvalidDriftType, "drift_type=spc requires an spc payload")
		}
	case DriftPSI:
		if p.PSI == nil {
			return apperror.New(apperror.CodeInvalidDriftType, "drift_type=psi requires a psi payload")
		}
	case DriftCustom:
		if p.Custom == nil {
			return apperror.New(apperror.CodeInvalidDriftType, "drift_type=custom requires a custom payload")
		}
	case DriftLLM:
		if p.LLM == nil {
			return apperror.New(apperror.CodeInvalidDriftType, "drift_type=llm requires an llm payload")
		}
	default:
		return apperror.New(apperror.CodeInvalidDriftType, "unknown drift type")
	}
	return nil
}

// resolveSchedule parses a cron expression (or named preset) and returns
// the canonical schedule string alongside its first run time.
func resolveSchedule(schedule string) (string, time.Time, error) {
	if canonical, ok := cronPresets[schedule]; ok {
		schedule = canonical
	}
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return "", time.Time{}, apperror.Wrap(err, apperror.CodeInvalidProfile, "invalid cron schedule")
	}
	return schedule, sched.Next(time.Now()), nil
}

// cronPresets maps named schedule shortcuts onto concrete 6-field cron
// strings.
var cronPresets = map[string]string{
	"Every5Minutes": "0 */5 * * * *",
	"EveryHour":     "0 0 * * * *",
	"EveryDay":      "0 0 0 * * *",
}

// Claim atomically transitions a pending (or stale-processing) profile into
// Processing, stamping ProcessingAt. Callers perform the actual conditional
// SQL UPDATE; this mutates the in-memory copy returned by a successful
// claim so the rest of the evaluator pipeline can proceed without a second
// read.
func (p *Profile) Claim(now time.Time) {
	p.Status = StatusProcessing
	p.ProcessingAt = &now
	p.UpdatedAt = now
}

// IsStale reports whether a Processing profile has been claimed for longer
// than maxAge, making it eligible for the scheduler's stale-reclaim pass.
func (p *Profile) IsStale(now time.Time, maxAge time.Duration) bool {
	return p.Status == StatusProcessing && p.ProcessingAt != nil && now.Sub(*p.ProcessingAt) > maxAge
}

// Reclaim resets a stale Processing profile back to Pending so it can be
// claimed again.
func (p *Profile) Reclaim(now time.Time) {
	p.Status = StatusPending
	p.ProcessingAt = nil
	p.UpdatedAt = now
}

// Complete advances the schedule by one cron step, sets PreviousRun, and
// marks the tick Completed. Fail calls this too, so a poisoned profile
// never starves future ticks waiting on the same failing run.
func (p *Profile) Complete(now time.Time) error {
	_, next, err := resolveSchedule(p.Schedule)
	if err != nil {
		return err
	}
	p.PreviousRun = now
	p.NextRun = next
	p.Status = StatusCompleted
	p.ProcessingAt = nil
	p.UpdatedAt = now
	return nil
}

// Fail marks the tick Failed but still advances NextRun, so a profile
// whose evaluation errors out doesn't get claimed again until its next
// scheduled run.
func (p *Profile) Fail(now time.Time) error {
	if err := p.Complete(now); err != nil {
		return err
	}
	p.Status = StatusFailed
	return nil
}

// Deactivate tombstones the profile: it stops being scheduled but its rows
// are never deleted while referencing data exists.
func (p *Profile) Deactivate(now time.Time) {
	p.Active = false
	p.UpdatedAt = now
}

// Activate un-tombstones a profile, making it eligible for scheduling again.
func (p *Profile) Activate(now time.Time) {
	p.Active = true
	p.UpdatedAt = now
}
