package reminder

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/carebuddy/carebuddy/internal/domain/careplan"
)

// Meal slots get a fixed clock time so regeneration is stable.
var mealSlots = []struct {
	name  string
	clock string
}{
	{"breakfast", "08:00"},
	{"lunch", "12:30"},
	{"dinner", "18:30"},
}

const exerciseClock = "17:00"

// Generate derives the full reminder set from a care plan. It is a pure
// function of (plan, now): the same plan always yields the same set, with
// scheduled times anchored to now's calendar day. Callers persist the result
// via Service.Regenerate, which supersedes any previous set.
func Generate(plan *careplan.CarePlan, patientID uuid.UUID, now time.Time) []*Reminder {
	if plan == nil {
		return nil
	}
	var out []*Reminder

	// One medication reminder per scheduled dose, ordered by time then name.
	type dose struct {
		med   careplan.Medication
		clock string
	}
	var doses []dose
	clockSet := map[string]struct{}{}
	for _, med := range plan.Medications {
		for _, clock := range med.Times {
			if _, err := time.Parse("15:04", clock); err != nil {
				continue
			}
			doses = append(doses, dose{med: med, clock: clock})
			clockSet[clock] = struct{}{}
		}
	}
	sort.Slice(doses, func(i, j int) bool {
		if doses[i].clock != doses[j].clock {
			return doses[i].clock < doses[j].clock
		}
		return doses[i].med.Name < doses[j].med.Name
	})
	for _, d := range doses {
		recurrence := d.med.Frequency
		if recurrence == "" {
			recurrence = "daily"
		}
		out = append(out, &Reminder{
			PatientID:     patientID,
			Type:          TypeMedication,
			Message:       fmt.Sprintf("Time to take %s (%s)", d.med.Name, d.med.Dosage),
			ScheduledTime: atClock(now, d.clock),
			Recurrence:    recurrence,
			Active:        true,
		})
	}

	// Glucose checks ride along with dosing times: one per distinct time.
	clocks := make([]string, 0, len(clockSet))
	for clock := range clockSet {
		clocks = append(clocks, clock)
	}
	sort.Strings(clocks)
	for _, clock := range clocks {
		out = append(out, &Reminder{
			PatientID:     patientID,
			Type:          TypeGlucoseCheck,
			Message:       "Check your blood glucose",
			ScheduledTime: atClock(now, clock),
			Recurrence:    "daily",
			Active:        true,
		})
	}

	if plan.HealthGoals.ActivityMinutesPerWeek != nil && *plan.HealthGoals.ActivityMinutesPerWeek > 0 {
		daily := (*plan.HealthGoals.ActivityMinutesPerWeek + 6) / 7
		out = append(out, &Reminder{
			PatientID:     patientID,
			Type:          TypeExercise,
			Message:       fmt.Sprintf("Aim for %d minutes of activity today", daily),
			ScheduledTime: atClock(now, exerciseClock),
			Recurrence:    "daily",
			Active:        true,
		})
	}

	for _, slot := range mealSlots {
		msg := fmt.Sprintf("Plan a healthy %s", slot.name)
		if plan.HealthGoals.DietaryGoals != nil && *plan.HealthGoals.DietaryGoals != "" {
			msg = fmt.Sprintf("Plan a healthy %s (%s)", slot.name, *plan.HealthGoals.DietaryGoals)
		}
		out = append(out, &Reminder{
			PatientID:     patientID,
			Type:          TypeDietary,
			Message:       msg,
			ScheduledTime: atClock(now, slot.clock),
			Recurrence:    "daily",
			Active:        true,
		})
	}

	return out
}

// atClock places an "HH:MM" clock time on now's calendar day.
func atClock(now time.Time, clock string) time.Time {
	t, _ := time.Parse("15:04", clock)
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}
