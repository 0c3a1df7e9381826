package analytics

import (
	"fitforge/workout-engine/internal/domain"
)

// historicalBest is the best weight and volume for one exercise over a set
// of sessions.
type historicalBest struct {
	weight float64
	volume float64
}

// bestFor scans every completed session other than excludeID for exercises
// named name.
func bestFor(name, excludeID string, history []domain.UnifiedWorkoutSession) historicalBest {
	var best historicalBest
	for i := range history {
		s := &history[i]
		if s.ID == excludeID || s.SessionType != domain.SessionCompleted {
			continue
		}
		for j := range s.Exercises {
			e := &s.Exercises[j]
			if !SameExercise(e.ExerciseName, name) {
				continue
			}
			if w := e.MaxWeight(); w > best.weight {
				best.weight = w
			}
			if v := ExerciseVolume(e); v > best.volume {
				best.volume = v
			}
		}
	}
	return best
}

// DetectPersonalRecords compares each exercise of current against every other
// completed session. A record needs a strictly positive historical best that
// the current session exceeds, so an exercise's first appearance never counts.
func DetectPersonalRecords(current *domain.UnifiedWorkoutSession, history []domain.UnifiedWorkoutSession) []domain.PersonalRecord {
	records := []domain.PersonalRecord{}
	achievedAt := current.StartTime
	if current.EndTime != nil {
		achievedAt = *current.EndTime
	}

	for i := range current.Exercises {
		e := &current.Exercises[i]
		best := bestFor(e.ExerciseName, current.ID, history)

		if w := e.MaxWeight(); best.weight > 0 && w > best.weight {
			records = append(records, domain.PersonalRecord{
				SessionID:             current.ID,
				ExerciseID:            e.ExerciseID,
				ExerciseName:          e.ExerciseName,
				Type:                  domain.RecordWeight,
				PreviousValue:         best.weight,
				NewValue:              w,
				ImprovementPercentage: round((w-best.weight)/best.weight*100, 1),
				AchievedAt:            achievedAt,
			})
		}
		if v := ExerciseVolume(e); best.volume > 0 && v > best.volume {
			records = append(records, domain.PersonalRecord{
				SessionID:             current.ID,
				ExerciseID:            e.ExerciseID,
				ExerciseName:          e.ExerciseName,
				Type:                  domain.RecordVolume,
				PreviousValue:         best.volume,
				NewValue:              v,
				ImprovementPercentage: round((v-best.volume)/best.volume*100, 1),
				AchievedAt:            achievedAt,
			})
		}
	}
	return records
}
