package analytics

import (
	"math"

	"fitforge/workout-engine/internal/domain"
)

const overloadFactor = 1.03

// mostRecentWith returns the latest completed session, other than excludeID,
// containing an exercise named name, along with that exercise.
func mostRecentWith(name, excludeID string, history []domain.UnifiedWorkoutSession) (*domain.UnifiedWorkoutSession, *domain.WorkoutExercise) {
	var (
		latest   *domain.UnifiedWorkoutSession
		exercise *domain.WorkoutExercise
	)
	for i := range history {
		s := &history[i]
		if s.ID == excludeID || s.SessionType != domain.SessionCompleted {
			continue
		}
		if latest != nil && !s.StartTime.After(latest.StartTime) {
			continue
		}
		for j := range s.Exercises {
			if SameExercise(s.Exercises[j].ExerciseName, name) {
				latest, exercise = s, &s.Exercises[j]
				break
			}
		}
	}
	return latest, exercise
}

// RecommendOverload builds the progressive-overload block for one exercise of
// current. It returns nil when no earlier completed session has the exercise.
func RecommendOverload(current *domain.UnifiedWorkoutSession, e *domain.WorkoutExercise, history []domain.UnifiedWorkoutSession) *domain.ProgressiveOverload {
	_, previous := mostRecentWith(e.ExerciseName, current.ID, history)
	if previous == nil {
		return nil
	}

	prevBest := previous.MaxWeight()
	currentBest := e.MaxWeight()

	var progress float64
	if prevBest > 0 {
		progress = round((currentBest-prevBest)/prevBest*100, 1)
	}

	return &domain.ProgressiveOverload{
		PreviousBestWeight: prevBest,
		PreviousBestVolume: ExerciseVolume(previous),
		RecommendedWeight:  recommendWeight(prevBest),
		RecommendedReps:    recommendReps(e),
		ProgressPercentage: progress,
	}
}

// ApplyOverload attaches a recommendation to every exercise of current that
// has a predecessor.
func ApplyOverload(current *domain.UnifiedWorkoutSession, history []domain.UnifiedWorkoutSession) {
	for i := range current.Exercises {
		current.Exercises[i].ProgressiveOverload = RecommendOverload(current, &current.Exercises[i], history)
	}
}

// recommendWeight is previous best × 1.03 rounded up to a whole unit. The
// product is first rounded to micro-units so 100×1.03 stays 103.
func recommendWeight(prevBest float64) float64 {
	return math.Ceil(round(prevBest*overloadFactor, 6))
}

// recommendReps carries the target rep count forward, falling back to the
// reps of the heaviest set when no target was planned.
func recommendReps(e *domain.WorkoutExercise) int {
	if e.TargetReps > 0 {
		return e.TargetReps
	}
	reps := 0
	heaviest := -1.0
	for _, s := range e.Sets {
		if s.Weight > heaviest {
			heaviest, reps = s.Weight, s.Reps
		}
	}
	return reps
}
