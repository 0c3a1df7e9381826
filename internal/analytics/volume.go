// Package analytics derives facts from workout sessions: volume, calories,
// personal records, progressive-overload targets and the per-user aggregate
// summary. Every function is pure; callers pass the clock in explicitly.
package analytics

import (
	"math"
	"strings"
	"time"

	"fitforge/workout-engine/internal/domain"
)

const (
	caloriesPerMinute     = 5.5
	caloriesPerVolumeUnit = 0.1
)

// SetVolume is weight × reps.
func SetVolume(weight float64, reps int) float64 {
	return weight * float64(reps)
}

// ExerciseVolume sums the volume of every set of the exercise.
func ExerciseVolume(e *domain.WorkoutExercise) float64 {
	var total float64
	for _, s := range e.Sets {
		total += s.Volume
	}
	return total
}

// SessionVolume sums the volume of every exercise in the session.
func SessionVolume(s *domain.UnifiedWorkoutSession) float64 {
	var total float64
	for i := range s.Exercises {
		total += ExerciseVolume(&s.Exercises[i])
	}
	return total
}

// DurationMinutes is the whole number of minutes between start and end,
// never negative.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// CaloriesBurned estimates energy use as round(duration×5.5 + volume×0.1).
func CaloriesBurned(durationMinutes int, totalVolume float64) int {
	return int(math.Round(float64(durationMinutes)*caloriesPerMinute + totalVolume*caloriesPerVolumeUnit))
}

// FormScoreAverage is the mean form score of the sets that carry one.
func FormScoreAverage(sets []domain.SetData) *float64 {
	var sum float64
	n := 0
	for _, s := range sets {
		if s.FormScore != nil {
			sum += *s.FormScore
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := round(sum/float64(n), 2)
	return &avg
}

// SessionAverages returns the session-level average form score (mean of the
// exercise averages) and average RPE (mean over every set that has one).
func SessionAverages(s *domain.UnifiedWorkoutSession) (form, rpe *float64) {
	var formSum, rpeSum float64
	formN, rpeN := 0, 0
	for _, e := range s.Exercises {
		if avg := FormScoreAverage(e.Sets); avg != nil {
			formSum += *avg
			formN++
		}
		for _, set := range e.Sets {
			if set.RPE != nil {
				rpeSum += *set.RPE
				rpeN++
			}
		}
	}
	if formN > 0 {
		v := round(formSum/float64(formN), 2)
		form = &v
	}
	if rpeN > 0 {
		v := round(rpeSum/float64(rpeN), 2)
		rpe = &v
	}
	return form, rpe
}

// SameExercise matches exercises across sessions by display name.
func SameExercise(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
