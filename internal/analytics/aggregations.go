package analytics

import (
	"math"
	"sort"
	"time"

	"fitforge/workout-engine/internal/domain"
)

const (
	hoursPerDay          = 24
	daysPerWeek          = 7
	topMuscleGroupCount  = 3
	longestStreakMaxGap  = 2
	currentStreakMaxSkip = 1
)

// ComputeAggregations rebuilds the per-user summary from the full session
// list. Only completed sessions contribute.
func ComputeAggregations(sessions []domain.UnifiedWorkoutSession, now time.Time) domain.Aggregations {
	completed := make([]domain.UnifiedWorkoutSession, 0, len(sessions))
	for _, s := range sessions {
		if s.SessionType == domain.SessionCompleted {
			completed = append(completed, s)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].StartTime.Before(completed[j].StartTime)
	})

	agg := domain.Aggregations{
		TotalWorkouts:         len(completed),
		StrongestMuscleGroups: []domain.MuscleGroupVolume{},
	}
	if len(completed) == 0 {
		return agg
	}

	for _, s := range completed {
		agg.TotalVolume += s.TotalVolume
		agg.TotalCalories += s.CaloriesBurned
		agg.TotalDuration += s.Duration
		agg.PersonalRecordCount += len(s.PersonalRecords)
	}
	agg.TotalVolume = round(agg.TotalVolume, 2)

	days := distinctDays(completed)
	agg.CurrentStreak = CurrentStreak(days, now)
	agg.LongestStreak = LongestStreak(days)

	first, last := completed[0].StartTime, completed[len(completed)-1].StartTime
	agg.AverageWorkoutsPerWeek = AverageWorkoutsPerWeek(len(completed), first, last)
	lastDate := last
	agg.LastWorkoutDate = &lastDate

	agg.FavoriteWorkoutType = FavoriteWorkoutType(completed)
	agg.StrongestMuscleGroups = StrongestMuscleGroups(completed, topMuscleGroupCount)
	return agg
}

// calendarDay truncates t to its UTC calendar date.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(earlier, later time.Time) int {
	return int(math.Round(later.Sub(earlier).Hours() / hoursPerDay))
}

// distinctDays returns the calendar days with at least one session, oldest first.
func distinctDays(sessions []domain.UnifiedWorkoutSession) []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, s := range sessions {
		d := calendarDay(s.StartTime)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// CurrentStreak walks workout days newest to oldest. Each day must fall on
// the expected day (starting with today); the first miss of a single day is
// tolerated once, anything else ends the streak. days must be sorted oldest first.
func CurrentStreak(days []time.Time, now time.Time) int {
	expected := calendarDay(now)
	streak := 0
	skipped := false
	for i := len(days) - 1; i >= 0; i-- {
		gap := daysBetween(days[i], expected)
		if gap < 0 {
			// future-dated, not part of a streak ending today
			continue
		}
		if gap > 0 {
			if skipped || gap > currentStreakMaxSkip {
				break
			}
			skipped = true
		}
		streak++
		expected = days[i].AddDate(0, 0, -1)
	}
	return streak
}

// LongestStreak walks workout days oldest to newest, extending the run while
// consecutive days are at most two apart (one rest day) and returns the
// longest run seen. days must be sorted oldest first.
func LongestStreak(days []time.Time) int {
	if len(days) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i-1], days[i]) <= longestStreakMaxGap {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// AverageWorkoutsPerWeek is count / max(1, daySpan/7) where daySpan runs from
// the first to the last session.
func AverageWorkoutsPerWeek(count int, first, last time.Time) float64 {
	if count == 0 {
		return 0
	}
	weeks := last.Sub(first).Hours() / hoursPerDay / daysPerWeek
	return round(float64(count)/math.Max(1, weeks), 2)
}

// FavoriteWorkoutType is the most frequent workout type. Ties go to the type
// that appeared first; sessions must be sorted oldest first.
func FavoriteWorkoutType(sessions []domain.UnifiedWorkoutSession) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range sessions {
		if s.WorkoutType == "" {
			continue
		}
		if _, ok := counts[s.WorkoutType]; !ok {
			order = append(order, s.WorkoutType)
		}
		counts[s.WorkoutType]++
	}
	favorite, best := "", 0
	for _, wt := range order {
		if counts[wt] > best {
			favorite, best = wt, counts[wt]
		}
	}
	return favorite
}

// StrongestMuscleGroups sums exercise volume into each tagged muscle group
// and returns the top n by volume, ties broken by name.
func StrongestMuscleGroups(sessions []domain.UnifiedWorkoutSession, n int) []domain.MuscleGroupVolume {
	totals := make(map[string]float64)
	for i := range sessions {
		for j := range sessions[i].Exercises {
			e := &sessions[i].Exercises[j]
			v := ExerciseVolume(e)
			for _, g := range e.MuscleGroups {
				totals[g] += v
			}
		}
	}

	groups := make([]domain.MuscleGroupVolume, 0, len(totals))
	for g, v := range totals {
		groups = append(groups, domain.MuscleGroupVolume{MuscleGroup: g, Volume: round(v, 2)})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Volume != groups[j].Volume {
			return groups[i].Volume > groups[j].Volume
		}
		return groups[i].MuscleGroup < groups[j].MuscleGroup
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}
