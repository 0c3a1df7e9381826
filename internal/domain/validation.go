package domain

import (
	"math"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// userIDPattern keeps user ids safe to use as path segments and object keys.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// schemaValidate is shared by every Validate call. Initialized in init() with
// the custom tags and the cross-field rules of sessions and documents.
var schemaValidate *validator.Validate

func init() {
	schemaValidate = validator.New(validator.WithRequiredStructEnabled())

	_ = schemaValidate.RegisterValidation("userid", validateUserID)
	schemaValidate.RegisterStructValidation(validateSetData, SetData{})
	schemaValidate.RegisterStructValidation(validateSession, UnifiedWorkoutSession{})
	schemaValidate.RegisterStructValidation(validateUserWorkoutData, UserWorkoutData{})
}

// ValidUserID reports whether id can own a workout document.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id) && id != "." && id != ".."
}

func validateUserID(fl validator.FieldLevel) bool {
	return ValidUserID(fl.Field().String())
}

// volumeTolerance absorbs float rounding when volumes are summed in a
// different order than they were accumulated.
func volumeMatches(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func validateSetData(sl validator.StructLevel) {
	set := sl.Current().Interface().(SetData)
	if !volumeMatches(set.Volume, set.Weight*float64(set.Reps)) {
		sl.ReportError(set.Volume, "Volume", "Volume", "eqweightxreps", "")
	}
}

func validateSession(sl validator.StructLevel) {
	s := sl.Current().Interface().(UnifiedWorkoutSession)

	var sum float64
	seen := make(map[string]struct{}, len(s.Exercises))
	for _, e := range s.Exercises {
		var exVolume float64
		for _, set := range e.Sets {
			exVolume += set.Volume
		}
		if !volumeMatches(e.TotalVolume, exVolume) {
			sl.ReportError(e.TotalVolume, "TotalVolume", "TotalVolume", "eqsetvolume", e.ExerciseID)
		}
		sum += exVolume
		if _, dup := seen[e.ExerciseID]; dup {
			sl.ReportError(e.ExerciseID, "Exercises", "Exercises", "uniqueexercise", e.ExerciseID)
		}
		seen[e.ExerciseID] = struct{}{}
	}
	if !volumeMatches(s.TotalVolume, sum) {
		sl.ReportError(s.TotalVolume, "TotalVolume", "TotalVolume", "eqexercisevolume", "")
	}

	switch {
	case s.SessionType.IsTerminal() && s.EndTime == nil:
		sl.ReportError(s.EndTime, "EndTime", "EndTime", "required_if_terminal", string(s.SessionType))
	case s.SessionType == SessionActive && s.EndTime != nil:
		sl.ReportError(s.EndTime, "EndTime", "EndTime", "excluded_if_active", "")
	case s.EndTime != nil && s.EndTime.Before(s.StartTime):
		sl.ReportError(s.EndTime, "EndTime", "EndTime", "gtefield", "StartTime")
	}
}

func validateUserWorkoutData(sl validator.StructLevel) {
	d := sl.Current().Interface().(UserWorkoutData)

	active := 0
	ids := make(map[string]struct{}, len(d.Sessions))
	for _, s := range d.Sessions {
		if s.SessionType == SessionActive {
			active++
		}
		if s.UserID != d.UserID {
			sl.ReportError(s.UserID, "Sessions", "Sessions", "sameowner", s.ID)
		}
		if _, dup := ids[s.ID]; dup {
			sl.ReportError(s.ID, "Sessions", "Sessions", "uniquesession", s.ID)
		}
		ids[s.ID] = struct{}{}
	}
	if active > 1 {
		sl.ReportError(d.Sessions, "Sessions", "Sessions", "singleactive", "")
	}
}

// Validate checks a whole user document, including every nested session,
// exercise and set.
func (d *UserWorkoutData) Validate() error {
	if err := schemaValidate.Struct(d); err != nil {
		return newValidationError(err)
	}
	return nil
}

// Validate checks a single session in isolation.
func (s *UnifiedWorkoutSession) Validate() error {
	if err := schemaValidate.Struct(s); err != nil {
		return newValidationError(err)
	}
	return nil
}

// Validate checks a single set before it is appended.
func (s *SetData) Validate() error {
	if err := schemaValidate.Struct(s); err != nil {
		return newValidationError(err)
	}
	return nil
}

// Validate checks a planned exercise list entry.
func (p *PlannedExercise) Validate() error {
	if err := schemaValidate.Struct(p); err != nil {
		return newValidationError(err)
	}
	return nil
}
