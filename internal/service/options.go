package service

import (
	"time"

	"fitforge/workout-engine/internal/domain"
)

// Option customizes the services.
type Option func(*options)

type options struct {
	now     func() time.Time
	muscles *domain.MuscleGroupTable
}

func newOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		muscles: domain.DefaultMuscleGroupTable(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMuscleGroupTable replaces the default exercise-name lookup table.
func WithMuscleGroupTable(t *domain.MuscleGroupTable) Option {
	return func(o *options) {
		o.muscles = t
	}
}
