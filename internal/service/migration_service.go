package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fitforge/workout-engine/internal/analytics"
	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
	"fitforge/workout-engine/internal/telemetry"
)

// MigrationResult reports what one migration run did. Errors lists every
// legacy record that could not be converted; they never abort the run.
type MigrationResult struct {
	MigratedSessions  int                     `json:"migratedSessions"`
	MigratedLogs      int                     `json:"migratedLogs"`
	DuplicatesDropped int                     `json:"duplicatesDropped"`
	TotalSessions     int                     `json:"totalSessions"`
	Errors            []domain.MigrationError `json:"errors"`
}

// --- Service Interface ---
type MigrationService interface {
	Migrate(ctx context.Context, userID string) (*MigrationResult, error)
}

// --- Service Implementation ---

type migrationService struct {
	store   RecordStore
	legacy  repository.LegacySource
	events  repository.EventRepository
	metrics *telemetry.Metrics
	muscles *domain.MuscleGroupTable
	now     func() time.Time
}

// NewMigrationService creates the legacy migration module.
func NewMigrationService(store RecordStore, legacy repository.LegacySource, events repository.EventRepository, metrics *telemetry.Metrics, opts ...Option) MigrationService {
	o := newOptions(opts)
	return &migrationService{
		store:   store,
		legacy:  legacy,
		events:  events,
		metrics: metrics,
		muscles: o.muscles,
		now:     o.now,
	}
}

// Migrate converts both legacy shapes and merges them into the user's
// document. Sessions already in the document win over converted ones with
// the same start time and workout type, so running it again adds nothing.
func (s *migrationService) Migrate(ctx context.Context, userID string) (*MigrationResult, error) {
	if !domain.ValidUserID(userID) {
		return nil, domain.NewValidationError("userId (userid)")
	}
	conv := &converter{userID: userID, muscles: s.muscles}
	result := &MigrationResult{Errors: []domain.MigrationError{}}

	// 1. Convert both sources independently
	structured, err := s.convertStructured(ctx, conv, result)
	if err != nil {
		return nil, err
	}
	logged, err := s.convertDailyLogs(ctx, conv, result)
	if err != nil {
		return nil, err
	}

	// 2. Merge, replace and recompute under the user's lock
	_, err = s.store.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		result.MigratedSessions, result.MigratedLogs, result.DuplicatesDropped = 0, 0, 0

		merged := make([]domain.UnifiedWorkoutSession, 0, len(data.Sessions)+len(structured)+len(logged))
		keys := make(map[string]struct{})
		ids := make(map[string]struct{})
		add := func(session domain.UnifiedWorkoutSession) bool {
			key := dedupKey(&session)
			if _, dup := keys[key]; dup {
				result.DuplicatesDropped++
				return false
			}
			if _, taken := ids[session.ID]; taken {
				session.ID = legacyID(userID, string(session.Source), session.ID, key)
				renumberSets(&session)
			}
			keys[key] = struct{}{}
			ids[session.ID] = struct{}{}
			merged = append(merged, session)
			return true
		}

		for _, session := range data.Sessions {
			keys[dedupKey(&session)] = struct{}{}
			ids[session.ID] = struct{}{}
			merged = append(merged, session)
		}
		for _, session := range structured {
			if add(session) {
				result.MigratedSessions++
			}
		}
		for _, session := range logged {
			if add(session) {
				result.MigratedLogs++
			}
		}

		if result.MigratedSessions+result.MigratedLogs == 0 {
			result.TotalSessions = len(data.Sessions)
			return errSkipSave
		}
		data.Sessions = merged
		data.Aggregations = analytics.ComputeAggregations(data.Sessions, s.now().UTC())
		result.TotalSessions = len(merged)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 3. Audit
	s.metrics.CounterMigratedRecords.WithLabelValues(sourceStructured).Add(float64(result.MigratedSessions))
	s.metrics.CounterMigratedRecords.WithLabelValues(sourceDailyLogs).Add(float64(result.MigratedLogs))
	s.metrics.CounterMigrationErrors.Add(float64(len(result.Errors)))

	audit := domain.MigrationAudit{
		UserID:            userID,
		RanAt:             s.now().UTC(),
		MigratedSessions:  result.MigratedSessions,
		MigratedLogs:      result.MigratedLogs,
		DuplicatesDropped: result.DuplicatesDropped,
		TotalSessions:     result.TotalSessions,
		Errors:            result.Errors,
	}
	if err := s.events.SaveMigrationAudit(ctx, audit); err != nil {
		s.metrics.CounterEventFailures.Inc()
		logrus.WithField("userId", userID).WithError(err).Error("failed to save migration audit")
	}

	logrus.WithFields(logrus.Fields{
		"userId":            userID,
		"migratedSessions":  result.MigratedSessions,
		"migratedLogs":      result.MigratedLogs,
		"duplicatesDropped": result.DuplicatesDropped,
		"errors":            len(result.Errors),
	}).Info("legacy migration finished")
	return result, nil
}

// renumberSets rewrites set ids after a session was given a new id.
func renumberSets(session *domain.UnifiedWorkoutSession) {
	for i := range session.Exercises {
		e := &session.Exercises[i]
		for j := range e.Sets {
			e.Sets[j].SetID = fmt.Sprintf("%s-%s-%d", session.ID, e.ExerciseID, j+1)
		}
	}
}

func (r *MigrationResult) fail(source, record string, err error) {
	r.Errors = append(r.Errors, domain.MigrationError{Source: source, Record: record, Reason: err.Error()})
}

// convertStructured reads the structured sessions file. Only context errors
// are returned; everything else is recorded in result.
func (s *migrationService) convertStructured(ctx context.Context, conv *converter, result *MigrationResult) ([]domain.UnifiedWorkoutSession, error) {
	raw, err := s.legacy.StructuredSessions(ctx, conv.userID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.fail(sourceStructured, conv.userID+".json", err)
		return nil, nil
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		result.fail(sourceStructured, conv.userID+".json", err)
		return nil, nil
	}

	sessions := make([]domain.UnifiedWorkoutSession, 0, len(entries))
	for i, entry := range entries {
		session, err := conv.structuredSession(entry)
		if err != nil {
			result.fail(sourceStructured, fmt.Sprintf("%s.json[%d]", conv.userID, i), err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// convertDailyLogs groups every per-day entry by session id, in the order
// the ids first appear, and folds each group into a session.
func (s *migrationService) convertDailyLogs(ctx context.Context, conv *converter, result *MigrationResult) ([]domain.UnifiedWorkoutSession, error) {
	logs, err := s.legacy.DailyLogs(ctx, conv.userID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.fail(sourceDailyLogs, conv.userID, err)
		return nil, nil
	}

	groups := make(map[string]*logGroup)
	var order []*logGroup
	for _, day := range logs {
		var entries []json.RawMessage
		if err := json.Unmarshal(day.Content, &entries); err != nil {
			result.fail(sourceDailyLogs, day.Name, err)
			continue
		}
		for i, raw := range entries {
			record := fmt.Sprintf("%s[%d]", day.Name, i)
			var entry legacySetLog
			if err := json.Unmarshal(raw, &entry); err != nil {
				result.fail(sourceDailyLogs, record, err)
				continue
			}
			entry.SessionID = strings.TrimSpace(entry.SessionID)
			if entry.SessionID == "" {
				result.fail(sourceDailyLogs, record, errors.New("missing sessionId"))
				continue
			}
			if entry.Timestamp == nil || entry.Timestamp.IsZero() {
				if day.Day.IsZero() {
					result.fail(sourceDailyLogs, record, errors.New("missing timestamp"))
					continue
				}
				at := day.Day
				entry.Timestamp = &at
			}

			g, ok := groups[entry.SessionID]
			if !ok {
				g = &logGroup{sessionID: entry.SessionID}
				groups[entry.SessionID] = g
				order = append(order, g)
			}
			g.entries = append(g.entries, entry)
		}
	}

	sessions := make([]domain.UnifiedWorkoutSession, 0, len(order))
	for _, g := range order {
		session, ok, err := conv.logSession(g)
		if err != nil {
			result.fail(sourceDailyLogs, "session "+g.sessionID, err)
			continue
		}
		if !ok {
			logrus.WithFields(logrus.Fields{
				"userId":    conv.userID,
				"sessionId": g.sessionID,
			}).Debug("legacy log group has no exercises, dropped")
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
