package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"fitforge/workout-engine/internal/config"
	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/service"
)

const dayLayout = "2006-01-02"

// --- Global Command Variables ---
var (
	configDir   string
	metricsFile string
	engine      *app

	staleMaxAge   time.Duration
	abandonReason string

	filterType        string
	filterWorkoutType string
	filterFrom        string
	filterTo          string
	filterLimit       int
	filterOffset      int

	setExerciseName string
	setNumber       int
	setWeight       float64
	setReps         int
	setFormScore    float64
	setRPE          float64
	setEquipment    string
	setWarmup       bool
	setDropSet      bool
	setFailure      bool

	completeRating int
	completeNotes  string

	snapshotDay string

	rootCmd = &cobra.Command{
		Use:           "workoutctl",
		Short:         "Operate the unified workout store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			engine, err = newApp(cmd.Context(), cfg)
			return err
		},
	}

	// --- Lifecycle ---
	startCmd = &cobra.Command{
		Use:   "start [user-id] [workout-type]",
		Short: "Start a new active session",
		Args:  cobra.ExactArgs(2),
		RunE:  runStart,
	}
	logSetCmd = &cobra.Command{
		Use:   "log-set [user-id] [session-id] [exercise-id]",
		Short: "Append a set to the active session",
		Args:  cobra.ExactArgs(3),
		RunE:  runLogSet,
	}
	completeCmd = &cobra.Command{
		Use:   "complete [user-id] [session-id]",
		Short: "Complete the active session and print its summary",
		Args:  cobra.ExactArgs(2),
		RunE:  runComplete,
	}
	abandonCmd = &cobra.Command{
		Use:   "abandon [user-id] [session-id]",
		Short: "Abandon the active session",
		Args:  cobra.ExactArgs(2),
		RunE:  runAbandon,
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup-stale [user-id]",
		Short: "Abandon sessions left active for too long, for one user or everyone",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCleanupStale,
	}

	// --- Queries ---
	sessionsCmd = &cobra.Command{
		Use:   "sessions [user-id]",
		Short: "List sessions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessions,
	}
	activeCmd = &cobra.Command{
		Use:   "active [user-id]",
		Short: "Print the active session, if any",
		Args:  cobra.ExactArgs(1),
		RunE:  runActive,
	}
	summaryCmd = &cobra.Command{
		Use:   "summary [user-id]",
		Short: "Print the aggregate workout summary",
		Args:  cobra.ExactArgs(1),
		RunE:  runSummary,
	}

	// --- Migration and Backups ---
	migrateCmd = &cobra.Command{
		Use:   "migrate [user-id]",
		Short: "Merge legacy sessions and daily logs into the unified store",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrate,
	}
	snapshotsCmd = &cobra.Command{
		Use:   "snapshots [user-id]",
		Short: "List backup snapshots written on one day",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshots,
	}
	restoreCmd = &cobra.Command{
		Use:   "restore [user-id] [snapshot-key]",
		Short: "Replace the user's document with a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE:  runRestore,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write run metrics to this file on exit")

	logSetCmd.Flags().StringVar(&setExerciseName, "name", "", "exercise name, required the first time an exercise is logged")
	logSetCmd.Flags().IntVar(&setNumber, "set-number", 0, "set number, 0 for the next one")
	logSetCmd.Flags().Float64Var(&setWeight, "weight", 0, "weight lifted")
	logSetCmd.Flags().IntVar(&setReps, "reps", 0, "repetitions")
	logSetCmd.Flags().Float64Var(&setFormScore, "form", 0, "form score 0-10")
	logSetCmd.Flags().Float64Var(&setRPE, "rpe", 0, "rate of perceived exertion 1-10")
	logSetCmd.Flags().StringVar(&setEquipment, "equipment", "", "equipment used")
	logSetCmd.Flags().BoolVar(&setWarmup, "warmup", false, "mark as a warmup set")
	logSetCmd.Flags().BoolVar(&setDropSet, "drop-set", false, "mark as a drop set")
	logSetCmd.Flags().BoolVar(&setFailure, "failure", false, "mark as taken to failure")

	completeCmd.Flags().IntVar(&completeRating, "rating", 0, "session rating 1-5")
	completeCmd.Flags().StringVar(&completeNotes, "notes", "", "session notes")

	abandonCmd.Flags().StringVar(&abandonReason, "reason", "", "why the session was abandoned")
	cleanupCmd.Flags().DurationVar(&staleMaxAge, "max-age", 0, "override engine.stale_session_max_age")

	sessionsCmd.Flags().StringVar(&filterType, "type", "", "session type: active, completed or abandoned")
	sessionsCmd.Flags().StringVar(&filterWorkoutType, "workout-type", "", "workout type, case-insensitive")
	sessionsCmd.Flags().StringVar(&filterFrom, "from", "", "earliest start day (YYYY-MM-DD)")
	sessionsCmd.Flags().StringVar(&filterTo, "to", "", "latest start day (YYYY-MM-DD), inclusive")
	sessionsCmd.Flags().IntVar(&filterLimit, "limit", 0, "maximum sessions, 0 for all")
	sessionsCmd.Flags().IntVar(&filterOffset, "offset", 0, "sessions to skip")

	snapshotsCmd.Flags().StringVar(&snapshotDay, "day", "", "day to list (YYYY-MM-DD), defaults to today")

	rootCmd.AddCommand(startCmd, logSetCmd, completeCmd, abandonCmd, cleanupCmd)
	rootCmd.AddCommand(sessionsCmd, activeCmd, summaryCmd)
	rootCmd.AddCommand(migrateCmd, snapshotsCmd, restoreCmd)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse(dayLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", value, err)
	}
	return &day, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	session, err := engine.sessions.Create(cmd.Context(), args[0], args[1], nil)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), session)
}

func runLogSet(cmd *cobra.Command, args []string) error {
	input := service.SetInput{
		SetNumber: setNumber,
		Weight:    setWeight,
		Reps:      setReps,
		Equipment: setEquipment,
		IsWarmup:  setWarmup,
		IsDropSet: setDropSet,
		IsFailure: setFailure,
	}
	if cmd.Flags().Changed("form") {
		input.FormScore = &setFormScore
	}
	if cmd.Flags().Changed("rpe") {
		input.RPE = &setRPE
	}
	result, err := engine.sessions.LogSet(cmd.Context(), args[0], args[1], args[2], setExerciseName, input)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runComplete(cmd *cobra.Command, args []string) error {
	var rating *int
	if cmd.Flags().Changed("rating") {
		rating = &completeRating
	}
	summary, err := engine.sessions.Complete(cmd.Context(), args[0], args[1], rating, completeNotes)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), summary)
}

func runAbandon(cmd *cobra.Command, args []string) error {
	return engine.sessions.Abandon(cmd.Context(), args[0], args[1], abandonReason)
}

func runCleanupStale(cmd *cobra.Command, args []string) error {
	maxAge := engine.cfg.Engine.StaleSessionMaxAge
	if staleMaxAge > 0 {
		maxAge = staleMaxAge
	}

	var (
		abandoned int
		err       error
	)
	if len(args) == 1 {
		abandoned, err = engine.sessions.CleanupStale(cmd.Context(), args[0], maxAge)
	} else {
		abandoned, err = engine.sessions.CleanupStaleAll(cmd.Context(), maxAge)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]int{"abandoned": abandoned})
}

func runSessions(cmd *cobra.Command, args []string) error {
	from, err := parseDay(filterFrom)
	if err != nil {
		return err
	}
	to, err := parseDay(filterTo)
	if err != nil {
		return err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}

	sessions, err := engine.sessions.ListSessions(cmd.Context(), args[0], service.SessionFilter{
		SessionType: domain.SessionType(filterType),
		WorkoutType: filterWorkoutType,
		From:        from,
		To:          to,
		Limit:       filterLimit,
		Offset:      filterOffset,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), sessions)
}

func runActive(cmd *cobra.Command, args []string) error {
	session, err := engine.sessions.ActiveSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), session)
}

func runSummary(cmd *cobra.Command, args []string) error {
	agg, err := engine.sessions.Aggregations(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), agg)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	result, err := engine.migration.Migrate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	day := time.Now().UTC()
	if snapshotDay != "" {
		parsed, err := parseDay(snapshotDay)
		if err != nil {
			return err
		}
		day = *parsed
	}
	keys, err := engine.store.Snapshots(cmd.Context(), args[0], day)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), keys)
}

func runRestore(cmd *cobra.Command, args []string) error {
	data, err := engine.store.Restore(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
		"userId":   data.UserID,
		"version":  data.Version,
		"sessions": len(data.Sessions),
	})
}
