// Package scheduler fires recurring report generations from the schedules
// stored on reports.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

const DefaultFireTimeout = 30 * time.Minute

// Store is the report persistence the scheduler drives. report.Manager
// satisfies it.
type Store interface {
	Get(ctx context.Context, id string) (*models.Report, error)
	Generate(ctx context.Context, id string) (*models.Report, error)
	SetSchedule(ctx context.Context, id string, schedule *models.ReportSchedule) error
	ScheduledReports(ctx context.Context) ([]models.Report, error)
}

type Options struct {
	Location    *time.Location
	FireTimeout time.Duration
	Registerer  prometheus.Registerer
}

type Scheduler struct {
	store   Store
	cron    *cron.Cron
	loc     *time.Location
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID

	triggers prometheus.Gauge
	fires    *prometheus.CounterVec
}

func New(store Store, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.FireTimeout <= 0 {
		opts.FireTimeout = DefaultFireTimeout
	}

	logger := cronLogger{log.With().Str("component", "scheduler").Logger()}
	factory := promauto.With(opts.Registerer)
	return &Scheduler{
		store: store,
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		loc:     opts.Location,
		timeout: opts.FireTimeout,
		entries: make(map[string]cron.EntryID),
		triggers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tedecom",
			Subsystem: "scheduler",
			Name:      "triggers",
			Help:      "Installed report schedule triggers.",
		}),
		fires: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tedecom",
			Subsystem: "scheduler",
			Name:      "fires_total",
			Help:      "Scheduled report generations by result.",
		}, []string{"result"}),
	}
}

// Init installs a trigger for every stored schedule and starts the cron
// loop. It must run once at startup.
func (s *Scheduler) Init(ctx context.Context) error {
	reports, err := s.store.ScheduledReports(ctx)
	if err != nil {
		return err
	}

	installed := 0
	for _, r := range reports {
		if err := s.install(r.ID, r.Schedule); err != nil {
			log.Error().Err(err).Str("component", "scheduler").Str("report_id", r.ID).Msg("Skipping invalid stored schedule")
			continue
		}
		installed++
	}

	s.cron.Start()
	log.Info().Str("component", "scheduler").Int("triggers", installed).Msg("Scheduler started")
	return nil
}

// Shutdown stops the cron loop and waits for running fires until ctx is
// done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleReport validates and stores the schedule, then replaces the
// report's trigger.
func (s *Scheduler) ScheduleReport(ctx context.Context, id string, schedule *models.ReportSchedule) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	if err := Validate(schedule); err != nil {
		return err
	}
	if strings.TrimSpace(schedule.Time) == "" {
		schedule.Time = DefaultTime
	}
	if err := s.store.SetSchedule(ctx, id, schedule); err != nil {
		return err
	}
	if err := s.install(id, schedule); err != nil {
		return err
	}

	log.Info().
		Str("component", "scheduler").
		Str("report_id", id).
		Str("frequency", string(schedule.Frequency)).
		Str("time", schedule.Time).
		Msg("Report scheduled")
	return nil
}

// CancelScheduledReport removes the report's trigger and clears its stored
// schedule. Cancelling a report without a schedule does nothing.
func (s *Scheduler) CancelScheduledReport(ctx context.Context, id string) error {
	removed := s.Remove(id)
	if err := s.store.SetSchedule(ctx, id, nil); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if removed {
		log.Info().Str("component", "scheduler").Str("report_id", id).Msg("Report schedule cancelled")
	}
	return nil
}

// Remove drops the report's trigger and reports whether one existed.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(entry)
	delete(s.entries, id)
	s.triggers.Set(float64(len(s.entries)))
	return true
}

// NextRun returns the next fire time of the report's trigger.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	e := s.cron.Entry(entry)
	if !e.Valid() {
		return time.Time{}, false
	}
	return e.Schedule.Next(time.Now().In(s.loc)), true
}

// Triggers returns the ids of reports with an installed trigger.
func (s *Scheduler) Triggers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) install(id string, schedule *models.ReportSchedule) error {
	sched, err := parse(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}
	s.entries[id] = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
	s.triggers.Set(float64(len(s.entries)))
	return nil
}

// fire runs one scheduled generation. Failures keep the trigger, except for
// a report that no longer exists.
func (s *Scheduler) fire(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger := log.With().Str("component", "scheduler").Str("report_id", id).Logger()
	logger.Info().Msg("Running scheduled report")

	_, err := s.store.Generate(ctx, id)
	switch {
	case err == nil:
		s.fires.WithLabelValues("completed").Inc()
	case errors.Is(err, apperrors.ErrNotFound):
		s.fires.WithLabelValues("not_found").Inc()
		s.Remove(id)
		logger.Warn().Msg("Scheduled report no longer exists, trigger removed")
	default:
		s.fires.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("Scheduled report generation failed")
	}
}

// cronLogger adapts zerolog to cron's logger interface.
type cronLogger struct {
	zl zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.zl.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
