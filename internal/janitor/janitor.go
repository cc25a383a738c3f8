// Package janitor runs scheduled housekeeping for the web server.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/logging"
)

// DefaultSchedule prunes once an hour.
const DefaultSchedule = "0 * * * *"

const runTimeout = time.Minute

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Pruner deletes expired session revocations.
type Pruner interface {
	PruneRevoked(ctx context.Context) (int64, error)
}

// Janitor prunes revoked sessions on a cron schedule.
type Janitor struct {
	pruner   Pruner
	schedule cron.Schedule
	cron     *cron.Cron
	log      zerolog.Logger
}

// Opts holds parameters for creating a Janitor.
type Opts struct {
	Pruner   Pruner
	Schedule string // defaults to DefaultSchedule
	Logger   *zerolog.Logger
}

// New creates a Janitor. The schedule is parsed up front.
func New(opts Opts) (*Janitor, error) {
	if opts.Pruner == nil {
		return nil, fmt.Errorf("janitor: pruner is required")
	}
	expr := opts.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("janitor: schedule %q: %w", expr, err)
	}

	log := logging.OrNop(opts.Logger).With().Str("component", "janitor").Logger()
	cl := cronLogger{log: log}
	return &Janitor{
		pruner:   opts.Pruner,
		schedule: sched,
		cron:     cron.New(cron.WithParser(cronParser), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:      log,
	}, nil
}

// RunOnce prunes immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	n, err := j.pruner.PruneRevoked(ctx)
	if err != nil {
		return 0, fmt.Errorf("janitor: prune: %w", err)
	}
	j.log.Debug().Int64("pruned", n).Msg("prune finished")
	return n, nil
}

// Next returns the first scheduled run after t.
func (j *Janitor) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

// Start runs the schedule in the background until ctx is cancelled. The
// returned channel closes once the scheduler has stopped and any running
// job has finished.
func (j *Janitor) Start(ctx context.Context) <-chan struct{} {
	j.cron.Schedule(j.schedule, cron.FuncJob(func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error().Err(err).Msg("scheduled prune failed")
		}
	}))
	j.cron.Start()
	j.log.Info().Time("next", j.Next(time.Now())).Msg("janitor started")

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-j.cron.Stop().Done()
		close(done)
	}()
	return done
}

// cronLogger routes robfig/cron's logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
