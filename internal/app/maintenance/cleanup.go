package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/probuildhq/probuild/internal/auth"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/logger"
)

const defaultSchedule = "@every 1h"

// Cleaner coordinates background maintenance tasks: expiring stale project
// invitations, purging dead password-reset tokens, and removing expired sessions.
type Cleaner struct {
	sessions    *iauth.SessionService
	invitations *services.InvitationService
	resets      *services.PasswordResetService
	cron        *cron.Cron
	log         *zap.Logger
	schedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification shared by all sweeps.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding sweep being skipped.
func NewCleaner(sessions *iauth.SessionService, invitations *services.InvitationService, resets *services.PasswordResetService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:    sessions,
		invitations: invitations,
		resets:      resets,
		schedule:    defaultSchedule,
		log:         logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the sweep with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions == nil && c.invitations == nil && c.resets == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured sweeps sequentially. Used by the scheduler,
// in tests, and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.invitations != nil {
		if expired, err := c.invitations.ExpireStale(ctx); err != nil {
			errs = multierr.Append(errs, err)
		} else if expired > 0 {
			c.log.Info("expired stale invitations", zap.Int64("count", expired))
		}
	}

	if c.resets != nil {
		if purged, err := c.resets.PurgeStale(ctx); err != nil {
			errs = multierr.Append(errs, err)
		} else if purged > 0 {
			c.log.Info("purged stale password reset tokens", zap.Int64("count", purged))
		}
	}

	if c.sessions != nil {
		if removed, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		} else if removed > 0 {
			c.log.Info("removed expired sessions", zap.Int64("count", removed))
		}
	}

	return errs
}
