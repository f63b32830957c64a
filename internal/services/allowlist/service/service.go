// Package service is the allowlist reconciliation engine: it converges the allowlist role
// with the quiz records from three entry points (change feed, self-check and sweep)
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rolesync/internal/modkit/repokit"
	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
	"rolesync/internal/platform/store"
	pstrings "rolesync/internal/platform/strings"
	"rolesync/internal/services/allowlist/domain"
	"rolesync/internal/services/allowlist/repo"
)

// Trigger names the entry point that asked for a convergence call; it tags logs
const (
	TriggerFeed   = "feed"
	TriggerStatus = "status"
	TriggerSweep  = "sweep"
	TriggerManual = "manual"
)

// Config for the allowlist service
type Config struct {
	GuildID    string
	RoleID     string
	PageSize   int
	JobTimeout time.Duration
	Retry      RetryPolicy
	Feed       FeedConfig
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 500
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Base <= 0 {
		c.Retry.Base = 250 * time.Millisecond
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = 5 * time.Second
	}
	if c.Feed.MinBackoff <= 0 {
		c.Feed.MinBackoff = 500 * time.Millisecond
	}
	if c.Feed.MaxBackoff < c.Feed.MinBackoff {
		c.Feed.MaxBackoff = max(30*time.Second, c.Feed.MinBackoff)
	}
	return c
}

// Service implements the allowlist ports
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[repo.Storage]
	cfg    Config

	exec     *Executor
	resolver Resolver
	granter  *Granter
	notifier Notifier
	listener *Listener
	stats    *counters
	sweeping atomic.Bool
	now      func() time.Time
}

// Deps are the outside collaborators of the engine. Messenger and Feed may be nil
type Deps struct {
	DB        repokit.TxRunner
	Binder    repokit.Binder[repo.Storage]
	Guild     domain.Guild
	Messenger domain.Messenger
	Feed      store.Listener
}

// New constructs the service. A missing guild or role id is not fatal: it is reported here
// once and every convergence call classifies as role_misconfigured
func New(d Deps, cfg Config) *Service {
	if d.DB == nil {
		panic("allowlist.Service requires a non nil TxRunner")
	}
	if d.Binder == nil {
		panic("allowlist.Service requires a non nil Repo binder")
	}
	if d.Guild == nil {
		panic("allowlist.Service requires a non nil Guild")
	}
	cfg = cfg.withDefaults()

	if cfg.GuildID == "" || cfg.RoleID == "" {
		logger.Named("allowlist").Warn().
			Str("guild_id", cfg.GuildID).
			Str("role_id", cfg.RoleID).
			Msg("allowlist role or guild not configured; grants are disabled")
	}

	s := &Service{
		db:       d.DB,
		binder:   d.Binder,
		cfg:      cfg,
		exec:     NewExecutor(cfg.JobTimeout),
		resolver: Resolver{Guild: d.Guild, GuildID: cfg.GuildID},
		granter:  &Granter{Guild: d.Guild, GuildID: cfg.GuildID, RoleID: cfg.RoleID, Retry: cfg.Retry},
		notifier: NewNotifier(d.Messenger),
		now:      time.Now,
	}
	s.stats = newCounters(s.now())
	s.listener = &Listener{
		feed:  d.Feed,
		cfg:   cfg.Feed,
		exec:  s.exec,
		stats: s.stats,
		handle: func(ctx context.Context, identity string) {
			s.converge(logger.WithIdentity(ctx, identity, TriggerFeed), identity, true)
		},
	}
	return s
}

// Run starts the executor and, when a feed is configured, the change feed listener.
// It returns after ctx is done and the in-flight job has finished
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if s.listener.feed != nil && s.cfg.Feed.Channel != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.listener.Run(ctx); err != nil {
				logger.Named("feed").Error().Err(err).Msg("change feed stopped")
			}
		}()
	}
	err := s.exec.Run(ctx)
	wg.Wait()
	return err
}

// Converge implements domain.ConvergePort
func (s *Service) Converge(ctx context.Context, identity string) (domain.Result, error) {
	return call(ctx, s.exec, func(jctx context.Context) domain.Result {
		return s.converge(logger.WithIdentity(jctx, identity, TriggerManual), identity, false)
	})
}

// Stats implements domain.StatsPort
func (s *Service) Stats() domain.Stats { return s.stats.snapshot(s.exec.Len()) }

// InstallFeed installs the trigger that publishes attempts inserts on the feed channel
func (s *Service) InstallFeed(ctx context.Context) error {
	channel := pstrings.FirstNonEmpty(s.cfg.Feed.Channel, repo.DefaultFeedChannel)
	return repokit.BindTx(ctx, s.db, s.binder, func(st repo.Storage) error {
		return st.InstallFeed(ctx, channel)
	})
}

// converge is the pipeline every entry point shares: resolve, grant, maybe notify.
// It must run on the executor
func (s *Service) converge(ctx context.Context, identity string, notify bool) domain.Result {
	var res domain.Result
	if s.cfg.GuildID == "" || s.cfg.RoleID == "" {
		res = domain.Result{Outcome: domain.OutcomeRoleMisconfigured, Cause: errNotConfigured}
	} else {
		m, found, err := s.resolver.Resolve(ctx, identity)
		switch {
		case err != nil:
			res = domain.Result{Outcome: lookupOutcome(err), Cause: err}
		case !found:
			res = domain.Result{Outcome: domain.OutcomeMemberAbsent}
		default:
			res = s.granter.EnsureGranted(ctx, &m)
			if notify && res.Outcome == domain.OutcomeGrantedNew {
				s.notifier.Notify(ctx, m)
			}
		}
	}

	s.stats.record(res.Outcome)
	logOutcome(ctx, res)
	return res
}

func logOutcome(ctx context.Context, res domain.Result) {
	log := logger.C(ctx)
	switch res.Outcome {
	case domain.OutcomeGrantedNew:
		log.Info().Str("outcome", string(res.Outcome)).Msg("allowlist role granted")
	case domain.OutcomeDomainUnavailable, domain.OutcomeMutationFailed:
		log.Warn().Err(res.Cause).Str("outcome", string(res.Outcome)).
			Str("code", perr.CodeOf(res.Cause).String()).Msg("allowlist role not granted")
	default:
		log.Debug().Err(res.Cause).Str("outcome", string(res.Outcome)).Msg("convergence done")
	}
}
