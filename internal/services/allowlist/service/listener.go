package service

import (
	"context"
	"time"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
	"rolesync/internal/platform/store"
	"rolesync/internal/services/allowlist/repo"
)

// FeedConfig configures the change feed subscription
type FeedConfig struct {
	Channel    string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Listener turns feed notifications into queued convergence jobs. The notification
// callback only decodes and enqueues
type Listener struct {
	feed   store.Listener
	cfg    FeedConfig
	exec   *Executor
	handle func(ctx context.Context, identity string)
	stats  *counters
	sleep  func(ctx context.Context, d time.Duration) error
}

// Run keeps a LISTEN session open until ctx is done, reconnecting with capped backoff
func (l *Listener) Run(ctx context.Context) error {
	if l.feed == nil || l.cfg.Channel == "" {
		return perr.Configf("change feed not configured")
	}
	log := logger.Named("feed").With().Str("channel", l.cfg.Channel).Logger()
	sleep := l.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	backoff := l.cfg.MinBackoff
	for {
		log.Info().Msg("listening for passed attempts")
		started := time.Now()
		err := l.feed.Listen(ctx, l.cfg.Channel, l.onNotify)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > l.cfg.MaxBackoff {
			backoff = l.cfg.MinBackoff
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("change feed disconnected")
		if sleep(ctx, backoff) != nil {
			return nil
		}
		backoff = min(backoff*2, l.cfg.MaxBackoff)
	}
}

func (l *Listener) onNotify(n store.Notification) {
	l.stats.feedReceived.Add(1)
	log := logger.Named("feed")

	ev, err := repo.DecodeEvent(n.Payload)
	if err != nil {
		l.stats.feedDropped.Add(1)
		log.Debug().Err(err).Str("payload", n.Payload).Msg("malformed change event dropped")
		return
	}
	if ev.Identity == "" || !ev.Passed {
		l.stats.feedDropped.Add(1)
		log.Debug().Str("identity", ev.Identity).Bool("passed", ev.Passed).Msg("change event ignored")
		return
	}

	id := ev.Identity
	if !l.exec.Submit(func(ctx context.Context) { l.handle(ctx, id) }) {
		l.stats.feedDropped.Add(1)
		log.Warn().Str("identity", id).Msg("executor stopped; change event dropped")
	}
}
