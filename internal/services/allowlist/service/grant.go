package service

import (
	"context"
	"slices"
	"time"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
	"rolesync/internal/services/allowlist/domain"
)

// RetryPolicy bounds retries of the role mutation on transient failures
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

func (p RetryPolicy) attempts() int { return max(1, p.MaxAttempts) }

func (p RetryPolicy) delay(retry int) time.Duration {
	d := p.Base << (retry - 1)
	if p.Max > 0 && (d > p.Max || d <= 0) {
		d = p.Max
	}
	return d
}

// Granter makes sure a member holds the allowlist role. It never removes roles
type Granter struct {
	Guild   domain.Guild
	GuildID string
	RoleID  string
	Retry   RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
}

// EnsureGranted classifies exactly once. On granted_new m.Roles gains the role
func (g *Granter) EnsureGranted(ctx context.Context, m *domain.Membership) domain.Result {
	if g.RoleID == "" || g.GuildID == "" {
		return domain.Result{Outcome: domain.OutcomeRoleMisconfigured, Cause: errNotConfigured}
	}

	exists, err := g.Guild.RoleExists(ctx, g.GuildID, g.RoleID)
	if err != nil {
		return domain.Result{Outcome: lookupOutcome(err), Cause: err}
	}
	if !exists {
		return domain.Result{
			Outcome: domain.OutcomeRoleMisconfigured,
			Cause:   perr.NotFoundf("role not found in server"),
		}
	}

	if m.HasRole(g.RoleID) {
		return domain.Result{Outcome: domain.OutcomeAlreadyGranted}
	}

	if err := g.addRole(ctx, m.Identity); err != nil {
		return domain.Result{Outcome: domain.OutcomeMutationFailed, Cause: err}
	}
	m.Roles = append(slices.Clone(m.Roles), g.RoleID)
	return domain.Result{Outcome: domain.OutcomeGrantedNew}
}

func (g *Granter) addRole(ctx context.Context, identity string) error {
	sleep := g.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for i := 0; i < g.Retry.attempts(); i++ {
		if i > 0 {
			d := g.Retry.delay(i)
			logger.C(ctx).Debug().Err(err).Int("attempt", i+1).Dur("after", d).Msg("retrying role grant")
			if sleep(ctx, d) != nil {
				return err
			}
		}
		err = g.Guild.AddRole(ctx, g.GuildID, identity, g.RoleID)
		if err == nil || !perr.Transient(err) {
			return err
		}
	}
	return err
}

var errNotConfigured = perr.Configf("allowlist role or guild id not configured")

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
