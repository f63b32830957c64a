package service

import (
	"context"

	"github.com/google/uuid"

	"rolesync/internal/modkit/repokit"
	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
	"rolesync/internal/services/allowlist/domain"
)

// Sweep implements domain.SweepPort. Every passed identity is converged once, in listing
// order, through the executor. On a listing failure or cancellation the partial report comes
// back with the error; cancellation also marks it aborted
func (s *Service) Sweep(ctx context.Context) (domain.SweepReport, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return domain.SweepReport{}, perr.Newf(perr.ErrorCodeTooManyRequests, "a sweep is already running")
	}
	defer s.sweeping.Store(false)

	rep := domain.SweepReport{RunID: uuid.NewString(), StartedAt: s.now().UTC()}
	ctx = logger.WithRequest(ctx, rep.RunID)
	log := logger.C(ctx)
	log.Info().Int("page_size", s.cfg.PageSize).Msg("sweep started")

	err := s.sweep(ctx, &rep)
	rep.FinishedAt = s.now().UTC()
	s.stats.sweepDone(rep)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("total", rep.Total).
		Int("newly_assigned", rep.NewlyAssigned).
		Int("already_had", rep.AlreadyHad).
		Int("failed", rep.Failed).
		Int("not_in_domain", rep.NotInDomain).
		Bool("aborted", rep.Aborted).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("sweep finished")
	return rep, err
}

func (s *Service) sweep(ctx context.Context, rep *domain.SweepReport) error {
	st := repokit.MustBind(s.binder, s.db)
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			rep.Aborted = true
			return err
		}
		ids, err := st.ListPassed(ctx, after, s.cfg.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				rep.Aborted = true
				return ctx.Err()
			}
			return err
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				rep.Aborted = true
				return err
			}
			res, err := call(ctx, s.exec, func(jctx context.Context) domain.Result {
				return s.converge(logger.WithIdentity(jctx, id, TriggerSweep), id, false)
			})
			if err != nil {
				rep.Aborted = true
				return err
			}
			rep.Tally(res.Outcome)
		}

		if len(ids) < s.cfg.PageSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}
