package service

import (
	"context"

	"rolesync/internal/modkit/repokit"
	"rolesync/internal/platform/logger"
	"rolesync/internal/services/allowlist/domain"
)

// Status implements domain.StatusPort. Only a passed record triggers a convergence call;
// the error is non-nil only when the record store or the executor fails
func (s *Service) Status(ctx context.Context, identity string) (domain.MemberStatus, error) {
	out := domain.MemberStatus{Identity: identity}

	rec, err := repokit.MustBind(s.binder, s.db).RecordByIdentity(ctx, identity)
	if err != nil {
		return out, err
	}

	switch rec.Status {
	case domain.RecordUnregistered:
		out.Kind = domain.StatusUnregistered
		return out, nil
	case domain.RecordPassed:
	default:
		out.Kind = domain.StatusPending
		return out, nil
	}

	res, err := call(ctx, s.exec, func(jctx context.Context) domain.Result {
		return s.converge(logger.WithIdentity(jctx, identity, TriggerStatus), identity, false)
	})
	if err != nil {
		return out, err
	}

	out.Outcome = res.Outcome
	out.Reason = res.Reason()
	switch {
	case res.Outcome.Granted():
		out.Kind = domain.StatusPassedAndGranted
	case res.Outcome == domain.OutcomeMemberAbsent:
		out.Kind = domain.StatusPassedNotInDomain
	default:
		out.Kind = domain.StatusPassedGrantFailed
	}
	return out, nil
}
