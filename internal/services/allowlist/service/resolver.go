package service

import (
	"context"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/services/allowlist/domain"
)

// Resolver finds the guild member for an identity: local cache first, then one live lookup
type Resolver struct {
	Guild   domain.Guild
	GuildID string
}

// Resolve returns found=false with a nil error when the identity is not a member, including
// malformed identities. Lookup failures come back as coded errors
func (r Resolver) Resolve(ctx context.Context, identity string) (domain.Membership, bool, error) {
	if r.GuildID == "" {
		return domain.Membership{}, false, perr.Configf("guild id not configured")
	}
	if !domain.ValidIdentity(identity) {
		return domain.Membership{}, false, nil
	}
	if m, ok := r.Guild.CachedMember(r.GuildID, identity); ok {
		return m, true, nil
	}

	m, err := r.Guild.FetchMember(ctx, r.GuildID, identity)
	switch {
	case err == nil:
		return m, true, nil
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		return domain.Membership{}, false, nil
	case perr.CodeOf(err) != perr.ErrorCodeUnknown:
		return domain.Membership{}, false, err
	default:
		return domain.Membership{}, false, perr.Wrap(err, perr.ErrorCodeUnavailable, "member lookup")
	}
}

// lookupOutcome classifies a resolver or catalog error
func lookupOutcome(err error) domain.Outcome {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeConfiguration, perr.ErrorCodeForbidden, perr.ErrorCodeNotFound:
		return domain.OutcomeRoleMisconfigured
	default:
		return domain.OutcomeDomainUnavailable
	}
}
