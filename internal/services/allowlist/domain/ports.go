package domain

import "context"

// Guild is the authorization domain seen by the engine. Errors carry perr codes:
// NotFound for unknown members, Unavailable or TooManyRequests for transient failures
type Guild interface {
	// CachedMember reads the local member cache without any remote call
	CachedMember(guildID, identity string) (Membership, bool)
	FetchMember(ctx context.Context, guildID, identity string) (Membership, error)
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
	AddRole(ctx context.Context, guildID, identity, roleID string) error
}

// Messenger delivers the private congratulations message
type Messenger interface {
	Congratulate(ctx context.Context, m Membership) error
}

// ConvergePort runs one convergence call for an identity
type ConvergePort interface {
	Converge(ctx context.Context, identity string) (Result, error)
}

// StatusPort answers member self-checks
type StatusPort interface {
	Status(ctx context.Context, identity string) (MemberStatus, error)
}

// SweepPort runs a full reconciliation over every passed identity
type SweepPort interface {
	Sweep(ctx context.Context) (SweepReport, error)
}

// StatsPort exposes engine counters
type StatsPort interface {
	Stats() Stats
}

// RunnerPort owns the long-running loops (executor and change feed)
type RunnerPort interface {
	Run(ctx context.Context) error
}

// FeedInstallerPort installs the database trigger behind the change feed
type FeedInstallerPort interface {
	InstallFeed(ctx context.Context) error
}
