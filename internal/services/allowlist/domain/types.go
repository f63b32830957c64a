// Package domain defines the types and ports of the allowlist reconciliation engine
package domain

import (
	"slices"
	"time"

	pstrings "rolesync/internal/platform/strings"
)

// RecordStatus is the authoritative quiz status for one identity
type RecordStatus string

const (
	// RecordUnregistered means the identity never signed in on the quiz site
	RecordUnregistered RecordStatus = "unregistered"

	// RecordPending covers every stored status other than passed
	RecordPending RecordStatus = "pending"

	// RecordPassed entitles the identity to the allowlist role
	RecordPassed RecordStatus = "passed"
)

// Record is the authoritative row for one identity
type Record struct {
	Identity string
	Status   RecordStatus
}

// ChangeEvent is one decoded feed notification. Delivery is at least once and unordered
type ChangeEvent struct {
	Identity string
	Passed   bool
}

// Membership is a point-in-time view of a guild member; re-resolved on every call
type Membership struct {
	GuildID     string
	Identity    string
	DisplayName string
	Roles       []string
}

// HasRole reports whether roleID is in the member's role set
func (m Membership) HasRole(roleID string) bool { return slices.Contains(m.Roles, roleID) }

// Outcome classifies one convergence call
type Outcome string

const (
	OutcomeGrantedNew        Outcome = "granted_new"
	OutcomeAlreadyGranted    Outcome = "already_granted"
	OutcomeRoleMisconfigured Outcome = "role_misconfigured"
	OutcomeMemberAbsent      Outcome = "member_absent"
	OutcomeDomainUnavailable Outcome = "domain_unavailable"
	OutcomeMutationFailed    Outcome = "mutation_failed"
)

// Outcomes lists every outcome in reporting order
var Outcomes = []Outcome{
	OutcomeGrantedNew,
	OutcomeAlreadyGranted,
	OutcomeRoleMisconfigured,
	OutcomeMemberAbsent,
	OutcomeDomainUnavailable,
	OutcomeMutationFailed,
}

// Granted reports whether the member holds the role after the call
func (o Outcome) Granted() bool {
	return o == OutcomeGrantedNew || o == OutcomeAlreadyGranted
}

// Result is an outcome plus the cause for the failing ones
type Result struct {
	Outcome Outcome
	Cause   error
}

// Reason is a short human readable explanation for command replies
func (r Result) Reason() string {
	switch r.Outcome {
	case OutcomeGrantedNew:
		return "role assigned"
	case OutcomeAlreadyGranted:
		return "already has role"
	case OutcomeRoleMisconfigured:
		if r.Cause != nil {
			return r.Cause.Error()
		}
		return "role not configured"
	case OutcomeMemberAbsent:
		return "not in server"
	case OutcomeDomainUnavailable:
		return "discord is unavailable, try again later"
	case OutcomeMutationFailed:
		if r.Cause != nil {
			return "could not assign role: " + r.Cause.Error()
		}
		return "could not assign role"
	default:
		return string(r.Outcome)
	}
}

// StatusKind is what a member self-check reports
type StatusKind string

const (
	StatusUnregistered      StatusKind = "unregistered"
	StatusPending           StatusKind = "pending"
	StatusPassedNotInDomain StatusKind = "passed_not_in_domain"
	StatusPassedAndGranted  StatusKind = "passed_and_granted"
	StatusPassedGrantFailed StatusKind = "passed_grant_failed"
)

// MemberStatus is the self-check answer. Outcome is set only when a convergence call ran
type MemberStatus struct {
	Identity string     `json:"identity"`
	Kind     StatusKind `json:"kind"`
	Outcome  Outcome    `json:"outcome,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// SweepReport tallies one sweep. The four counters sum to Total
type SweepReport struct {
	RunID         string    `json:"run_id"`
	NewlyAssigned int       `json:"newly_assigned"`
	AlreadyHad    int       `json:"already_had"`
	Failed        int       `json:"failed"`
	NotInDomain   int       `json:"not_in_domain"`
	Total         int       `json:"total"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Aborted       bool      `json:"aborted"`
}

// Tally folds one outcome into the report
func (r *SweepReport) Tally(o Outcome) {
	r.Total++
	switch o {
	case OutcomeGrantedNew:
		r.NewlyAssigned++
	case OutcomeAlreadyGranted:
		r.AlreadyHad++
	case OutcomeMemberAbsent:
		r.NotInDomain++
	default:
		r.Failed++
	}
}

// Stats is a snapshot of engine counters since process start
type Stats struct {
	StartedAt    time.Time         `json:"started_at"`
	Outcomes     map[Outcome]int64 `json:"outcomes"`
	FeedReceived int64             `json:"feed_received"`
	FeedDropped  int64             `json:"feed_dropped"`
	Queued       int               `json:"queued"`
	Sweeps       int64             `json:"sweeps"`
	LastSweep    *SweepReport      `json:"last_sweep,omitempty"`
}

// ValidIdentity reports whether s is a well formed snowflake
func ValidIdentity(s string) bool { return pstrings.IsSnowflake(s) }
