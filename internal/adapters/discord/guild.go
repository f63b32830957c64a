package discord

import (
	"context"
	"slices"

	"github.com/bwmarrin/discordgo"

	pstrings "rolesync/internal/platform/strings"
	"rolesync/internal/services/allowlist/domain"
)

// guildAPI is the REST surface the guild adapter uses; *discordgo.Session satisfies it
type guildAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Guild implements domain.Guild over the gateway state cache and the REST api
type Guild struct {
	api   guildAPI
	state *discordgo.State
}

// NewGuild adapts a session
func NewGuild(s *discordgo.Session) *Guild { return &Guild{api: s, state: s.State} }

// CachedMember implements domain.Guild
func (g *Guild) CachedMember(guildID, identity string) (domain.Membership, bool) {
	if g.state == nil {
		return domain.Membership{}, false
	}
	m, err := g.state.Member(guildID, identity)
	if err != nil || m == nil {
		return domain.Membership{}, false
	}
	g.state.RLock()
	defer g.state.RUnlock()
	return toMembership(guildID, m), true
}

// FetchMember implements domain.Guild. A fetched member is added to the cache
func (g *Guild) FetchMember(ctx context.Context, guildID, identity string) (domain.Membership, error) {
	m, err := g.api.GuildMember(guildID, identity, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Membership{}, mapError(err, "fetch member")
	}
	if m.GuildID == "" {
		m.GuildID = guildID
	}
	out := toMembership(guildID, m)
	if g.state != nil && m.User != nil {
		_ = g.state.MemberAdd(m)
	}
	return out, nil
}

// RoleExists implements domain.Guild
func (g *Guild) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	if g.state != nil {
		if r, err := g.state.Role(guildID, roleID); err == nil && r != nil {
			return true, nil
		}
	}
	roles, err := g.api.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, mapError(err, "list roles")
	}
	return slices.ContainsFunc(roles, func(r *discordgo.Role) bool { return r != nil && r.ID == roleID }), nil
}

// AddRole implements domain.Guild and patches the cached member so the next lookup sees the role
func (g *Guild) AddRole(ctx context.Context, guildID, identity, roleID string) error {
	if err := g.api.GuildMemberRoleAdd(guildID, identity, roleID, discordgo.WithContext(ctx)); err != nil {
		return mapError(err, "add role")
	}
	g.patchCache(guildID, identity, roleID)
	return nil
}

func (g *Guild) patchCache(guildID, identity, roleID string) {
	if g.state == nil {
		return
	}
	m, err := g.state.Member(guildID, identity)
	if err != nil || m == nil {
		return
	}

	g.state.RLock()
	cp := *m
	cp.Roles = slices.Clone(m.Roles)
	g.state.RUnlock()

	if cp.User == nil || slices.Contains(cp.Roles, roleID) {
		return
	}
	cp.GuildID = guildID
	cp.Roles = append(cp.Roles, roleID)
	_ = g.state.MemberAdd(&cp)
}

func toMembership(guildID string, m *discordgo.Member) domain.Membership {
	out := domain.Membership{GuildID: guildID, Roles: slices.Clone(m.Roles), DisplayName: m.Nick}
	if m.User != nil {
		out.Identity = m.User.ID
		out.DisplayName = pstrings.FirstNonEmpty(m.Nick, m.User.GlobalName, m.User.Username)
	}
	return out
}
