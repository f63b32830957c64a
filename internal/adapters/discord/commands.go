package discord

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"rolesync/internal/platform/logger"
	"rolesync/internal/services/allowlist/domain"
)

const defaultReplyTimeout = 30 * time.Second

type chatAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// permissionSource computes a message author's channel permissions; *discordgo.State satisfies it
type permissionSource interface {
	MessagePermissions(m *discordgo.Message) (int64, error)
}

// Commands serves the !verify and !sync prefix commands
type Commands struct {
	api    chatAPI
	perms  permissionSource
	status domain.StatusPort
	sweep  domain.SweepPort
	cfg    Config

	replyTimeout time.Duration
}

// NewCommands wires the command surface onto a session's REST api and state
func NewCommands(s *discordgo.Session, cfg Config, status domain.StatusPort, sweep domain.SweepPort) *Commands {
	return &Commands{
		api:          s,
		perms:        s.State,
		status:       status,
		sweep:        sweep,
		cfg:          cfg,
		replyTimeout: defaultReplyTimeout,
	}
}

// Attach registers the gateway handlers
func (c *Commands) Attach(s *discordgo.Session) {
	s.AddHandler(c.onReady)
	s.AddHandler(c.onMessage)
}

func (c *Commands) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log := logger.Named("discord")
	if r.User != nil {
		log.Info().Str("user", r.User.Username).Str("id", r.User.ID).Msg("gateway ready")
	}
	if err := s.UpdateWatchStatus(0, c.cfg.Community); err != nil {
		log.Warn().Err(err).Msg("presence update failed")
	}
}

func (c *Commands) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	c.Handle(context.Background(), m.Message)
}

// Handle dispatches one chat message. Messages from bots or without the prefix are ignored
func (c *Commands) Handle(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, ok := parseCommand(c.cfg.Prefix, m.Content)
	if !ok {
		return
	}
	ctx = logger.WithRequest(ctx, m.ID)
	ctx = logger.WithIdentity(ctx, m.Author.ID, "command")

	switch name {
	case "verify":
		c.verify(ctx, m)
	case "sync":
		c.sync(ctx, m)
	}
}

func parseCommand(prefix, content string) (string, bool) {
	if prefix == "" {
		prefix = "!"
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(content), prefix)
	if !ok {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

func (c *Commands) verify(ctx context.Context, m *discordgo.Message) {
	st, err := c.status.Status(ctx, m.Author.ID)
	embed := statusEmbed(c.cfg.Community, st)
	if err != nil {
		logger.C(ctx).Error().Err(err).Msg("status check failed")
		embed = statusErrorEmbed(c.cfg.Community)
	}
	c.reply(ctx, m, embed)
}

func (c *Commands) sync(ctx context.Context, m *discordgo.Message) {
	log := logger.C(ctx)
	if !c.isAdmin(m) {
		log.Info().Msg("sync refused: not an administrator")
		c.replyText(ctx, m, "⛔ You need administrator permission to run this command.")
		return
	}

	progress, err := c.send(ctx, m.ChannelID, &discordgo.MessageSend{Content: "🔄 Syncing roles for all passed users..."})
	if err != nil {
		log.Warn().Err(err).Msg("could not post sync progress")
	}

	rep, serr := c.sweep.Sweep(ctx)
	embed := sweepEmbed(rep, serr)

	if progress != nil {
		edit := discordgo.NewMessageEdit(progress.ChannelID, progress.ID).SetContent("").SetEmbed(embed)
		rctx, cancel := context.WithTimeout(ctx, c.timeout())
		defer cancel()
		_, err := c.api.ChannelMessageEditComplex(edit, discordgo.WithContext(rctx))
		if err == nil {
			return
		}
		log.Warn().Err(mapError(err, "edit sync message")).Msg("falling back to a new message")
	}
	c.reply(ctx, m, embed)
}

// isAdmin accepts the configured admin role or the Administrator permission, and only
// for messages sent in the configured guild
func (c *Commands) isAdmin(m *discordgo.Message) bool {
	if m.Member == nil || c.cfg.GuildID == "" || m.GuildID != c.cfg.GuildID {
		return false
	}
	if c.cfg.AdminRoleID != "" && slices.Contains(m.Member.Roles, c.cfg.AdminRoleID) {
		return true
	}
	if c.perms == nil {
		return false
	}
	perms, err := c.perms.MessagePermissions(m)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator
}

func (c *Commands) timeout() time.Duration {
	if c.replyTimeout <= 0 {
		return defaultReplyTimeout
	}
	return c.replyTimeout
}

func (c *Commands) reply(ctx context.Context, m *discordgo.Message, embed *discordgo.MessageEmbed) {
	_, err := c.send(ctx, m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: m.Reference(),
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("command reply failed")
	}
}

func (c *Commands) replyText(ctx context.Context, m *discordgo.Message, text string) {
	if _, err := c.send(ctx, m.ChannelID, &discordgo.MessageSend{Content: text, Reference: m.Reference()}); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("command reply failed")
	}
}

func (c *Commands) send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	out, err := c.api.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(rctx))
	return out, mapError(err, "send message")
}
