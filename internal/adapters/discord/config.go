// Package discord adapts discordgo to the allowlist engine: guild lookups and grants,
// the congratulations DM and the prefix commands
package discord

import (
	"github.com/bwmarrin/discordgo"

	"rolesync/internal/platform/config"
	perr "rolesync/internal/platform/errors"
)

// Config for the discord adapter
type Config struct {
	Token       string
	GuildID     string
	AdminRoleID string
	Prefix      string
	Community   string
}

// FromConfig reads the DISCORD_*, ADMIN_ROLE_ID, BOT_PREFIX and COMMUNITY_NAME keys
func FromConfig(cfg config.Conf) Config {
	return Config{
		Token:       cfg.MayString("DISCORD_BOT_TOKEN", ""),
		GuildID:     cfg.MaySnowflake("DISCORD_GUILD_ID"),
		AdminRoleID: cfg.MaySnowflake("ADMIN_ROLE_ID"),
		Prefix:      cfg.MayString("BOT_PREFIX", "!"),
		Community:   cfg.MayString("COMMUNITY_NAME", "the community"),
	}
}

// NewSession builds a session with the intents the bot needs: guild members for the
// member cache, message content for prefix commands
func NewSession(c Config) (*discordgo.Session, error) {
	if c.Token == "" {
		return nil, perr.Configf("DISCORD_BOT_TOKEN is required")
	}
	s, err := discordgo.New("Bot " + c.Token)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "discord session")
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	s.StateEnabled = true
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	return s, nil
}
