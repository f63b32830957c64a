package module

import (
	"time"

	"rolesync/internal/platform/config"
	"rolesync/internal/services/allowlist/repo"
	"rolesync/internal/services/allowlist/service"
)

// Options holds configuration settings for the allowlist module
type Options struct {
	GuildID    string
	RoleID     string
	AdminToken string

	FeedChannel string
	FeedInstall bool

	PageSize         int
	JobTimeout       time.Duration
	GrantMaxAttempts int
	GrantRetryBase   time.Duration
}

// FromConfig reads configuration settings from the config.Conf. Unset guild or role ids
// are kept empty: the engine classifies that as misconfiguration instead of failing start
func FromConfig(cfg config.Conf) Options {
	al := cfg.Prefix("ALLOWLIST_")
	return Options{
		GuildID:    cfg.MaySnowflake("DISCORD_GUILD_ID"),
		RoleID:     al.MaySnowflake("ROLE_ID"),
		AdminToken: cfg.MayString("API_ADMIN_TOKEN", ""),

		FeedChannel: al.MayString("FEED_CHANNEL", repo.DefaultFeedChannel),
		FeedInstall: al.MayBool("FEED_INSTALL", false),

		PageSize:         al.MayInt("SWEEP_PAGE_SIZE", 500),
		JobTimeout:       al.MayDuration("JOB_TIMEOUT", 30*time.Second),
		GrantMaxAttempts: al.MayInt("GRANT_MAX_ATTEMPTS", 3),
		GrantRetryBase:   al.MayDuration("GRANT_RETRY_BASE", 250*time.Millisecond),
	}
}

func (o Options) serviceConfig() service.Config {
	return service.Config{
		GuildID:    o.GuildID,
		RoleID:     o.RoleID,
		PageSize:   o.PageSize,
		JobTimeout: o.JobTimeout,
		Retry:      service.RetryPolicy{MaxAttempts: o.GrantMaxAttempts, Base: o.GrantRetryBase},
		Feed:       service.FeedConfig{Channel: o.FeedChannel},
	}
}
