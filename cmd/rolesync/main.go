package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"

	"rolesync/internal/adapters/discord"
	"rolesync/internal/modkit"
	"rolesync/internal/modkit/module"
	"rolesync/internal/modkit/repokit"
	"rolesync/internal/platform/config"
	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
	phttp "rolesync/internal/platform/net/http"
	"rolesync/internal/platform/net/middleware"
	"rolesync/internal/platform/store"
	"rolesync/internal/platform/version"

	allowlist "rolesync/internal/services/allowlist/module"
)

const (
	modeBot         = "bot"
	modeSweep       = "sweep"
	modeStatus      = "status"
	modeInstallFeed = "install-feed"
)

func main() {
	var (
		fMode     = flag.String("mode", modeBot, "bot | sweep | status | install-feed")
		fIdentity = flag.String("identity", "", "discord user id for -mode=status")
		fLogSQL   = flag.Bool("log-sql", false, "trace every SQL statement")
	)
	flag.Parse()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	mode := strings.ToLower(strings.TrimSpace(*fMode))
	switch mode {
	case modeBot, modeSweep, modeStatus, modeInstallFeed:
	default:
		l.Fatal().Str("mode", mode).Msg("unknown -mode")
	}
	if mode == modeStatus && *fIdentity == "" {
		l.Fatal().Msg("-mode=status needs -identity")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "rolesync",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      *fLogSQL || pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(ctx, st)

	dcfg := discord.FromConfig(root)
	sess, err := discord.NewSession(dcfg)
	if err != nil {
		l.Panic().Err(err).Msg("discord session")
	}

	deps := modkit.FromStore(*l, root, st)
	if mode != modeBot {
		// one-shot modes never listen on the change feed
		deps.Feed = nil
	}

	mod := allowlist.New(deps, modkit.WithPorts(allowlist.Platform{
		Guild:     discord.NewGuild(sess),
		Messenger: discord.NewMessenger(sess, dcfg.Community),
	}))
	ports := module.MustPortsOf[allowlist.Ports](mod)
	opts := mod.(*allowlist.Module).Options()

	bi := version.Info()
	l.Info().
		Str("version", bi.Version).
		Str("commit", bi.Commit).
		Str("mode", mode).
		Str("guild", opts.GuildID).
		Str("role", opts.RoleID).
		Str("feed_channel", opts.FeedChannel).
		Msg("rolesync starting")

	switch mode {
	case modeInstallFeed:
		err = ports.Installer.InstallFeed(ctx)
		if err == nil {
			l.Info().Str("channel", opts.FeedChannel).Msg("change feed installed")
		}
	case modeSweep:
		err = runOnce(ctx, ports.Runner, func(ctx context.Context) error {
			rep, err := ports.Sweep.Sweep(ctx)
			printJSON(rep)
			return err
		})
	case modeStatus:
		err = runOnce(ctx, ports.Runner, func(ctx context.Context) error {
			ms, err := ports.Status.Status(ctx, strings.TrimSpace(*fIdentity))
			if err != nil {
				return err
			}
			printJSON(ms)
			return nil
		})
	default:
		err = runBot(ctx, root, st, sess, dcfg, mod, ports, opts)
	}
	if err != nil {
		l.Fatal().Err(err).Str("mode", mode).Msg("rolesync failed")
	}
}

// runBot connects the gateway, serves the ops API and runs the engine until ctx is done
func runBot(
	ctx context.Context,
	root config.Conf,
	st *store.Store,
	sess *discordgo.Session,
	dcfg discord.Config,
	mod module.Module,
	ports allowlist.Ports,
	opts allowlist.Options,
) error {
	l := logger.Get()

	if opts.FeedInstall {
		if err := ports.Installer.InstallFeed(ctx); err != nil {
			return err
		}
		l.Info().Str("channel", opts.FeedChannel).Msg("change feed installed")
	}

	discord.NewCommands(sess, dcfg, ports.Status, ports.Sweep).Attach(sess)
	if err := sess.Open(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "discord gateway")
	}
	defer func() {
		if err := sess.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close discord session")
		}
	}()

	srv := phttp.NewServer(root, func(m *chi.Mux) {
		m.Use(middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: root.MayList("API_CORS_ORIGINS"),
			MaxAge:         300,
		}))
		m.Use(middleware.Defaults(root.MayDuration("API_TIMEOUT", 5*time.Minute))...)
	})
	r := srv.Router()
	phttp.GetJSON(r, "/healthz", func(req *http.Request) (any, error) {
		if err := st.Guard(req.Context()); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "store not ready")
		}
		return struct {
			Status string            `json:"status"`
			Build  version.BuildInfo `json:"build"`
		}{"ok", version.Info()}, nil
	})
	phttp.MountProfiler(r, "/debug", root.MayBool("API_PPROF", false))
	mod.MountRoutes(r)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		errc = make(chan error, 2)
	)
	for _, run := range []func(context.Context) error{ports.Runner.Run, srv.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errc <- err
			}
			// either side stopping takes the other down
			cancel()
		}()
	}
	wg.Wait()
	close(errc)
	return <-errc
}

// runOnce runs the engine just long enough for fn
func runOnce(ctx context.Context, runner interface{ Run(context.Context) error }, fn func(context.Context) error) error {
	rctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- runner.Run(rctx) }()

	err := fn(ctx)
	cancel()
	if rerr := <-done; err == nil {
		err = rerr
	}
	return err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Get().Error().Err(err).Msg("encode output")
	}
}
