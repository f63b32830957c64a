// Package module wires the allowlist engine into the process using modkit
package module

import (
	"net/http"

	"rolesync/internal/modkit"
	"rolesync/internal/modkit/repokit"
	phttp "rolesync/internal/platform/net/http"
	"rolesync/internal/platform/net/middleware"
	"rolesync/internal/services/allowlist/domain"
	allowhttp "rolesync/internal/services/allowlist/http"
	"rolesync/internal/services/allowlist/repo"
	"rolesync/internal/services/allowlist/service"
)

// Platform carries the authorization domain adapters; inject it with modkit.WithPorts
type Platform struct {
	Guild     domain.Guild
	Messenger domain.Messenger
}

// Ports exposed by the allowlist module
type Ports struct {
	Converge  domain.ConvergePort
	Status    domain.StatusPort
	Sweep     domain.SweepPort
	Stats     domain.StatsPort
	Runner    domain.RunnerPort
	Installer domain.FeedInstallerPort
}

// Module implements the allowlist module
type Module struct {
	deps   modkit.Deps
	opts   Options
	name   string
	prefix string

	mws []func(http.Handler) http.Handler

	svc   *service.Service
	ports Ports
}

// New constructs the allowlist module. The Platform must come in through modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("allowlist"), modkit.WithPrefix("/v1")}, opts...)...)

	plat, ok := b.Ports.(Platform)
	if !ok || plat.Guild == nil {
		panic("allowlist module requires a Platform with a Guild (modkit.WithPorts)")
	}

	o := FromConfig(deps.Cfg)
	svc := service.New(service.Deps{
		DB:        repokit.TxRunner(deps.PG),
		Binder:    repo.NewPG(),
		Guild:     plat.Guild,
		Messenger: plat.Messenger,
		Feed:      deps.Feed,
	}, o.serviceConfig())

	m := &Module{
		deps:   deps,
		opts:   o,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    []func(http.Handler) http.Handler{middleware.AdminToken(o.AdminToken)},
		svc:    svc,
	}
	m.ports = Ports{
		Converge:  svc,
		Status:    svc,
		Sweep:     svc,
		Stats:     svc,
		Runner:    svc,
		Installer: svc,
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }

// Options returns the resolved configuration
func (m *Module) Options() Options { return m.opts }

// MountRoutes mounts the admin-guarded routes under the module prefix
func (m *Module) MountRoutes(r phttp.Router) {
	r.Route(m.prefix, func(rr phttp.Router) {
		rr.Use(m.mws...)
		allowhttp.Register(rr, m.svc)
	})
}
