// Package pg opens the pgxpool used by the store and carries its query tracer
package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pool
type Config struct {
	URL     string
	AppName string

	// MaxConns caps connections available to queries; zero keeps the pgxpool default
	MaxConns int32

	// Reserved connections are held for the life of the process (LISTEN). They are added
	// on top of MaxConns and kept warm so the feed never waits behind queries
	Reserved int32

	SlowMs int
}

// PG is a pool plus the tracer the store adapter reports to
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig

// Open parses cfg.URL into a pool config and creates the pool.
// It does not contact the server; the store pings with backoff afterwards
func Open(ctx context.Context, cfg Config, tracer QueryTracer) (*PG, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.AppName != "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.Reserved > 0 {
		pcfg.MaxConns += cfg.Reserved
		pcfg.MinConns = max(pcfg.MinConns, cfg.Reserved)
	}
	return pcfg, nil
}

// Close closes the pool; nil safe
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
