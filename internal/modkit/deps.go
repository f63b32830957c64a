// Package modkit provides module wiring and core deps
package modkit

import (
	"rolesync/internal/modkit/repokit"
	"rolesync/internal/platform/config"
	"rolesync/internal/platform/logger"
	"rolesync/internal/platform/store"
)

// Deps holds core dependencies passed to modules
type Deps struct {
	Log  logger.Logger
	Cfg  config.Conf
	PG   repokit.TxRunner
	Feed store.Listener
}

// FromStore fills the storage seams from an opened store
func FromStore(log logger.Logger, cfg config.Conf, st *store.Store) Deps {
	d := Deps{Log: log, Cfg: cfg}
	if st != nil {
		d.PG = st.PG
		d.Feed = st.Feed
	}
	return d
}
