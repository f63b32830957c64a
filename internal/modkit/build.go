package modkit

import pstrings "rolesync/internal/platform/strings"

// Built is the resolved option set a module reads from
type Built struct {
	Name   string
	Prefix string
	Ports  any
}

// Build applies opts in order; a later option wins. A non-empty prefix is normalized to /path
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.prefix != "" {
		c.prefix = pstrings.MustPrefix(c.prefix)
	}
	return Built{Name: c.name, Prefix: c.prefix, Ports: c.ports}
}
