// Package module defines the minimal contract for a modkit module
package module

import (
	phttp "rolesync/internal/platform/net/http"
)

// Module is what bootstrap composes: a name, optional routes and a port set
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
