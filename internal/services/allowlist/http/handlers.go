// Package http provides the ops http transport for the allowlist engine
package http

import (
	"context"
	stdhttp "net/http"

	"rolesync/internal/platform/logger"
	pnet "rolesync/internal/platform/net"
	phttp "rolesync/internal/platform/net/http"
	"rolesync/internal/platform/net/http/bind"
	"rolesync/internal/services/allowlist/domain"
)

// Service is what the transport needs from the engine
type Service interface {
	domain.ConvergePort
	domain.StatusPort
	domain.SweepPort
	domain.StatsPort
}

// Register mounts allowlist endpoints on the given router
func Register(r phttp.Router, s Service) {
	h := &handlers{svc: s}

	// self-check for one member; a passed record runs one convergence call
	phttp.GetJSON(r, "/members/{identity}/status", h.status)

	// converge one member now, whatever the feed said
	r.Post("/members/{identity}/converge", phttp.JSONHandlerNoBody(h.converge))

	// converge a short list of members in one call, in order
	phttp.PostJSON(r, "/members/converge", h.convergeBatch)

	// full reconciliation over every passed record
	r.Post("/sweep", phttp.JSONHandlerNoBody(h.sweep))

	phttp.GetJSON(r, "/stats", h.stats)
}

type handlers struct{ svc Service }

type memberPath struct {
	Identity string `json:"identity" validate:"required,snowflake"`
}

// ConvergeOutput is the body of a converge response
type ConvergeOutput struct {
	Identity string         `json:"identity"`
	Outcome  domain.Outcome `json:"outcome"`
	Reason   string         `json:"reason"`
}

// ConvergeBatchInput lists the members to converge
type ConvergeBatchInput struct {
	Identities []string `json:"identities" validate:"required,min=1,max=100,dive,snowflake"`
}

// callerCtx carries the authenticated ops caller into the engine logs
func callerCtx(r *stdhttp.Request) context.Context {
	return logger.WithPrincipal(r.Context(), pnet.Principal(r.Context()))
}

func identityParam(r *stdhttp.Request) (string, error) {
	p := memberPath{Identity: phttp.URLParam(r, "identity")}
	if err := bind.Struct(p); err != nil {
		return "", err
	}
	return p.Identity, nil
}

func (h *handlers) status(r *stdhttp.Request) (any, error) {
	id, err := identityParam(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Status(callerCtx(r), id)
}

func (h *handlers) converge(r *stdhttp.Request) (any, error) {
	id, err := identityParam(r)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.Converge(callerCtx(r), id)
	if err != nil {
		return nil, err
	}
	return ConvergeOutput{Identity: id, Outcome: res.Outcome, Reason: res.Reason()}, nil
}

func (h *handlers) convergeBatch(r *stdhttp.Request, in ConvergeBatchInput) (any, error) {
	// an empty body decodes to the zero value without validation
	if err := bind.Struct(in); err != nil {
		return nil, err
	}
	ctx := callerCtx(r)
	out := make([]ConvergeOutput, 0, len(in.Identities))
	for _, id := range in.Identities {
		res, err := h.svc.Converge(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ConvergeOutput{Identity: id, Outcome: res.Outcome, Reason: res.Reason()})
	}
	return out, nil
}

func (h *handlers) sweep(r *stdhttp.Request) (any, error) {
	return h.svc.Sweep(callerCtx(r))
}

func (h *handlers) stats(*stdhttp.Request) (any, error) {
	return h.svc.Stats(), nil
}
