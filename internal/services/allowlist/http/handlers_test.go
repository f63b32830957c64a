package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/logger"
	pnet "rolesync/internal/platform/net"
	phttp "rolesync/internal/platform/net/http"
	"rolesync/internal/services/allowlist/domain"
)

type fakeSvc struct {
	statusCalls []string
	converged   []string
	sweepErr    error
	report      domain.SweepReport
	sweepCtx    context.Context
}

func (f *fakeSvc) Converge(_ context.Context, id string) (domain.Result, error) {
	f.converged = append(f.converged, id)
	return domain.Result{Outcome: domain.OutcomeGrantedNew}, nil
}

func (f *fakeSvc) Status(_ context.Context, id string) (domain.MemberStatus, error) {
	f.statusCalls = append(f.statusCalls, id)
	return domain.MemberStatus{Identity: id, Kind: domain.StatusPending}, nil
}

func (f *fakeSvc) Sweep(ctx context.Context) (domain.SweepReport, error) {
	f.sweepCtx = ctx
	return f.report, f.sweepErr
}

func (f *fakeSvc) Stats() domain.Stats {
	return domain.Stats{Outcomes: map[domain.Outcome]int64{domain.OutcomeGrantedNew: 3}}
}

func serve(t *testing.T, svc Service, method, path string) (*httptest.ResponseRecorder, pnet.Wire) {
	t.Helper()
	return serveBody(t, svc, method, path, "")
}

func serveBody(t *testing.T, svc Service, method, path, body string) (*httptest.ResponseRecorder, pnet.Wire) {
	t.Helper()
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, svc)
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var w pnet.Wire
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return rec, w
}

func TestStatusRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeSvc{}
	rec, w := serve(t, svc, stdhttp.MethodGet, "/members/123456789012345678/status")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data, _ := w.Data.(map[string]any)
	if data["kind"] != string(domain.StatusPending) || len(svc.statusCalls) != 1 {
		t.Fatalf("data %v calls %v", w.Data, svc.statusCalls)
	}
}

func TestStatusRoute_RejectsMalformedIdentity(t *testing.T) {
	t.Parallel()

	svc := &fakeSvc{}
	rec, w := serve(t, svc, stdhttp.MethodGet, "/members/abc/status")
	if rec.Code != stdhttp.StatusBadRequest || w.Code != perr.ErrorCodeValidation {
		t.Fatalf("status %d wire %+v", rec.Code, w)
	}
	if len(svc.statusCalls) != 0 {
		t.Fatal("service reached with a malformed identity")
	}
}

func TestConvergeRoute(t *testing.T) {
	t.Parallel()

	rec, w := serve(t, &fakeSvc{}, stdhttp.MethodPost, "/members/42/converge")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data, _ := w.Data.(map[string]any)
	if data["outcome"] != string(domain.OutcomeGrantedNew) || data["reason"] == "" {
		t.Fatalf("data %v", w.Data)
	}
}

func TestSweepRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeSvc{report: domain.SweepReport{RunID: "r1", NewlyAssigned: 2, Total: 2}}
	rec, w := serve(t, svc, stdhttp.MethodPost, "/sweep")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data, _ := w.Data.(map[string]any)
	if data["run_id"] != "r1" || data["newly_assigned"] != float64(2) {
		t.Fatalf("data %v", w.Data)
	}

	svc.sweepErr = perr.Newf(perr.ErrorCodeTooManyRequests, "a sweep is already running")
	rec, _ = serve(t, svc, stdhttp.MethodPost, "/sweep")
	if rec.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestStatsRoute(t *testing.T) {
	t.Parallel()

	rec, w := serve(t, &fakeSvc{}, stdhttp.MethodGet, "/stats")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data, _ := w.Data.(map[string]any)
	outcomes, _ := data["outcomes"].(map[string]any)
	if outcomes["granted_new"] != float64(3) {
		t.Fatalf("data %v", w.Data)
	}
}

func TestConvergeBatchRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeSvc{}
	rec, w := serveBody(t, svc, stdhttp.MethodPost, "/members/converge",
		`{"identities":["123456789012345678","223456789012345678"]}`)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	items, _ := w.Data.([]any)
	if len(items) != 2 || len(svc.converged) != 2 || svc.converged[1] != "223456789012345678" {
		t.Fatalf("data %v converged %v", w.Data, svc.converged)
	}
}

func TestConvergeBatchRoute_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty body":    "",
		"empty list":    `{"identities":[]}`,
		"malformed id":  `{"identities":["123456789012345678","abc"]}`,
		"unknown field": `{"identities":["123456789012345678"],"force":true}`,
		"not json":      `identities=1`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeSvc{}
			rec, _ := serveBody(t, svc, stdhttp.MethodPost, "/members/converge", body)
			if rec.Code != stdhttp.StatusBadRequest {
				t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
			}
			if len(svc.converged) != 0 {
				t.Fatal("service reached with a bad body")
			}
		})
	}
}

func TestSweepRoute_LogsCarryPrincipal(t *testing.T) {
	t.Parallel()

	svc := &fakeSvc{}
	r := phttp.AdaptChi(chi.NewRouter())
	r.Use(func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
			next.ServeHTTP(w, req.WithContext(pnet.WithPrincipal(req.Context(), "admin")))
		})
	})
	Register(r, svc)

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/sweep", nil))
	if rec.Code != stdhttp.StatusOK || svc.sweepCtx == nil {
		t.Fatalf("status %d ctx %v", rec.Code, svc.sweepCtx)
	}

	var buf bytes.Buffer
	lg := logger.C(svc.sweepCtx).Output(&buf)
	lg.Warn().Msg("sweep")
	if !strings.Contains(buf.String(), `"principal":"admin"`) {
		t.Fatalf("log line %s", buf.String())
	}
}
