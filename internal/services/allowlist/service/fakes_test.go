package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"rolesync/internal/modkit/repokit"
	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/store"
	"rolesync/internal/services/allowlist/domain"
	"rolesync/internal/services/allowlist/repo"
)

const (
	guildID = "900000000000000001"
	roleID  = "800000000000000001"
	alice   = "100000000000000001"
	bob     = "100000000000000002"
	carol   = "100000000000000003"
)

type fakeGuild struct {
	mu       sync.Mutex
	members  map[string][]string
	cached   map[string]bool
	catalog  map[string]bool
	roleErr  error
	fetchErr error
	addErrs  []error

	fetches, adds, roleChecks int
}

func newGuild() *fakeGuild {
	return &fakeGuild{
		members: map[string][]string{},
		cached:  map[string]bool{},
		catalog: map[string]bool{roleID: true},
	}
}

func (g *fakeGuild) join(identity string, cached bool, roles ...string) *fakeGuild {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[identity] = roles
	g.cached[identity] = cached
	return g
}

func (g *fakeGuild) membership(identity string) domain.Membership {
	return domain.Membership{
		GuildID:     guildID,
		Identity:    identity,
		DisplayName: "user-" + identity,
		Roles:       slices.Clone(g.members[identity]),
	}
}

func (g *fakeGuild) CachedMember(_, identity string) (domain.Membership, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[identity]; !ok || !g.cached[identity] {
		return domain.Membership{}, false
	}
	return g.membership(identity), true
}

func (g *fakeGuild) FetchMember(_ context.Context, _, identity string) (domain.Membership, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if g.fetchErr != nil {
		return domain.Membership{}, g.fetchErr
	}
	if _, ok := g.members[identity]; !ok {
		return domain.Membership{}, perr.NotFoundf("unknown member")
	}
	return g.membership(identity), nil
}

func (g *fakeGuild) RoleExists(_ context.Context, _, role string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roleChecks++
	if g.roleErr != nil {
		return false, g.roleErr
	}
	return g.catalog[role], nil
}

func (g *fakeGuild) AddRole(_ context.Context, _, identity, role string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adds++
	if len(g.addErrs) > 0 {
		err := g.addErrs[0]
		g.addErrs = g.addErrs[1:]
		if err != nil {
			return err
		}
	}
	if !slices.Contains(g.members[identity], role) {
		g.members[identity] = append(g.members[identity], role)
	}
	return nil
}

func (g *fakeGuild) roles(identity string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.members[identity])
}

func (g *fakeGuild) counts() (fetches, adds, roleChecks int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches, g.adds, g.roleChecks
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMessenger) Congratulate(_ context.Context, mb domain.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mb.Identity)
	return m.err
}

func (m *fakeMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeStorage struct {
	mu      sync.Mutex
	records map[string]string
	passed  []string
	recErr  error
	listErr error
	failAt  int
	onList  func(call int)
	afters  []string

	installed []string
}

func newStorage() *fakeStorage { return &fakeStorage{records: map[string]string{}, failAt: -1} }

func (s *fakeStorage) set(identity, status string) *fakeStorage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[identity] = status
	if status == "passed" {
		s.passed = append(s.passed, identity)
		slices.Sort(s.passed)
	}
	return s
}

func (s *fakeStorage) RecordByIdentity(_ context.Context, identity string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recErr != nil {
		return domain.Record{}, s.recErr
	}
	st, ok := s.records[identity]
	switch {
	case !ok:
		return domain.Record{Identity: identity, Status: domain.RecordUnregistered}, nil
	case st == "passed":
		return domain.Record{Identity: identity, Status: domain.RecordPassed}, nil
	default:
		return domain.Record{Identity: identity, Status: domain.RecordPending}, nil
	}
}

func (s *fakeStorage) ListPassed(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.Lock()
	call := len(s.afters)
	s.afters = append(s.afters, after)
	onList := s.onList
	var out []string
	for _, id := range s.passed {
		if strings.Compare(id, after) > 0 && len(out) < limit {
			out = append(out, id)
		}
	}
	fail := call == s.failAt
	s.mu.Unlock()

	if onList != nil {
		onList(call)
	}
	if fail {
		return nil, s.listErr
	}
	return out, nil
}

func (s *fakeStorage) InstallFeed(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed = append(s.installed, channel)
	return nil
}

type nopDB struct{}

func (nopDB) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, nil }
func (nopDB) Query(context.Context, string, ...any) (repokit.Rows, error)      { return nil, nil }
func (nopDB) QueryRow(context.Context, string, ...any) repokit.Row             { return nil }
func (nopDB) Tx(_ context.Context, fn func(repokit.Queryer) error) error      { return fn(nopDB{}) }

type txDB struct {
	nopDB
	txs int
}

func (d *txDB) Tx(_ context.Context, fn func(repokit.Queryer) error) error {
	d.txs++
	return fn(nopDB{})
}

type fakeFeed struct {
	mu    sync.Mutex
	calls int
	errs  []error
	fn    func(store.Notification)
	ready chan struct{}
}

func (f *fakeFeed) Listen(ctx context.Context, _ string, fn func(store.Notification)) error {
	f.mu.Lock()
	f.calls++
	f.fn = fn
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	ready := f.ready
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	<-ctx.Done()
	return ctx.Err()
}

type harness struct {
	svc   *Service
	guild *fakeGuild
	msgr  *fakeMessenger
	st    *fakeStorage
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{guild: newGuild(), msgr: &fakeMessenger{}, st: newStorage()}
	if cfg.GuildID == "" {
		cfg.GuildID = guildID
	}
	cfg.Retry.Base = time.Millisecond
	h.svc = New(Deps{
		DB:        nopDB{},
		Binder:    bindStorage(h.st),
		Guild:     h.guild,
		Messenger: h.msgr,
	}, cfg)
	h.svc.granter.sleep = func(context.Context, time.Duration) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.svc.exec.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func bindStorage(st *fakeStorage) repokit.Binder[repo.Storage] {
	return repokit.BindFunc[repo.Storage](func(repokit.Queryer) repo.Storage { return st })
}

func withRole() Config { return Config{GuildID: guildID, RoleID: roleID} }
