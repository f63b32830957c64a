package repokit

import (
	"context"
	"errors"
	"testing"

	"rolesync/internal/platform/store"
	"rolesync/internal/platform/testkit"
)

type fakeQ struct{}

func (f *fakeQ) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (f *fakeQ) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (f *fakeQ) QueryRow(context.Context, string, ...any) store.Row             { return nil }

var _ Queryer = (*fakeQ)(nil)

type feedRepo struct{ q Queryer }

func bindFeedRepo() Binder[feedRepo] {
	return BindFunc[feedRepo](func(q Queryer) feedRepo { return feedRepo{q: q} })
}

func TestMustBind(t *testing.T) {
	t.Parallel()

	q := &fakeQ{}
	if got := MustBind(bindFeedRepo(), q); got.q != q {
		t.Fatalf("bound to %v, want %v", got.q, q)
	}
}

func TestMustBind_PanicsOnWiringBugs(t *testing.T) {
	t.Parallel()

	testkit.MustPanic(t, func() { _ = MustBind(bindFeedRepo(), nil) })
	testkit.MustPanic(t, func() { _ = MustBind[feedRepo](nil, &fakeQ{}) })
}

func TestBindTx_BindsToTheTransaction(t *testing.T) {
	t.Parallel()

	txq := &fakeQ{}
	ftx := &fakeTxRunner{q: txq}

	var bound Queryer
	err := BindTx(context.Background(), ftx, bindFeedRepo(), func(r feedRepo) error {
		bound = r.q
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if ftx.called != 1 || bound != txq {
		t.Fatalf("tx calls=%d bound=%v", ftx.called, bound)
	}
}

func TestBindTx_PropagatesErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("trigger failed")
	err := BindTx(context.Background(), &fakeTxRunner{q: &fakeQ{}}, bindFeedRepo(), func(feedRepo) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}

	commit := errors.New("commit failed")
	err = BindTx(context.Background(), &fakeTxRunner{q: &fakeQ{}, err: commit}, bindFeedRepo(), func(feedRepo) error { return nil })
	if !errors.Is(err, commit) {
		t.Fatalf("got %v, want %v", err, commit)
	}
}

func TestBindTx_PanicsWithoutRunner(t *testing.T) {
	t.Parallel()

	testkit.MustPanic(t, func() {
		_ = BindTx(context.Background(), nil, bindFeedRepo(), func(feedRepo) error { return nil })
	})
}
