package repokit

import (
	"context"
	"fmt"
	"reflect"
)

// Binder binds a domain repo to a Queryer: the pool for single statements, a transaction
// when several writes must land together
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor into a Binder
type BindFunc[T any] func(Queryer) T

// Bind calls the underlying function
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds b to q. A nil binder or queryer is a wiring bug and panics naming the repo
func MustBind[T any](b Binder[T], q Queryer) T {
	if b == nil || q == nil {
		panic(fmt.Sprintf("repokit: cannot bind %v (binder set=%t, queryer set=%t)", reflect.TypeFor[T](), b != nil, q != nil))
	}
	return b.Bind(q)
}

// BindTx runs fn with the repo bound to a single transaction; an error from fn rolls it back
func BindTx[T any](ctx context.Context, tx TxRunner, b Binder[T], fn func(T) error) error {
	if tx == nil {
		panic(fmt.Sprintf("repokit: cannot bind %v to a nil TxRunner", reflect.TypeFor[T]()))
	}
	return WithTx(ctx, tx, func(q Queryer) error { return fn(MustBind(b, q)) })
}
