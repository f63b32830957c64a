package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeUnauthorized, http.StatusUnauthorized},
		{ErrorCodeForbidden, http.StatusForbidden},
		{ErrorCodeTooManyRequests, http.StatusTooManyRequests},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeConfiguration, http.StatusConflict},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q", e.Error())
	}

	src := stderrs.New("root")
	w := Wrapf(src, ErrorCodeForbidden, "add role %s", "r1")
	if w.Error() != "add role r1: root" {
		t.Fatalf("Wrapf().Error = %q", w.Error())
	}
	if stderrs.Unwrap(w) != src {
		t.Fatalf("Wrapf lost orig")
	}
	if got, ok := As(w); !ok || got.Code() != ErrorCodeForbidden {
		t.Fatalf("As() failed for our error")
	}
	if _, ok := As(src); ok {
		t.Fatalf("As() true for foreign error")
	}

	tagged := WithOp(w, "grant")
	if oe, _ := As(tagged); oe.Op() != "grant" {
		t.Fatalf("WithOp failed")
	}
	if orig, _ := As(w); orig.Op() != "" {
		t.Fatalf("WithOp mutated original")
	}
	if WithOp(src, "x") != src {
		t.Fatalf("WithOp should pass foreign errors through")
	}

	if wf := WireFrom(nil); wf != (Wire{}) {
		t.Fatalf("WireFrom(nil) = %+v", wf)
	}
	if wf := WireFrom(src); wf.Code != ErrorCodeUnknown || wf.Message != "root" {
		t.Fatalf("WireFrom(foreign) = %+v", wf)
	}
	if wf := WireFrom(w); wf.Code != ErrorCodeForbidden || wf.Message != "add role r1" {
		t.Fatalf("WireFrom(ours) = %+v", wf)
	}

	deep := fmt.Errorf("l2: %w", fmt.Errorf("l1: %w", src))
	if Root(deep) != src {
		t.Fatalf("Root() failed")
	}
	if IsCode(nil, ErrorCodeUnknown) {
		t.Fatalf("IsCode(nil) should be false")
	}
	if !IsCode(ErrNotFound, ErrorCodeNotFound) || !IsCode(Configf("x"), ErrorCodeConfiguration) {
		t.Fatalf("sentinel/sugar code mismatch")
	}
}

func TestCodeString(t *testing.T) {
	if ErrorCodeTooManyRequests.String() != "too_many_requests" {
		t.Fatalf("String() = %q", ErrorCodeTooManyRequests.String())
	}
	if ErrorCode(999).String() != "code_999" {
		t.Fatalf("unknown code String() = %q", ErrorCode(999).String())
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Unavailablef("gateway"), true},
		{Newf(ErrorCodeTooManyRequests, "429"), true},
		{Forbiddenf("missing permissions"), false},
		{NotFoundf("member"), false},
		{stderrs.New("deadlock detected"), true},
		{stderrs.New("boom"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := Transient(c.err); got != c.want {
			t.Fatalf("Transient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
