package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWalksWrappedChains(t *testing.T) {
	inner := E(NotFound, "actor %s", "a1")
	outer := fmt.Errorf("fetch sheet: %w", inner)
	if KindOf(outer) != NotFound {
		t.Fatalf("kind lost through fmt wrap: %v", KindOf(outer))
	}
	if !Is(outer, NotFound) || Is(outer, Auth) {
		t.Fatalf("Is misclassified %v", outer)
	}
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	if KindOf(errors.New("boom")) != Internal {
		t.Fatal("untyped errors must read as internal")
	}
	if Is(nil, Internal) {
		t.Fatal("nil is not an error of any kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Auth, http.StatusUnauthorized},
		{NotFound, http.StatusNotFound},
		{HostUnreachable, http.StatusServiceUnavailable},
		{Validation, http.StatusBadRequest},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(E(c.kind, "x")); got != c.want {
			t.Fatalf("%v -> %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestWrapMessageComposition(t *testing.T) {
	err := Wrap(HostUnreachable, "poll status", errors.New("connection refused"))
	if err.Error() != "poll status: connection refused" {
		t.Fatalf("message: %q", err.Error())
	}
	if !errors.Is(err, err.(*Error).Err) {
		t.Fatal("wrapped cause must survive Unwrap")
	}
}
