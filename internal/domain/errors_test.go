package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("saving experiment: %w", TransientStore("store unavailable", cause))

	if !errors.Is(err, ErrTransientStore) {
		t.Error("expected wrapped error to match ErrTransientStore")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("transient error must not match ErrConflict")
	}
	if !errors.Is(err, cause) {
		t.Error("expected underlying cause to be reachable")
	}
	if KindOf(err) != KindTransientStore {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors have no kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFoundf("experiment %q not found", "abc")
	if err.Error() != `experiment "abc" not found` {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected ErrNotFound match")
	}
}
