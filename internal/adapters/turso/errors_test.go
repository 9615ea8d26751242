package turso

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{name: "bad conn", err: fmt.Errorf("exec: %w", driver.ErrBadConn), want: domain.KindTransientStore},
		{name: "locked", err: errors.New("database is locked"), want: domain.KindTransientStore},
		{name: "stream gone", err: errors.New("hrana: stream not found"), want: domain.KindTransientStore},
		{name: "constraint", err: errors.New("UNIQUE constraint failed: experiments.id"), want: ""},
		{name: "domain error kept", err: domain.Validationf("bad"), want: domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("op failed", tt.err)
			if domain.KindOf(got) != tt.want {
				t.Errorf("kind = %q, want %q", domain.KindOf(got), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("original error should stay reachable")
			}
		})
	}

	if Classify("noop", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
