package turso

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// transientMarkers are driver messages that mean "try again later".
var transientMarkers = []string{
	"stream not found",
	"database is locked",
	"SQLITE_BUSY",
	"connection refused",
	"connection reset",
	"i/o timeout",
}

// IsTransient reports whether err is a persistence failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Classify wraps transient driver errors as domain.TransientStore and
// leaves everything else as a plain wrapped error.
func Classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	if IsTransient(err) {
		return domain.TransientStore(message, err)
	}
	return fmt.Errorf("%s: %w", message, err)
}
