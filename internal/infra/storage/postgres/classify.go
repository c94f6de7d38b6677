package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vietddude/ratesync/internal/core/domain"
)

// transientCodes are SQLSTATEs worth retrying.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// Classify maps database errors to failure kinds.
func Classify(err error) domain.FailureKind {
	if err == nil {
		return domain.FailureUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case transientCodes[pgErr.Code], strings.HasPrefix(pgErr.Code, "08"):
			return domain.FailureTransientStorage
		case strings.HasPrefix(pgErr.Code, "23"):
			return domain.FailurePermanentPersistence
		default:
			return domain.FailurePermanent
		}
	}

	if errors.Is(err, context.Canceled) {
		return domain.FailurePermanent
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTransientStorage
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return domain.FailureTransientStorage
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.FailureTransientStorage
	}

	return domain.FailureUnknown
}
