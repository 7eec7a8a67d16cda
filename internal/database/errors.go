// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package database

import (
	"database/sql"
	"fmt"
	"io"
	"strings"
)

// IsUniqueViolation reports whether err is a DuckDB unique or primary
// key constraint violation. DuckDB surfaces these as "Constraint Error"
// messages through database/sql, so string matching is the only handle
// the driver gives us.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") ||
		strings.Contains(msg, "Duplicate key")
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // cleanup is best-effort
	}
}

// checkRowsAffected verifies that at least one row was affected.
func checkRowsAffected(result sql.Result, notFoundMsg string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s", notFoundMsg)
	}
	return nil
}
