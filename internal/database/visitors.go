// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// visitors.go - Visitor Record Database Operations
//
// CRUD operations for visitor records. The decision transition is a
// conditional UPDATE guarded on status='pending' with rows-affected
// checking, so at most one concurrent decision wins; losers observe
// zero rows and fall back to the already-decided path.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nktu/gatekeeper/internal/metrics"
	"github.com/nktu/gatekeeper/internal/models"
)

const visitorColumns = `
	id, visitor_code, name, email, mobile, national_id, purpose,
	to_meet, other_person, person_type, company_name, gate_number,
	laptop, vehicle_number, host_email, host_phone, photo_url,
	status, approval_token, token_expires_at, decision_at,
	approved_by, pdf_url, created_at, updated_at
`

// CreateVisitor inserts a new visitor record. The caller assigns ID,
// visitor code, approval token, and timestamps before the call.
// Returns an IsUniqueViolation error when the visitor code collides.
func (db *DB) CreateVisitor(ctx context.Context, v *models.VisitorRecord) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `
		INSERT INTO visitors (` + visitorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		v.ID, v.VisitorCode, v.Name, v.Email, v.Mobile, v.NationalID, v.Purpose,
		nullString(v.ToMeet), nullString(v.OtherPerson), v.PersonType, v.CompanyName, v.GateNumber,
		v.Laptop, nullString(v.VehicleNumber), v.HostEmail, nullString(v.HostPhone), v.PhotoURL,
		string(v.Status), v.ApprovalToken, v.TokenExpiresAt, v.DecisionAt,
		nullString(v.ApprovedBy), nullString(v.PDFURL), v.CreatedAt, v.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "visitors", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert visitor: %w", err)
	}

	return nil
}

// GetVisitorByID retrieves a visitor by ID.
// Returns (nil, nil) when no record exists.
func (db *DB) GetVisitorByID(ctx context.Context, id string) (*models.VisitorRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE id = ?`
	row := db.conn.QueryRowContext(ctx, query, id)

	v, err := scanVisitor(row)
	metrics.RecordDBQuery("select", "visitors", time.Since(start), err)
	return v, err
}

// GetVisitorByToken retrieves a visitor by approval token.
// Returns (nil, nil) when no record matches.
func (db *DB) GetVisitorByToken(ctx context.Context, token string) (*models.VisitorRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `SELECT ` + visitorColumns + ` FROM visitors WHERE approval_token = ?`
	row := db.conn.QueryRowContext(ctx, query, token)

	v, err := scanVisitor(row)
	metrics.RecordDBQuery("select", "visitors", time.Since(start), err)
	return v, err
}

// ListVisitors returns visitor records newest first. An empty status
// returns all records; otherwise the list is filtered to that status.
func (db *DB) ListVisitors(ctx context.Context, status models.VisitorStatus) ([]models.VisitorRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `SELECT ` + visitorColumns + ` FROM visitors`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "visitors", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query visitors: %w", err)
	}
	defer closeQuietly(rows)

	visitors := []models.VisitorRecord{}
	for rows.Next() {
		v, err := scanVisitorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		visitors = append(visitors, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visitors: %w", err)
	}

	return visitors, nil
}

// DecideVisitor applies the pending -> approved/rejected transition.
// The UPDATE is guarded on status='pending'; the boolean reports
// whether this call won the transition. A false return with nil error
// means the record was missing or already decided.
func (db *DB) DecideVisitor(ctx context.Context, id string, status models.VisitorStatus, decidedBy string, at time.Time) (bool, error) {
	if !status.Decided() {
		return false, fmt.Errorf("invalid decision status %q", status)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `
		UPDATE visitors SET
			status = ?,
			decision_at = ?,
			approved_by = ?,
			updated_at = ?
		WHERE id = ? AND status = 'pending'
	`

	result, err := db.conn.ExecContext(ctx, query,
		string(status), at, nullString(decidedBy), at, id,
	)
	metrics.RecordDBQuery("update", "visitors", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to apply decision: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// SetPassURL records the uploaded gate pass URL after an approval.
func (db *DB) SetPassURL(ctx context.Context, id, url string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `UPDATE visitors SET pdf_url = ?, updated_at = ? WHERE id = ?`

	result, err := db.conn.ExecContext(ctx, query, url, time.Now().UTC(), id)
	metrics.RecordDBQuery("update", "visitors", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set pass URL: %w", err)
	}

	return checkRowsAffected(result, "visitor not found")
}

// ExpireVisitor forces a record to expired status regardless of its
// current state. The boolean reports whether the record exists.
func (db *DB) ExpireVisitor(ctx context.Context, id string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `UPDATE visitors SET status = 'expired', updated_at = ? WHERE id = ?`

	result, err := db.conn.ExecContext(ctx, query, time.Now().UTC(), id)
	metrics.RecordDBQuery("update", "visitors", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to expire visitor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetVisitorStats returns record counts per lifecycle state.
func (db *DB) GetVisitorStats(ctx context.Context) (*models.VisitorStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) AS pending,
			COUNT(CASE WHEN status = 'approved' THEN 1 END) AS approved,
			COUNT(CASE WHEN status = 'rejected' THEN 1 END) AS rejected,
			COUNT(CASE WHEN status = 'expired' THEN 1 END) AS expired
		FROM visitors
	`

	var stats models.VisitorStats
	err := db.conn.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Pending, &stats.Approved, &stats.Rejected, &stats.Expired,
	)
	metrics.RecordDBQuery("select", "visitors", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor stats: %w", err)
	}

	return &stats, nil
}

// visitorScanData holds scanned values before conversion to
// models.VisitorRecord.
type visitorScanData struct {
	id, visitorCode, name, email     string
	mobile, nationalID, purpose      string
	toMeet, otherPerson              sql.NullString
	personType, companyName          string
	gateNumber                       int
	laptop                           string
	vehicleNumber                    sql.NullString
	hostEmail                        string
	hostPhone                        sql.NullString
	photoURL, status, approvalToken  string
	tokenExpiresAt                   time.Time
	decisionAt                       sql.NullTime
	approvedBy, pdfURL               sql.NullString
	createdAt, updatedAt             time.Time
}

// scanTargets returns the scan destinations in visitorColumns order.
func (d *visitorScanData) scanTargets() []interface{} {
	return []interface{}{
		&d.id, &d.visitorCode, &d.name, &d.email, &d.mobile, &d.nationalID, &d.purpose,
		&d.toMeet, &d.otherPerson, &d.personType, &d.companyName, &d.gateNumber,
		&d.laptop, &d.vehicleNumber, &d.hostEmail, &d.hostPhone, &d.photoURL,
		&d.status, &d.approvalToken, &d.tokenExpiresAt, &d.decisionAt,
		&d.approvedBy, &d.pdfURL, &d.createdAt, &d.updatedAt,
	}
}

// record converts scanned values into a VisitorRecord.
func (d *visitorScanData) record() *models.VisitorRecord {
	v := &models.VisitorRecord{
		ID:             d.id,
		VisitorCode:    d.visitorCode,
		Name:           d.name,
		Email:          d.email,
		Mobile:         d.mobile,
		NationalID:     d.nationalID,
		Purpose:        d.purpose,
		ToMeet:         d.toMeet.String,
		OtherPerson:    d.otherPerson.String,
		PersonType:     d.personType,
		CompanyName:    d.companyName,
		GateNumber:     d.gateNumber,
		Laptop:         d.laptop,
		VehicleNumber:  d.vehicleNumber.String,
		HostEmail:      d.hostEmail,
		HostPhone:      d.hostPhone.String,
		PhotoURL:       d.photoURL,
		Status:         models.VisitorStatus(d.status),
		ApprovalToken:  d.approvalToken,
		TokenExpiresAt: d.tokenExpiresAt,
		ApprovedBy:     d.approvedBy.String,
		PDFURL:         d.pdfURL.String,
		CreatedAt:      d.createdAt,
		UpdatedAt:      d.updatedAt,
	}
	if d.decisionAt.Valid {
		t := d.decisionAt.Time
		v.DecisionAt = &t
	}
	return v
}

// scanVisitor scans a single visitor from a row.
// Returns (nil, nil) on sql.ErrNoRows.
func scanVisitor(row *sql.Row) (*models.VisitorRecord, error) {
	var data visitorScanData
	err := row.Scan(data.scanTargets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan visitor: %w", err)
	}
	return data.record(), nil
}

// scanVisitorRow scans a single visitor from a row iterator.
func scanVisitorRow(rows *sql.Rows) (*models.VisitorRecord, error) {
	var data visitorScanData
	if err := rows.Scan(data.scanTargets()...); err != nil {
		return nil, err
	}
	return data.record(), nil
}

// nullString converts an optional string to sql.NullString.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
