package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
)

var (
	ErrEnrollmentNotFound      = errors.New("enrollment not found")
	ErrEnrollmentAlreadyExists = errors.New("enrollment already exists")
	ErrPaymentRecordNotFound   = errors.New("payment record not found")
	ErrPaymentMismatch         = errors.New("payment id does not match settled enrollment")
)

// SettleInput correlates a captured gateway payment to the local pair of
// rows sharing its gateway order id.
type SettleInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	RawResponseJSON  string
	Now              time.Time
}

type SettleResult struct {
	Enrollment *entity.Enrollment
	// Activated is false when the enrollment was already active and the
	// call was a redelivery no-op.
	Activated      bool
	PreviousStatus entity.EnrollmentStatus
}

// EnrollmentLedger owns the enrollments and payment_records tables. The
// multi-row operations open their own transaction: the pair must commit
// both-or-neither, and settlement locks the enrollment row so a verify
// call and a webhook delivery racing on the same order serialize.
type EnrollmentLedger struct {
	db *sql.DB
}

func NewEnrollmentLedger(db *sql.DB) *EnrollmentLedger {
	return &EnrollmentLedger{db: db}
}

const enrollmentColumns = `id, student_id, module_id, status, started_at, expires_at,
		gateway_order_id, gateway_payment_id, amount_paid_cents, currency, created_at, updated_at`

const paymentRecordColumns = `id, student_id, module_id, gateway_order_id, gateway_payment_id,
		amount_cents, status, raw_response_json, created_at, updated_at`

func (l *EnrollmentLedger) FindEnrollmentByID(ctx context.Context, id string) (*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = ?`

	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(l.db.QueryRowContext(ctx, query, id), enrollment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func (l *EnrollmentLedger) FindEnrollmentByStudentAndModule(ctx context.Context, studentID, moduleID string) (*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = ? AND module_id = ? LIMIT 1`

	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(l.db.QueryRowContext(ctx, query, studentID, moduleID), enrollment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func (l *EnrollmentLedger) FindEnrollmentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE gateway_order_id = ? LIMIT 1`

	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(l.db.QueryRowContext(ctx, query, gatewayOrderID), enrollment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func (l *EnrollmentLedger) ListEnrollmentsByStudent(ctx context.Context, studentID string) ([]*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = ? ORDER BY created_at DESC`

	rows, err := l.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

func (l *EnrollmentLedger) ListActiveEnrollmentsByModule(ctx context.Context, moduleID string) ([]*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE module_id = ? AND status = ?
		ORDER BY started_at DESC`

	rows, err := l.db.QueryContext(ctx, query, moduleID, entity.EnrollmentStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// CreateActiveEnrollment is the free-module path: a single enrollment row
// goes straight to active with no payment record. An existing non-active
// row for the pair is reused so the (student_id, module_id) uniqueness
// survives re-subscription.
func (l *EnrollmentLedger) CreateActiveEnrollment(ctx context.Context, enrollment *entity.Enrollment) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := l.lockEnrollmentByPair(ctx, tx, enrollment.StudentID, enrollment.ModuleID)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.Status == entity.EnrollmentStatusActive {
			return ErrEnrollmentAlreadyExists
		}
		enrollment.ID = existing.ID
		enrollment.CreatedAt = existing.CreatedAt
		query := `
			UPDATE enrollments SET
				status = ?, started_at = ?, expires_at = NULL,
				gateway_order_id = NULL, gateway_payment_id = NULL,
				amount_paid_cents = ?, currency = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query,
			enrollment.Status,
			nullableTimeValue(enrollment.StartedAt),
			enrollment.AmountPaidCents,
			enrollment.Currency,
			enrollment.UpdatedAt,
			enrollment.ID,
		); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := insertEnrollment(ctx, tx, enrollment); err != nil {
		return err
	}
	return tx.Commit()
}

// CreatePendingPair is the paid-module path: the pending enrollment and its
// created payment record commit in one transaction, sharing the gateway
// order id. The gateway order must already exist; a failure here leaves the
// external order unreferenced, which is acceptable since unused orders
// expire at the gateway.
func (l *EnrollmentLedger) CreatePendingPair(ctx context.Context, enrollment *entity.Enrollment, record *entity.PaymentRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := l.lockEnrollmentByPair(ctx, tx, enrollment.StudentID, enrollment.ModuleID)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.Status == entity.EnrollmentStatusActive {
			return ErrEnrollmentAlreadyExists
		}
		enrollment.ID = existing.ID
		enrollment.CreatedAt = existing.CreatedAt
		query := `
			UPDATE enrollments SET
				status = ?, started_at = NULL, expires_at = NULL,
				gateway_order_id = ?, gateway_payment_id = NULL,
				amount_paid_cents = ?, currency = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query,
			enrollment.Status,
			nullableStringValue(enrollment.GatewayOrderID),
			enrollment.AmountPaidCents,
			enrollment.Currency,
			enrollment.UpdatedAt,
			enrollment.ID,
		); err != nil {
			return err
		}
	} else if err := insertEnrollment(ctx, tx, enrollment); err != nil {
		return err
	}

	if err := insertPaymentRecord(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit()
}

// Settle drives both rows of an order to their settled state. Idempotent:
// an already-active enrollment with the same payment id is a no-op; a
// different payment id on an active enrollment is rejected without writes.
func (l *EnrollmentLedger) Settle(ctx context.Context, input SettleInput) (*SettleResult, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE gateway_order_id = ? LIMIT 1 FOR UPDATE`
	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(tx.QueryRowContext(ctx, query, input.GatewayOrderID), enrollment); err == sql.ErrNoRows {
		return nil, ErrEnrollmentNotFound
	} else if err != nil {
		return nil, err
	}

	if enrollment.Status == entity.EnrollmentStatusActive {
		if enrollment.GatewayPaymentID != nil && *enrollment.GatewayPaymentID != input.GatewayPaymentID {
			return nil, ErrPaymentMismatch
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &SettleResult{Enrollment: enrollment, Activated: false, PreviousStatus: entity.EnrollmentStatusActive}, nil
	}

	previousStatus := enrollment.Status

	var recordID string
	recordQuery := `SELECT id FROM payment_records WHERE gateway_order_id = ? LIMIT 1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, recordQuery, input.GatewayOrderID).Scan(&recordID); err == sql.ErrNoRows {
		return nil, ErrPaymentRecordNotFound
	} else if err != nil {
		return nil, err
	}

	startedAt := enrollment.StartedAt
	if startedAt == nil {
		now := input.Now
		startedAt = &now
	}

	updateEnrollment := `
		UPDATE enrollments SET status = ?, gateway_payment_id = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, updateEnrollment,
		entity.EnrollmentStatusActive,
		input.GatewayPaymentID,
		*startedAt,
		input.Now,
		enrollment.ID,
	); err != nil {
		return nil, err
	}

	updateRecord := `
		UPDATE payment_records SET status = ?, gateway_payment_id = ?, raw_response_json = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, updateRecord,
		entity.PaymentRecordStatusPaid,
		input.GatewayPaymentID,
		input.RawResponseJSON,
		input.Now,
		recordID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	paymentID := input.GatewayPaymentID
	enrollment.Status = entity.EnrollmentStatusActive
	enrollment.GatewayPaymentID = &paymentID
	enrollment.StartedAt = startedAt
	enrollment.UpdatedAt = input.Now

	return &SettleResult{Enrollment: enrollment, Activated: true, PreviousStatus: previousStatus}, nil
}

func (l *EnrollmentLedger) FindPaymentRecordByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.PaymentRecord, error) {
	query := `SELECT ` + paymentRecordColumns + ` FROM payment_records WHERE gateway_payment_id = ? LIMIT 1`

	record := &entity.PaymentRecord{}
	if err := scanPaymentRecord(l.db.QueryRowContext(ctx, query, gatewayPaymentID), record); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return record, nil
}

func (l *EnrollmentLedger) FindPaymentRecordByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.PaymentRecord, error) {
	query := `SELECT ` + paymentRecordColumns + ` FROM payment_records WHERE gateway_order_id = ? LIMIT 1`

	record := &entity.PaymentRecord{}
	if err := scanPaymentRecord(l.db.QueryRowContext(ctx, query, gatewayOrderID), record); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return record, nil
}

func (l *EnrollmentLedger) UpdateEnrollmentStatus(ctx context.Context, id string, status entity.EnrollmentStatus, now time.Time) error {
	query := `UPDATE enrollments SET status = ?, updated_at = ? WHERE id = ?`

	result, err := l.db.ExecContext(ctx, query, status, now, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEnrollmentNotFound
	}

	return nil
}

func (l *EnrollmentLedger) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE status = ? AND created_at <= ? AND gateway_order_id IS NOT NULL
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, entity.EnrollmentStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// FailPendingPair marks a stale pending enrollment and its created payment
// record failed. Conditional on the current statuses, so a settlement that
// won the race is left untouched.
func (l *EnrollmentLedger) FailPendingPair(ctx context.Context, enrollmentID string, now time.Time) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = ? LIMIT 1 FOR UPDATE`
	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(tx.QueryRowContext(ctx, query, enrollmentID), enrollment); err == sql.ErrNoRows {
		return ErrEnrollmentNotFound
	} else if err != nil {
		return err
	}

	if enrollment.Status != entity.EnrollmentStatusPending {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET status = ?, updated_at = ? WHERE id = ?`,
		entity.EnrollmentStatusFailed, now, enrollmentID,
	); err != nil {
		return err
	}

	if enrollment.GatewayOrderID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_records SET status = ?, updated_at = ? WHERE gateway_order_id = ? AND status = ?`,
			entity.PaymentRecordStatusFailed, now, *enrollment.GatewayOrderID, entity.PaymentRecordStatusCreated,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (l *EnrollmentLedger) lockEnrollmentByPair(ctx context.Context, tx *sql.Tx, studentID, moduleID string) (*entity.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE student_id = ? AND module_id = ? LIMIT 1 FOR UPDATE`

	enrollment := &entity.Enrollment{}
	if err := scanEnrollment(tx.QueryRowContext(ctx, query, studentID, moduleID), enrollment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return enrollment, nil
}

func insertEnrollment(ctx context.Context, tx *sql.Tx, enrollment *entity.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, student_id, module_id, status, started_at, expires_at,
			gateway_order_id, gateway_payment_id, amount_paid_cents, currency, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.StudentID,
		enrollment.ModuleID,
		enrollment.Status,
		nullableTimeValue(enrollment.StartedAt),
		nullableTimeValue(enrollment.ExpiresAt),
		nullableStringValue(enrollment.GatewayOrderID),
		nullableStringValue(enrollment.GatewayPaymentID),
		enrollment.AmountPaidCents,
		enrollment.Currency,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrEnrollmentAlreadyExists
		}
		return err
	}

	return nil
}

func insertPaymentRecord(ctx context.Context, tx *sql.Tx, record *entity.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (
			id, student_id, module_id, gateway_order_id, gateway_payment_id,
			amount_cents, status, raw_response_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		record.ID,
		record.StudentID,
		record.ModuleID,
		record.GatewayOrderID,
		nullableStringValue(record.GatewayPaymentID),
		record.AmountCents,
		record.Status,
		nullableStringValue(record.RawResponseJSON),
		record.CreatedAt,
		record.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrollment(scan rowScanner, enrollment *entity.Enrollment) error {
	var startedAt sql.NullTime
	var expiresAt sql.NullTime
	var gatewayOrderID sql.NullString
	var gatewayPaymentID sql.NullString

	err := scan.Scan(
		&enrollment.ID,
		&enrollment.StudentID,
		&enrollment.ModuleID,
		&enrollment.Status,
		&startedAt,
		&expiresAt,
		&gatewayOrderID,
		&gatewayPaymentID,
		&enrollment.AmountPaidCents,
		&enrollment.Currency,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	enrollment.StartedAt = timePtrFromNull(startedAt)
	enrollment.ExpiresAt = timePtrFromNull(expiresAt)
	enrollment.GatewayOrderID = stringPtrFromNull(gatewayOrderID)
	enrollment.GatewayPaymentID = stringPtrFromNull(gatewayPaymentID)

	return nil
}

func scanPaymentRecord(scan rowScanner, record *entity.PaymentRecord) error {
	var gatewayPaymentID sql.NullString
	var rawResponseJSON sql.NullString

	err := scan.Scan(
		&record.ID,
		&record.StudentID,
		&record.ModuleID,
		&record.GatewayOrderID,
		&gatewayPaymentID,
		&record.AmountCents,
		&record.Status,
		&rawResponseJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return err
	}

	record.GatewayPaymentID = stringPtrFromNull(gatewayPaymentID)
	record.RawResponseJSON = stringPtrFromNull(rawResponseJSON)

	return nil
}

func collectEnrollments(rows *sql.Rows) ([]*entity.Enrollment, error) {
	enrollments := make([]*entity.Enrollment, 0)
	for rows.Next() {
		item := &entity.Enrollment{}
		if err := scanEnrollment(rows, item); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return enrollments, nil
}
