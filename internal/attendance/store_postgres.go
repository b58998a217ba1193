package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"presence/internal/domain"
	"presence/pkg/platform/sentinel"
	txcontext "presence/pkg/platform/tx"
	"presence/pkg/requestcontext"
)

// PostgresRecordStore persists attendance records in PostgreSQL. The uniqueness
// invariant lives in the schema: a partial unique index on (subject_id,
// occasion_id) WHERE state <> 'corrected' makes CreateIfAbsent atomic, and
// Transition/Supersede guard on the expected state in their WHERE clause so a
// lost race surfaces as zero affected rows, never as a silent overwrite.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresRecordStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `id, subject_id, occasion_id, state, status, method,
	first_event, last_event, total_hours, overtime_hours, confidence,
	after_end, superseded_by, created_at, updated_at`

func (s *PostgresRecordStore) GetLive(ctx context.Context, subjectID domain.SubjectID, occasionID domain.OccasionID) (domain.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE subject_id = $1 AND occasion_id = $2 AND state <> 'corrected'`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, subjectID.String(), occasionID.String()))
}

func (s *PostgresRecordStore) GetByID(ctx context.Context, id uuid.UUID) (domain.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresRecordStore) CreateIfAbsent(ctx context.Context, rec domain.AttendanceRecord) error {
	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (subject_id, occasion_id) WHERE state <> 'corrected' DO NOTHING`

	res, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.SubjectID.String(),
		rec.OccasionID.String(),
		string(rec.State),
		string(rec.Status),
		string(rec.Method),
		nullTime(rec.FirstEvent),
		nullTime(rec.LastEvent),
		rec.TotalHours,
		rec.OvertimeHours,
		rec.Confidence,
		rec.AfterEnd,
		nullUUID(rec.SupersededBy),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if affected == 0 {
		// A live record for the pair already exists.
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresRecordStore) Transition(ctx context.Context, id uuid.UUID, expected domain.RecordState, update RecordUpdate) (domain.AttendanceRecord, error) {
	query := `
		UPDATE attendance_records
		SET state = $3, status = $4, last_event = $5, total_hours = $6,
			overtime_hours = $7, confidence = GREATEST(confidence, $8),
			after_end = $9, updated_at = $10
		WHERE id = $1 AND state = $2
		RETURNING ` + recordColumns

	rec, err := s.scanOne(s.execer(ctx).QueryRowContext(ctx, query,
		id,
		string(expected),
		string(update.State),
		string(update.Status),
		nullTime(update.LastEvent),
		update.TotalHours,
		update.OvertimeHours,
		update.Confidence,
		update.AfterEnd,
		requestcontext.Now(ctx),
	))
	if errors.Is(err, sentinel.ErrNotFound) {
		// Distinguish a missing record from a state mismatch.
		if _, getErr := s.GetByID(ctx, id); getErr == nil {
			return domain.AttendanceRecord{}, sentinel.ErrConflict
		}
		return domain.AttendanceRecord{}, sentinel.ErrNotFound
	}
	return rec, err
}

// Supersede joins the transaction from context when one is present, so the
// service can retire a record, insert its replacement and write the audit
// trail as a single atomic unit. Without one it opens its own transaction.
func (s *PostgresRecordStore) Supersede(ctx context.Context, oldID uuid.UUID, expected domain.RecordState, replacement domain.AttendanceRecord) error {
	if tx, ok := txcontext.From(ctx); ok {
		return s.supersedeIn(ctx, tx, oldID, expected, replacement)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin supersede: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.supersedeIn(ctx, tx, oldID, expected, replacement); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit supersede: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) supersedeIn(ctx context.Context, tx *sql.Tx, oldID uuid.UUID, expected domain.RecordState, replacement domain.AttendanceRecord) error {
	now := requestcontext.Now(ctx)
	res, err := tx.ExecContext(ctx, `
		UPDATE attendance_records
		SET state = 'corrected', superseded_by = $3, updated_at = $4
		WHERE id = $1 AND state = $2`,
		oldID, string(expected), replacement.ID, now,
	)
	if err != nil {
		return fmt.Errorf("retire record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retire record: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE id = $1)`, oldID).Scan(&exists); err != nil {
			return fmt.Errorf("retire record: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}

	return s.createInTx(ctx, tx, replacement, now)
}

func (s *PostgresRecordStore) createInTx(ctx context.Context, tx *sql.Tx, rec domain.AttendanceRecord, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID,
		rec.SubjectID.String(),
		rec.OccasionID.String(),
		string(rec.State),
		string(rec.Status),
		string(rec.Method),
		nullTime(rec.FirstEvent),
		nullTime(rec.LastEvent),
		rec.TotalHours,
		rec.OvertimeHours,
		rec.Confidence,
		rec.AfterEnd,
		nullUUID(rec.SupersededBy),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert replacement record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) List(ctx context.Context, filter HistoryFilter) ([]domain.AttendanceRecord, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeCorrected {
		conds = append(conds, `state <> 'corrected'`)
	}
	if filter.SubjectID != "" {
		conds = append(conds, `subject_id = `+arg(filter.SubjectID.String()))
	}
	if filter.OccasionID != "" {
		conds = append(conds, `occasion_id = `+arg(filter.OccasionID.String()))
	}
	if !filter.From.IsZero() {
		conds = append(conds, `COALESCE(first_event, created_at) >= `+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, `COALESCE(first_event, created_at) < `+arg(filter.To))
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY COALESCE(first_event, created_at) ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

func (s *PostgresRecordStore) scanOne(row *sql.Row) (domain.AttendanceRecord, error) {
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttendanceRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

func scanRecord(scan func(dest ...any) error) (domain.AttendanceRecord, error) {
	var (
		rec          domain.AttendanceRecord
		subjectID    string
		occasionID   string
		state        string
		status       string
		method       string
		firstEvent   sql.NullTime
		lastEvent    sql.NullTime
		supersededBy uuid.NullUUID
	)
	err := scan(
		&rec.ID, &subjectID, &occasionID, &state, &status, &method,
		&firstEvent, &lastEvent, &rec.TotalHours, &rec.OvertimeHours,
		&rec.Confidence, &rec.AfterEnd, &supersededBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.AttendanceRecord{}, err
	}
	rec.SubjectID = domain.SubjectID(subjectID)
	rec.OccasionID = domain.OccasionID(occasionID)
	rec.State = domain.RecordState(state)
	rec.Status = domain.Status(status)
	rec.Method = domain.Method(method)
	rec.FirstEvent = timePtr(firstEvent)
	rec.LastEvent = timePtr(lastEvent)
	if supersededBy.Valid {
		id := supersededBy.UUID
		rec.SupersededBy = &id
	}
	return rec, nil
}

// PostgresOccasionStore persists occasions with their policy inlined, so a
// policy change for future occasions never rewrites history.
type PostgresOccasionStore struct {
	db *sql.DB
}

func NewPostgresOccasionStore(db *sql.DB) *PostgresOccasionStore {
	return &PostgresOccasionStore{db: db}
}

const occasionColumns = `id, kind, group_name, start_at, end_at, active, closed_at,
	grace_seconds, early_departure_grace_seconds, late_acceptance_seconds,
	overtime_threshold_hours, half_day_hours,
	verify_threshold, identify_threshold, identify_margin`

func (s *PostgresOccasionStore) Get(ctx context.Context, id domain.OccasionID) (domain.Occasion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+occasionColumns+` FROM occasions WHERE id = $1`, id.String())
	occ, err := scanOccasion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Occasion{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Occasion{}, fmt.Errorf("scan occasion: %w", err)
	}
	return occ, nil
}

func (s *PostgresOccasionStore) Put(ctx context.Context, occ domain.Occasion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO occasions (`+occasionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, group_name = EXCLUDED.group_name,
			start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at,
			active = EXCLUDED.active, closed_at = EXCLUDED.closed_at,
			grace_seconds = EXCLUDED.grace_seconds,
			early_departure_grace_seconds = EXCLUDED.early_departure_grace_seconds,
			late_acceptance_seconds = EXCLUDED.late_acceptance_seconds,
			overtime_threshold_hours = EXCLUDED.overtime_threshold_hours,
			half_day_hours = EXCLUDED.half_day_hours,
			verify_threshold = EXCLUDED.verify_threshold,
			identify_threshold = EXCLUDED.identify_threshold,
			identify_margin = EXCLUDED.identify_margin`,
		occ.ID.String(),
		string(occ.Kind),
		occ.Group,
		occ.Start,
		occ.End,
		occ.Active,
		nullTime(occ.ClosedAt),
		int64(occ.Policy.Grace/time.Second),
		int64(occ.Policy.EarlyDepartureGrace/time.Second),
		int64(occ.Policy.LateAcceptanceWindow/time.Second),
		occ.Policy.OvertimeThresholdHrs,
		occ.Policy.HalfDayHours,
		occ.Policy.VerifyThreshold,
		occ.Policy.IdentifyThreshold,
		occ.Policy.IdentifyMargin,
	)
	if err != nil {
		return fmt.Errorf("upsert occasion: %w", err)
	}
	return nil
}

func (s *PostgresOccasionStore) Close(ctx context.Context, id domain.OccasionID, at time.Time) (domain.Occasion, error) {
	// The WHERE active guard keeps the close idempotent: a second close is a
	// no-op that returns the already-closed row.
	_, err := s.db.ExecContext(ctx, `
		UPDATE occasions SET active = FALSE, closed_at = $2 WHERE id = $1 AND active`,
		id.String(), at,
	)
	if err != nil {
		return domain.Occasion{}, fmt.Errorf("close occasion: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *PostgresOccasionStore) ListClosable(ctx context.Context, now time.Time) ([]domain.Occasion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+occasionColumns+`
		FROM occasions
		WHERE active AND end_at + make_interval(secs => late_acceptance_seconds) < $1
		ORDER BY end_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list closable occasions: %w", err)
	}
	defer rows.Close()

	var out []domain.Occasion
	for rows.Next() {
		occ, err := scanOccasion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan occasion: %w", err)
		}
		out = append(out, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list closable occasions: %w", err)
	}
	return out, nil
}

func scanOccasion(scan func(dest ...any) error) (domain.Occasion, error) {
	var (
		occ               domain.Occasion
		id, kind          string
		closedAt          sql.NullTime
		graceSec          int64
		earlyGraceSec     int64
		lateAcceptanceSec int64
	)
	err := scan(
		&id, &kind, &occ.Group, &occ.Start, &occ.End, &occ.Active, &closedAt,
		&graceSec, &earlyGraceSec, &lateAcceptanceSec,
		&occ.Policy.OvertimeThresholdHrs, &occ.Policy.HalfDayHours,
		&occ.Policy.VerifyThreshold, &occ.Policy.IdentifyThreshold, &occ.Policy.IdentifyMargin,
	)
	if err != nil {
		return domain.Occasion{}, err
	}
	occ.ID = domain.OccasionID(id)
	occ.Kind = domain.OccasionKind(kind)
	occ.ClosedAt = timePtr(closedAt)
	occ.Policy.Grace = time.Duration(graceSec) * time.Second
	occ.Policy.EarlyDepartureGrace = time.Duration(earlyGraceSec) * time.Second
	occ.Policy.LateAcceptanceWindow = time.Duration(lateAcceptanceSec) * time.Second
	return occ, nil
}

// PostgresCorrectionStore is the append-only correction audit trail.
type PostgresCorrectionStore struct {
	db *sql.DB
}

func NewPostgresCorrectionStore(db *sql.DB) *PostgresCorrectionStore {
	return &PostgresCorrectionStore{db: db}
}

// Append inserts the corrections through the context transaction when one is
// present. The new_record_id foreign key is deferred, so audit rows may land
// before the replacement record as long as both commit together.
func (s *PostgresCorrectionStore) Append(ctx context.Context, corrections ...domain.Correction) error {
	execer := dbExecutor(s.db)
	if tx, ok := txcontext.From(ctx); ok {
		execer = tx
	}
	for _, c := range corrections {
		_, err := execer.ExecContext(ctx, `
			INSERT INTO record_corrections
				(id, record_id, new_record_id, field, old_value, new_value, reason, approved_by, corrected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.RecordID, c.NewRecordID, c.Field, c.OldValue, c.NewValue, c.Reason, c.ApprovedBy, c.At,
		)
		if err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}
	}
	return nil
}

func (s *PostgresCorrectionStore) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]domain.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, new_record_id, field, old_value, new_value, reason, approved_by, corrected_at
		FROM record_corrections
		WHERE record_id = $1
		ORDER BY corrected_at ASC, field ASC`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var out []domain.Correction
	for rows.Next() {
		var c domain.Correction
		if err := rows.Scan(&c.ID, &c.RecordID, &c.NewRecordID, &c.Field, &c.OldValue, &c.NewValue, &c.Reason, &c.ApprovedBy, &c.At); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
