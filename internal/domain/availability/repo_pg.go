package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	engine "github.com/medportal/portal/internal/platform/availability"
	"github.com/medportal/portal/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const recordCols = `id, doctor_id, kind, day_of_week, date, time_slots, is_active, version_id`

func scanRecord(row pgx.Row) (engine.Record, error) {
	var (
		rec      engine.Record
		id       uuid.UUID
		doctorID uuid.UUID
		kind     string
		dow      *string
		date     *time.Time
		slots    []byte
	)
	if err := row.Scan(&id, &doctorID, &kind, &dow, &date, &slots, &rec.IsActive, &rec.VersionID); err != nil {
		return rec, err
	}
	rec.ID = id.String()
	rec.DoctorID = doctorID.String()
	rec.Kind = engine.Kind(kind)
	if dow != nil {
		rec.DayOfWeek = engine.DayOfWeek(*dow)
	}
	if date != nil {
		d := engine.DateOf(*date)
		rec.Date = &d
	}
	rec.TimeSlots = []engine.TimeSlot{}
	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &rec.TimeSlots); err != nil {
			return rec, fmt.Errorf("decode time_slots of record %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]engine.Record, error) {
	defer rows.Close()
	var out []engine.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseDoctorID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid doctor id %q", engine.ErrValidation, id)
	}
	return u, nil
}

func encodeSlots(slots []engine.TimeSlot) (string, error) {
	if slots == nil {
		slots = []engine.TimeSlot{}
	}
	b, err := json.Marshal(slots)
	return string(b), err
}

func (r *recordRepoPG) ListByDoctor(ctx context.Context, doctorID string) ([]engine.Record, error) {
	id, err := parseDoctorID(doctorID)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM availability_record
		WHERE doctor_id = $1 AND is_active
		ORDER BY kind, date NULLS FIRST, day_of_week`, id)
	if err != nil {
		return nil, fmt.Errorf("list availability for %s: %w", doctorID, err)
	}
	return collectRecords(rows)
}

func (r *recordRepoPG) ListForMonth(ctx context.Context, doctorID string, anchor engine.Date) ([]engine.Record, error) {
	id, err := parseDoctorID(doctorID)
	if err != nil {
		return nil, err
	}
	first := anchor.FirstOfMonth().Time()
	next := first.AddDate(0, 1, 0)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM availability_record
		WHERE doctor_id = $1 AND is_active
		  AND (kind = 'RECURRING' OR (kind = 'SINGLE' AND date >= $2 AND date < $3))`,
		id, first, next)
	if err != nil {
		return nil, fmt.Errorf("list availability for %s in %s: %w", doctorID, anchor.FirstOfMonth(), err)
	}
	return collectRecords(rows)
}

func (r *recordRepoPG) ListForDate(ctx context.Context, doctorIDs []string, date engine.Date) ([]engine.Record, error) {
	ids := make([]uuid.UUID, 0, len(doctorIDs))
	for _, s := range doctorIDs {
		id, err := parseDoctorID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM availability_record
		WHERE doctor_id = ANY($1) AND is_active
		  AND ((kind = 'RECURRING' AND day_of_week = $2) OR (kind = 'SINGLE' AND date = $3))`,
		ids, string(date.DayOfWeek()), date.Time())
	if err != nil {
		return nil, fmt.Errorf("list availability on %s: %w", date, err)
	}
	return collectRecords(rows)
}

func (r *recordRepoPG) ReplaceRecurring(ctx context.Context, doctorID string, days []engine.Record) error {
	id, err := parseDoctorID(doctorID)
	if err != nil {
		return err
	}
	for i := range days {
		slots, err := encodeSlots(days[i].TimeSlots)
		if err != nil {
			return err
		}
		var recID uuid.UUID
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO availability_record (doctor_id, kind, day_of_week, time_slots)
			VALUES ($1, 'RECURRING', $2, $3::jsonb)
			ON CONFLICT (doctor_id, day_of_week) WHERE kind = 'RECURRING' AND is_active
			DO UPDATE SET time_slots = EXCLUDED.time_slots,
				version_id = availability_record.version_id + 1,
				updated_at = NOW()
			RETURNING id, version_id`,
			id, string(days[i].DayOfWeek), slots).Scan(&recID, &days[i].VersionID)
		if err != nil {
			return fmt.Errorf("upsert %s schedule for %s: %w", days[i].DayOfWeek, doctorID, err)
		}
		days[i].ID = recID.String()
	}
	return nil
}

func (r *recordRepoPG) SaveSingle(ctx context.Context, rec *engine.Record) error {
	if rec.Kind != engine.KindSingle || rec.Date == nil {
		return fmt.Errorf("%w: SaveSingle needs a single-date record", engine.ErrValidation)
	}
	slots, err := encodeSlots(rec.TimeSlots)
	if err != nil {
		return err
	}

	if rec.ID == "" {
		doctorID, err := parseDoctorID(rec.DoctorID)
		if err != nil {
			return err
		}
		var id uuid.UUID
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO availability_record (doctor_id, kind, date, time_slots, is_active)
			VALUES ($1, 'SINGLE', $2, $3::jsonb, $4)
			ON CONFLICT (doctor_id, date) WHERE kind = 'SINGLE' AND is_active DO NOTHING
			RETURNING id, version_id`,
			doctorID, rec.Date.Time(), slots, rec.IsActive).Scan(&id, &rec.VersionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleRecord
		}
		if err != nil {
			return fmt.Errorf("insert override %s for %s: %w", rec.Date, rec.DoctorID, err)
		}
		rec.ID = id.String()
		return nil
	}

	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("%w: invalid record id %q", engine.ErrValidation, rec.ID)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE availability_record
		SET time_slots = $3::jsonb, is_active = $4, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id`,
		id, rec.VersionID, slots, rec.IsActive).Scan(&rec.VersionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleRecord
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrStaleRecord
		}
		return fmt.Errorf("update override %s: %w", rec.ID, err)
	}
	return nil
}

func (r *recordRepoPG) PurgeInactiveBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM availability_record
		WHERE kind = 'SINGLE' AND NOT is_active AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge inactive overrides: %w", err)
	}
	return tag.RowsAffected(), nil
}
