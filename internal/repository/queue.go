// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// QueueRepository 排队记录仓储
type QueueRepository struct {
	db DB
}

// NewQueueRepository 创建排队记录仓储
func NewQueueRepository(db DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Create 创建排队记录
func (r *QueueRepository) Create(ctx context.Context, q *model.QueueEntry) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now
	if q.Status == "" {
		q.Status = model.QueueStatusWaiting
	}
	if q.EnteredAt.IsZero() {
		q.EnteredAt = now
	}

	query := `
		INSERT INTO queue_entries (
			id, owner_id, patient_id, token, status, position, bed_id, entered_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		q.ID, q.OwnerID, q.PatientID, q.Token, q.Status, q.Position, q.BedID, q.EnteredAt,
		q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建排队记录失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取排队记录（关联患者数据）
func (r *QueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	query := `
		SELECT q.id, q.owner_id, q.patient_id, q.token, q.status, q.position, q.bed_id, q.entered_at,
			q.created_at, q.updated_at,
			p.id, p.owner_id, p.token, p.name, p.phone, p.arrival_time, p.severity, p.emergency,
			p.needs_ventilator, p.needs_dialysis, p.predicted_stay_days, p.diagnosis,
			p.attributes, p.created_at, p.updated_at
		FROM queue_entries q
		JOIN patients p ON p.id = q.patient_id AND p.deleted_at IS NULL
		WHERE q.id = $1 AND q.deleted_at IS NULL
	`

	q := &model.QueueEntry{}
	p := &model.Patient{}
	var attrsJSON []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.OwnerID, &q.PatientID, &q.Token, &q.Status, &q.Position, &q.BedID, &q.EnteredAt,
		&q.CreatedAt, &q.UpdatedAt,
		&p.ID, &p.OwnerID, &p.Token, &p.Name, &p.Phone, &p.ArrivalTime, &p.Severity, &p.Emergency,
		&p.NeedsVentilator, &p.NeedsDialysis, &p.PredictedStayDays, &p.Diagnosis,
		&attrsJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描排队记录失败: %w", err)
	}

	if err := decodePatientAttributes(p, attrsJSON); err != nil {
		return nil, err
	}
	q.Patient = p

	return q, nil
}

// ListWaiting 获取资源方所有等待中的排队记录（按进入时间升序）
func (r *QueueRepository) ListWaiting(ctx context.Context, ownerID uuid.UUID) ([]*model.QueueEntry, error) {
	query := `
		SELECT id, owner_id, patient_id, token, status, position, bed_id, entered_at,
			created_at, updated_at
		FROM queue_entries
		WHERE owner_id = $1 AND status = 'waiting' AND deleted_at IS NULL
		ORDER BY entered_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询排队记录失败: %w", err)
	}
	defer rows.Close()

	var entries []*model.QueueEntry
	for rows.Next() {
		q := &model.QueueEntry{}
		if err := rows.Scan(
			&q.ID, &q.OwnerID, &q.PatientID, &q.Token, &q.Status, &q.Position, &q.BedID, &q.EnteredAt,
			&q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描排队记录失败: %w", err)
		}
		entries = append(entries, q)
	}

	return entries, nil
}

// MarkAssigned 标记排队记录已分配床位
func (r *QueueRepository) MarkAssigned(ctx context.Context, id, bedID uuid.UUID) error {
	query := `
		UPDATE queue_entries SET status = 'assigned', bed_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'waiting' AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, bedID, time.Now())
	if err != nil {
		return fmt.Errorf("更新排队状态失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("排队记录不存在或已处理")
	}

	return nil
}

// Cancel 取消排队记录
func (r *QueueRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE queue_entries SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status = 'waiting' AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("取消排队失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("排队记录不存在或已处理")
	}

	return nil
}

// ICUOccupants 获取资源方ICU在住患者及其最近一次查房状态
// 按入住时间升序返回，住得越久的越靠前
func (r *QueueRepository) ICUOccupants(ctx context.Context, ownerID uuid.UUID) ([]*model.Occupant, error) {
	query := `
		SELECT a.id, a.patient_id, a.bed_id, p.name, p.token, p.diagnosis,
			a.admission_time, a.discharge_time,
			COALESCE((
				SELECT wr.status FROM ward_rounds wr
				WHERE wr.admission_id = a.id AND wr.deleted_at IS NULL
				ORDER BY wr.round_time DESC
				LIMIT 1
			), '') AS latest_round_status
		FROM admissions a
		JOIN beds b ON b.id = a.bed_id AND b.deleted_at IS NULL
		JOIN patients p ON p.id = a.patient_id AND p.deleted_at IS NULL
		WHERE a.owner_id = $1 AND a.status = 'active' AND b.category = 'ICU'
			AND a.deleted_at IS NULL
		ORDER BY a.admission_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询ICU在住患者失败: %w", err)
	}
	defer rows.Close()

	var occupants []*model.Occupant
	for rows.Next() {
		o := &model.Occupant{}
		if err := rows.Scan(
			&o.AdmissionID, &o.PatientID, &o.BedID, &o.Name, &o.Token, &o.Diagnosis,
			&o.AdmittedAt, &o.DischargeTime, &o.LatestRoundStatus,
		); err != nil {
			return nil, fmt.Errorf("扫描在住患者失败: %w", err)
		}
		occupants = append(occupants, o)
	}

	return occupants, nil
}
