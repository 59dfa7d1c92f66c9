// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// AdmissionRepository 入住记录仓储
type AdmissionRepository struct {
	db DB
}

// NewAdmissionRepository 创建入住记录仓储
func NewAdmissionRepository(db DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

const admissionColumns = `id, owner_id, patient_id, bed_id, admission_time, discharge_time,
		waiting_hours, stay_days, confidence, status, notes, created_at, updated_at`

// Create 创建入住记录
func (r *AdmissionRepository) Create(ctx context.Context, a *model.Admission) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO admissions (` + admissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.PatientID, a.BedID, a.AdmissionTime, a.DischargeTime,
		a.WaitingHours, a.StayDays, a.Confidence, a.Status, a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建入住记录失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取入住记录
func (r *AdmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Admission, error) {
	query := `
		SELECT ` + admissionColumns + `
		FROM admissions
		WHERE id = $1 AND deleted_at IS NULL
	`

	return r.scanAdmission(r.db.QueryRowContext(ctx, query, id))
}

// Update 更新入住记录
func (r *AdmissionRepository) Update(ctx context.Context, a *model.Admission) error {
	a.UpdatedAt = time.Now()

	query := `
		UPDATE admissions SET
			bed_id = $2, admission_time = $3, discharge_time = $4, waiting_hours = $5,
			stay_days = $6, confidence = $7, status = $8, notes = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		a.ID, a.BedID, a.AdmissionTime, a.DischargeTime, a.WaitingHours,
		a.StayDays, a.Confidence, a.Status, a.Notes, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新入住记录失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("入住记录不存在")
	}

	return nil
}

// Delete 软删除入住记录
func (r *AdmissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE admissions SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除入住记录失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("入住记录不存在")
	}

	return nil
}

// List 查询入住记录列表
func (r *AdmissionRepository) List(ctx context.Context, filter ListFilter) ([]*model.Admission, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("admission_time >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("admission_time <= $%d", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM admissions WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "admission_time"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "asc"
	}

	query := fmt.Sprintf(`
		SELECT `+admissionColumns+`
		FROM admissions
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var admissions []*model.Admission
	for rows.Next() {
		a, err := r.scanAdmissionRow(rows)
		if err != nil {
			return nil, 0, err
		}
		admissions = append(admissions, a)
	}

	return admissions, total, nil
}

// ListActive 获取资源方所有在住记录
func (r *AdmissionRepository) ListActive(ctx context.Context, ownerID uuid.UUID) ([]*model.Admission, error) {
	query := `
		SELECT ` + admissionColumns + `
		FROM admissions
		WHERE owner_id = $1 AND status = 'active' AND deleted_at IS NULL
		ORDER BY admission_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询在住记录失败: %w", err)
	}
	defer rows.Close()

	var admissions []*model.Admission
	for rows.Next() {
		a, err := r.scanAdmissionRow(rows)
		if err != nil {
			return nil, err
		}
		admissions = append(admissions, a)
	}

	return admissions, nil
}

// BulkReplace 在事务内用新方案替换资源方的全部计划记录
// 先清除旧的 planned 记录，再写入新方案，保证排程结果原子落库
func (r *AdmissionRepository) BulkReplace(ctx context.Context, tx Tx, ownerID uuid.UUID, admissions []*model.Admission) error {
	deleteQuery := `
		UPDATE admissions SET deleted_at = $2
		WHERE owner_id = $1 AND status = 'planned' AND deleted_at IS NULL
	`
	if _, err := tx.ExecContext(ctx, deleteQuery, ownerID, time.Now()); err != nil {
		return fmt.Errorf("清除旧排程失败: %w", err)
	}

	insertQuery := `
		INSERT INTO admissions (` + admissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, a := range admissions {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		now := time.Now()
		a.CreatedAt = now
		a.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, insertQuery,
			a.ID, a.OwnerID, a.PatientID, a.BedID, a.AdmissionTime, a.DischargeTime,
			a.WaitingHours, a.StayDays, a.Confidence, a.Status, a.Notes, a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return fmt.Errorf("写入排程记录失败: %w", err)
		}
	}

	return nil
}

// MarkDischarged 标记入住记录为已出院
func (r *AdmissionRepository) MarkDischarged(ctx context.Context, id uuid.UUID, dischargeTime time.Time) error {
	query := `
		UPDATE admissions SET status = 'discharged', discharge_time = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, dischargeTime, time.Now())
	if err != nil {
		return fmt.Errorf("标记出院失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("入住记录不存在")
	}

	return nil
}

// scanAdmission 扫描单行入住记录
func (r *AdmissionRepository) scanAdmission(row *sql.Row) (*model.Admission, error) {
	a := &model.Admission{}

	err := row.Scan(
		&a.ID, &a.OwnerID, &a.PatientID, &a.BedID, &a.AdmissionTime, &a.DischargeTime,
		&a.WaitingHours, &a.StayDays, &a.Confidence, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描入住记录失败: %w", err)
	}

	return a, nil
}

// scanAdmissionRow 扫描Rows中的入住记录
func (r *AdmissionRepository) scanAdmissionRow(rows *sql.Rows) (*model.Admission, error) {
	a := &model.Admission{}

	err := rows.Scan(
		&a.ID, &a.OwnerID, &a.PatientID, &a.BedID, &a.AdmissionTime, &a.DischargeTime,
		&a.WaitingHours, &a.StayDays, &a.Confidence, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描入住记录失败: %w", err)
	}

	return a, nil
}
