// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// PatientRepository 患者仓储
type PatientRepository struct {
	db DB
}

// NewPatientRepository 创建患者仓储
func NewPatientRepository(db DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// Create 创建患者
func (r *PatientRepository) Create(ctx context.Context, p *model.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	attrsJSON, _ := json.Marshal(p.Attributes)

	query := `
		INSERT INTO patients (
			id, owner_id, token, name, phone, arrival_time, severity, emergency,
			needs_ventilator, needs_dialysis, predicted_stay_days, diagnosis,
			attributes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.OwnerID, p.Token, p.Name, p.Phone, p.ArrivalTime, p.Severity, p.Emergency,
		p.NeedsVentilator, p.NeedsDialysis, p.PredictedStayDays, p.Diagnosis,
		attrsJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建患者失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取患者
func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, owner_id, token, name, phone, arrival_time, severity, emergency,
			needs_ventilator, needs_dialysis, predicted_stay_days, diagnosis,
			attributes, created_at, updated_at
		FROM patients
		WHERE id = $1 AND deleted_at IS NULL
	`

	return r.scanPatient(r.db.QueryRowContext(ctx, query, id))
}

// GetByToken 根据资源方和排队号获取患者
func (r *PatientRepository) GetByToken(ctx context.Context, ownerID uuid.UUID, token string) (*model.Patient, error) {
	query := `
		SELECT id, owner_id, token, name, phone, arrival_time, severity, emergency,
			needs_ventilator, needs_dialysis, predicted_stay_days, diagnosis,
			attributes, created_at, updated_at
		FROM patients
		WHERE owner_id = $1 AND token = $2 AND deleted_at IS NULL
	`

	return r.scanPatient(r.db.QueryRowContext(ctx, query, ownerID, token))
}

// Update 更新患者
func (r *PatientRepository) Update(ctx context.Context, p *model.Patient) error {
	p.UpdatedAt = time.Now()

	attrsJSON, _ := json.Marshal(p.Attributes)

	query := `
		UPDATE patients SET
			token = $2, name = $3, phone = $4, arrival_time = $5, severity = $6,
			emergency = $7, needs_ventilator = $8, needs_dialysis = $9,
			predicted_stay_days = $10, diagnosis = $11, attributes = $12, updated_at = $13
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.Token, p.Name, p.Phone, p.ArrivalTime, p.Severity,
		p.Emergency, p.NeedsVentilator, p.NeedsDialysis,
		p.PredictedStayDays, p.Diagnosis, attrsJSON, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新患者失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("患者不存在")
	}

	return nil
}

// Delete 软删除患者
func (r *PatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE patients SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除患者失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("患者不存在")
	}

	return nil
}

// List 查询患者列表
func (r *PatientRepository) List(ctx context.Context, filter ListFilter) ([]*model.Patient, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR token ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	// 严重程度过滤
	if sev, ok := filter.Extra["severity"].(string); ok && sev != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIndex))
		args = append(args, sev)
		argIndex++
	}

	// 急诊过滤
	if emergency, ok := filter.Extra["emergency"].(bool); ok {
		conditions = append(conditions, fmt.Sprintf("emergency = $%d", argIndex))
		args = append(args, emergency)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM patients WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "arrival_time"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "asc"
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, token, name, phone, arrival_time, severity, emergency,
			needs_ventilator, needs_dialysis, predicted_stay_days, diagnosis,
			attributes, created_at, updated_at
		FROM patients
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

	var patients []*model.Patient
	for rows.Next() {
		p, err := r.scanPatientRow(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}

	return patients, total, nil
}

// ListWaiting 获取资源方所有在排队等待的患者（按到达时间升序）
func (r *PatientRepository) ListWaiting(ctx context.Context, ownerID uuid.UUID) ([]*model.Patient, error) {
	query := `
		SELECT p.id, p.owner_id, p.token, p.name, p.phone, p.arrival_time, p.severity, p.emergency,
			p.needs_ventilator, p.needs_dialysis, p.predicted_stay_days, p.diagnosis,
			p.attributes, p.created_at, p.updated_at
		FROM patients p
		JOIN queue_entries q ON q.patient_id = p.id AND q.deleted_at IS NULL
		WHERE p.owner_id = $1 AND q.status = 'waiting' AND p.deleted_at IS NULL
		ORDER BY p.arrival_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询等待患者失败: %w", err)
	}
	defer rows.Close()

	var patients []*model.Patient
	for rows.Next() {
		p, err := r.scanPatientRow(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}

	return patients, nil
}

// scanPatient 扫描单行患者数据
func (r *PatientRepository) scanPatient(row *sql.Row) (*model.Patient, error) {
	p := &model.Patient{}
	var attrsJSON []byte

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Token, &p.Name, &p.Phone, &p.ArrivalTime, &p.Severity, &p.Emergency,
		&p.NeedsVentilator, &p.NeedsDialysis, &p.PredictedStayDays, &p.Diagnosis,
		&attrsJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描患者数据失败: %w", err)
	}

	if err := decodePatientAttributes(p, attrsJSON); err != nil {
		return nil, err
	}

	return p, nil
}

// scanPatientRow 扫描Rows中的患者数据
func (r *PatientRepository) scanPatientRow(rows *sql.Rows) (*model.Patient, error) {
	p := &model.Patient{}
	var attrsJSON []byte

	err := rows.Scan(
		&p.ID, &p.OwnerID, &p.Token, &p.Name, &p.Phone, &p.ArrivalTime, &p.Severity, &p.Emergency,
		&p.NeedsVentilator, &p.NeedsDialysis, &p.PredictedStayDays, &p.Diagnosis,
		&attrsJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描患者数据失败: %w", err)
	}

	if err := decodePatientAttributes(p, attrsJSON); err != nil {
		return nil, err
	}

	return p, nil
}

// decodePatientAttributes 解析患者的扩展属性列
// 属性列损坏时返回错误，避免按空属性评估策略规则
func decodePatientAttributes(p *model.Patient, attrsJSON []byte) error {
	if len(attrsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(attrsJSON, &p.Attributes); err != nil {
		return fmt.Errorf("解析患者属性失败: %w", err)
	}
	return nil
}
