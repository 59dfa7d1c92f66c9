// Package service 提供业务逻辑层
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/internal/database"
	"github.com/paichuang/paichuang/internal/metrics"
	"github.com/paichuang/paichuang/internal/repository"
	"github.com/paichuang/paichuang/pkg/allocator"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// EmergencyService 紧急分配服务
type EmergencyService struct {
	allocator *allocator.EmergencyAllocator
}

// NewEmergencyService 创建紧急分配服务
// 与常规排程共享资源方锁，保证同一资源方的落库操作串行
func NewEmergencyService(db *database.DB, notifier allocator.Notifier, locks *allocator.OwnerLocks) *EmergencyService {
	store := &emergencyStore{
		db:     db,
		beds:   repository.NewBedRepository(db),
		queue:  repository.NewQueueRepository(db),
		admits: repository.NewAdmissionRepository(db),
	}
	return &EmergencyService{
		allocator: allocator.NewEmergencyAllocator(store, notifier, locks),
	}
}

// Allocate 为紧急患者分配ICU床位
func (s *EmergencyService) Allocate(
	ctx context.Context,
	queueEntryID, ownerID uuid.UUID,
	req allocator.Requirements,
	predictedStayDays int,
) (*allocator.AllocationResult, error) {
	result, err := s.allocator.Allocate(ctx, queueEntryID, ownerID, req, predictedStayDays)
	switch {
	case err != nil:
		metrics.RecordEmergencyAllocation("error")
	case result.BedFreed:
		metrics.RecordEmergencyAllocation("transfer")
	case result.Success:
		metrics.RecordEmergencyAllocation("direct")
	default:
		metrics.RecordEmergencyAllocation("rejected")
	}
	return result, err
}

// emergencyStore 紧急分配的数据访问适配器
type emergencyStore struct {
	db     *database.DB
	beds   *repository.BedRepository
	queue  *repository.QueueRepository
	admits *repository.AdmissionRepository
}

// QueueEntry 获取排队记录
func (s *emergencyStore) QueueEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.queue.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载排队记录失败")
	}
	if entry == nil {
		return nil, errors.NotFound("排队记录", id.String())
	}
	return entry, nil
}

// FreeBeds 获取指定类别的空闲床位
func (s *emergencyStore) FreeBeds(ctx context.Context, ownerID uuid.UUID, category model.BedCategory) ([]*model.Bed, error) {
	beds, err := s.beds.ListFree(ctx, ownerID, category)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载空闲床位失败")
	}
	return beds, nil
}

// ICUOccupants 获取ICU在住患者
func (s *emergencyStore) ICUOccupants(ctx context.Context, ownerID uuid.UUID) ([]*model.Occupant, error) {
	occupants, err := s.queue.ICUOccupants(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载在住患者失败")
	}
	return occupants, nil
}

// TransferOccupant 在事务内执行转床：
// 原ICU入住记录置为出院，另写一条普通床位的在住记录，再翻转两张床位状态
func (s *emergencyStore) TransferOccupant(ctx context.Context, transfer *allocator.Transfer) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		dischargeICU := `
			UPDATE admissions SET
				status = 'discharged', discharge_time = $2, updated_at = $3
			WHERE id = $1 AND status = 'active' AND deleted_at IS NULL
		`
		result, err := tx.ExecContext(ctx, dischargeICU,
			transfer.AdmissionID, transfer.TransferTime, time.Now(),
		)
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "结束ICU入住记录失败")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return errors.NotFound("入住记录", transfer.AdmissionID.String())
		}

		admission := &model.Admission{
			BaseModel:     model.NewBaseModel(),
			OwnerID:       transfer.OwnerID,
			PatientID:     transfer.PatientID,
			BedID:         transfer.ToBedID,
			AdmissionTime: transfer.TransferTime,
			DischargeTime: transfer.TransferTime.AddDate(0, 0, transfer.StayDays),
			StayDays:      transfer.StayDays,
			Confidence:    transfer.Confidence,
			Status:        model.AdmissionStatusActive,
			Notes:         "紧急腾位转出",
		}

		insertQuery := `
			INSERT INTO admissions (
				id, owner_id, patient_id, bed_id, admission_time, discharge_time,
				waiting_hours, stay_days, confidence, status, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		if _, err := tx.ExecContext(ctx, insertQuery,
			admission.ID, admission.OwnerID, admission.PatientID, admission.BedID,
			admission.AdmissionTime, admission.DischargeTime, admission.WaitingHours,
			admission.StayDays, admission.Confidence, admission.Status, admission.Notes,
			admission.CreatedAt, admission.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "写入普通床位入住记录失败")
		}

		if err := setBedStatus(ctx, tx, transfer.FromBedID, model.BedStatusFree); err != nil {
			return err
		}
		return setBedStatus(ctx, tx, transfer.ToBedID, model.BedStatusOccupied)
	})
}

// CommitAssignment 在事务内落库紧急入住：写入住记录、占用床位、更新排队状态
func (s *emergencyStore) CommitAssignment(ctx context.Context, commit *allocator.AssignmentCommit) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		admission := &model.Admission{
			BaseModel:     model.NewBaseModel(),
			OwnerID:       commit.OwnerID,
			PatientID:     commit.PatientID,
			BedID:         commit.BedID,
			AdmissionTime: commit.AdmitTime,
			DischargeTime: commit.AdmitTime.AddDate(0, 0, commit.StayDays),
			StayDays:      commit.StayDays,
			Status:        model.AdmissionStatusActive,
			Notes:         "紧急分配",
		}

		insertQuery := `
			INSERT INTO admissions (
				id, owner_id, patient_id, bed_id, admission_time, discharge_time,
				waiting_hours, stay_days, confidence, status, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		if _, err := tx.ExecContext(ctx, insertQuery,
			admission.ID, admission.OwnerID, admission.PatientID, admission.BedID,
			admission.AdmissionTime, admission.DischargeTime, admission.WaitingHours,
			admission.StayDays, admission.Confidence, admission.Status, admission.Notes,
			admission.CreatedAt, admission.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "写入入住记录失败")
		}

		if err := setBedStatus(ctx, tx, commit.BedID, model.BedStatusOccupied); err != nil {
			return err
		}

		markQuery := `
			UPDATE queue_entries SET status = 'assigned', bed_id = $2, updated_at = $3
			WHERE id = $1 AND status = 'waiting' AND deleted_at IS NULL
		`
		result, err := tx.ExecContext(ctx, markQuery, commit.QueueEntryID, commit.BedID, time.Now())
		if err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "更新排队状态失败")
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return errors.NotFound("排队记录", commit.QueueEntryID.String())
		}

		return nil
	})
}

// setBedStatus 在事务内更新床位状态
func setBedStatus(ctx context.Context, tx *sql.Tx, bedID uuid.UUID, status string) error {
	query := `UPDATE beds SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, bedID, status, time.Now())
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "更新床位状态失败")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("床位", bedID.String())
	}
	return nil
}
