package allocator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/logger"
	"github.com/paichuang/paichuang/pkg/model"
)

// 转出在住患者到普通床位时使用的保守估计
const (
	transferStayDays   = 3
	transferConfidence = 0.6
)

const notifyTimeout = 5 * time.Second

// Requirements 紧急患者的硬性设备需求
type Requirements struct {
	NeedsVentilator bool `json:"needs_ventilator"`
	NeedsDialysis   bool `json:"needs_dialysis"`
}

// AllocationResult 紧急分配结果
type AllocationResult struct {
	Success            bool            `json:"success"`
	BedFreed           bool            `json:"bed_freed"`
	TransferredPatient *model.Occupant `json:"transferred_patient,omitempty"`
	Bed                *model.Bed      `json:"bed,omitempty"`
	Message            string          `json:"message"`
}

// Transfer 在住患者转床指令
type Transfer struct {
	OwnerID      uuid.UUID `json:"owner_id"`
	AdmissionID  uuid.UUID `json:"admission_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	FromBedID    uuid.UUID `json:"from_bed_id"`
	ToBedID      uuid.UUID `json:"to_bed_id"`
	TransferTime time.Time `json:"transfer_time"`
	StayDays     int       `json:"stay_days"`
	Confidence   float64   `json:"confidence"`
}

// AssignmentCommit 紧急患者入住指令
type AssignmentCommit struct {
	OwnerID      uuid.UUID `json:"owner_id"`
	QueueEntryID uuid.UUID `json:"queue_entry_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	BedID        uuid.UUID `json:"bed_id"`
	AdmitTime    time.Time `json:"admit_time"`
	StayDays     int       `json:"stay_days"`
}

// EmergencyStore 紧急分配依赖的数据访问接口
type EmergencyStore interface {
	QueueEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
	FreeBeds(ctx context.Context, ownerID uuid.UUID, category model.BedCategory) ([]*model.Bed, error)
	ICUOccupants(ctx context.Context, ownerID uuid.UUID) ([]*model.Occupant, error)
	TransferOccupant(ctx context.Context, transfer *Transfer) error
	CommitAssignment(ctx context.Context, commit *AssignmentCommit) error
}

// Notifier 通知边界，失败不影响分配结果
type Notifier interface {
	NotifyTransfer(ctx context.Context, ownerID uuid.UUID, occupant *model.Occupant, toBed *model.Bed) error
	NotifyAssignment(ctx context.Context, ownerID uuid.UUID, entry *model.QueueEntry, bed *model.Bed) error
}

// EmergencyAllocator 紧急ICU分配器
// 优先直接使用空闲兼容ICU床位；没有时尝试把病情稳定的在住患者转到普通床位腾位
type EmergencyAllocator struct {
	store    EmergencyStore
	notifier Notifier
	locks    *OwnerLocks
	logger   *logger.AllocatorLogger
	now      func() time.Time
}

// NewEmergencyAllocator 创建紧急分配器
func NewEmergencyAllocator(store EmergencyStore, notifier Notifier, locks *OwnerLocks) *EmergencyAllocator {
	return &EmergencyAllocator{
		store:    store,
		notifier: notifier,
		locks:    locks,
		logger:   logger.NewAllocatorLogger(),
		now:      time.Now,
	}
}

// Allocate 为紧急患者分配ICU床位
// 阻塞获取资源方锁：同一资源方的并发紧急请求串行处理，
// 一张空床只会被其中一个请求拿到，其余请求看到已更新的床位状态
func (a *EmergencyAllocator) Allocate(
	ctx context.Context,
	queueEntryID uuid.UUID,
	ownerID uuid.UUID,
	req Requirements,
	predictedStayDays int,
) (*AllocationResult, error) {
	unlock := a.locks.Lock(ownerID)
	defer unlock()

	entry, err := a.store.QueueEntry(ctx, queueEntryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsWaiting() {
		return nil, errors.InvalidInput("queue_entry_id", "排队记录不在等待状态")
	}

	probe := &model.Patient{
		NeedsVentilator: req.NeedsVentilator,
		NeedsDialysis:   req.NeedsDialysis,
	}

	// 直接路径：空闲兼容ICU床位
	icuBeds, err := a.store.FreeBeds(ctx, ownerID, model.CategoryICU)
	if err != nil {
		return nil, err
	}
	if bed := pickBestBed(probe, icuBeds); bed != nil {
		if err := a.commit(ctx, entry, bed, predictedStayDays); err != nil {
			return nil, err
		}
		a.notifyAssignmentAsync(ownerID, entry, bed)
		return &AllocationResult{
			Success: true,
			Bed:     bed,
			Message: "已直接分配空闲ICU床位",
		}, nil
	}

	// 腾位路径：转出一名病情稳定或好转的在住患者
	occupants, err := a.store.ICUOccupants(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var candidate *model.Occupant
	for _, occ := range occupants {
		if occ.IsTransferable() {
			candidate = occ
			break
		}
	}
	if candidate == nil {
		return &AllocationResult{
			Success: false,
			Message: "无空闲ICU床位，且没有可转出的在住患者",
		}, nil
	}

	generalBeds, err := a.store.FreeBeds(ctx, ownerID, model.CategoryGeneral)
	if err != nil {
		return nil, err
	}
	if len(generalBeds) == 0 {
		return &AllocationResult{
			Success: false,
			Message: "无空闲ICU床位，且没有普通床位可供转出",
		}, nil
	}
	target := generalBeds[0]

	transferTime := a.now()
	transfer := &Transfer{
		OwnerID:      ownerID,
		AdmissionID:  candidate.AdmissionID,
		PatientID:    candidate.PatientID,
		FromBedID:    candidate.BedID,
		ToBedID:      target.ID,
		TransferTime: transferTime,
		StayDays:     transferStayDays,
		Confidence:   transferConfidence,
	}
	if err := a.store.TransferOccupant(ctx, transfer); err != nil {
		return nil, err
	}
	a.logger.Transfer(ownerID.String(), candidate.PatientID.String(), candidate.BedID.String(), target.ID.String())
	a.notifyTransferAsync(ownerID, candidate, target)

	// 转出后重新取空闲ICU床位（腾出的那张现在可用）
	icuBeds, err = a.store.FreeBeds(ctx, ownerID, model.CategoryICU)
	if err != nil {
		return nil, err
	}
	bed := pickBestBed(probe, icuBeds)
	if bed == nil {
		return nil, errors.NoCompatibleResource("转出后仍无兼容ICU床位")
	}
	if err := a.commit(ctx, entry, bed, predictedStayDays); err != nil {
		return nil, err
	}
	a.notifyAssignmentAsync(ownerID, entry, bed)

	return &AllocationResult{
		Success:            true,
		BedFreed:           true,
		TransferredPatient: candidate,
		Bed:                bed,
		Message:            "已转出在住患者并分配腾出的ICU床位",
	}, nil
}

// commit 落库紧急入住
func (a *EmergencyAllocator) commit(ctx context.Context, entry *model.QueueEntry, bed *model.Bed, stayDays int) error {
	return a.store.CommitAssignment(ctx, &AssignmentCommit{
		OwnerID:      entry.OwnerID,
		QueueEntryID: entry.ID,
		PatientID:    entry.PatientID,
		BedID:        bed.ID,
		AdmitTime:    a.now(),
		StayDays:     stayDays,
	})
}

// pickBestBed 在空闲床位中按兼容分挑选
// 硬性需求不满足的直接排除；兼容分相同取先遇到的一张
func pickBestBed(p *model.Patient, beds []*model.Bed) *model.Bed {
	var best *model.Bed
	bestScore := -1
	for _, bed := range beds {
		if !model.Compatible(p, bed) {
			continue
		}
		if score := model.CompatibilityScore(p, bed); score > bestScore {
			best = bed
			bestScore = score
		}
	}
	return best
}

// notifyTransferAsync 异步通知转床，失败只记日志
func (a *EmergencyAllocator) notifyTransferAsync(ownerID uuid.UUID, occupant *model.Occupant, toBed *model.Bed) {
	if a.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := a.notifier.NotifyTransfer(ctx, ownerID, occupant, toBed); err != nil {
			logger.WithError(err).
				Str("patient_id", occupant.PatientID.String()).
				Msg("转床通知发送失败")
		}
	}()
}

// notifyAssignmentAsync 异步通知入住，失败只记日志
func (a *EmergencyAllocator) notifyAssignmentAsync(ownerID uuid.UUID, entry *model.QueueEntry, bed *model.Bed) {
	if a.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := a.notifier.NotifyAssignment(ctx, ownerID, entry, bed); err != nil {
			logger.WithError(err).
				Str("patient_id", entry.PatientID.String()).
				Msg("入住通知发送失败")
		}
	}()
}
