// Package scenario 提供场景测试
package scenario

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/allocator"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// memoryStore 内存版紧急分配数据访问，模拟床位、入住与队列状态流转
type memoryStore struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*model.QueueEntry
	beds        map[uuid.UUID]*model.Bed
	occupants   []*model.Occupant
	admissions  map[uuid.UUID]*model.Admission
	transferred []*allocator.Transfer
	committed   []*allocator.AssignmentCommit
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries:    make(map[uuid.UUID]*model.QueueEntry),
		beds:       make(map[uuid.UUID]*model.Bed),
		admissions: make(map[uuid.UUID]*model.Admission),
	}
}

func (s *memoryStore) enqueue(ownerID uuid.UUID) *model.QueueEntry {
	entry := &model.QueueEntry{
		BaseModel: model.NewBaseModel(),
		OwnerID:   ownerID,
		PatientID: uuid.New(),
		Status:    model.QueueStatusWaiting,
	}
	s.entries[entry.ID] = entry
	return entry
}

func (s *memoryStore) placeBed(ownerID uuid.UUID, category model.BedCategory, status string) *model.Bed {
	bed := &model.Bed{
		BaseModel:     model.NewBaseModel(),
		OwnerID:       ownerID,
		Category:      category,
		HasVentilator: category == model.CategoryICU,
		HasDialysis:   category == model.CategoryICU,
		Status:        status,
	}
	s.beds[bed.ID] = bed
	return bed
}

func (s *memoryStore) admit(bed *model.Bed, name, roundStatus string) *model.Occupant {
	occ := &model.Occupant{
		AdmissionID:       uuid.New(),
		PatientID:         uuid.New(),
		BedID:             bed.ID,
		Name:              name,
		LatestRoundStatus: roundStatus,
	}
	s.occupants = append(s.occupants, occ)
	adm := &model.Admission{
		BaseModel: model.NewBaseModel(),
		OwnerID:   bed.OwnerID,
		PatientID: occ.PatientID,
		BedID:     bed.ID,
		Status:    model.AdmissionStatusActive,
	}
	adm.ID = occ.AdmissionID
	s.admissions[adm.ID] = adm
	return occ
}

func (s *memoryStore) QueueEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, errors.NotFound("排队记录", id.String())
	}
	copied := *entry
	return &copied, nil
}

func (s *memoryStore) FreeBeds(ctx context.Context, ownerID uuid.UUID, category model.BedCategory) ([]*model.Bed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Bed
	for _, bed := range s.beds {
		if bed.OwnerID == ownerID && bed.Category == category && bed.Status == model.BedStatusFree {
			copied := *bed
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *memoryStore) ICUOccupants(ctx context.Context, ownerID uuid.UUID) ([]*model.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Occupant(nil), s.occupants...), nil
}

func (s *memoryStore) TransferOccupant(ctx context.Context, transfer *allocator.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferred = append(s.transferred, transfer)

	// 原ICU入住记录出院，普通床位另起一条在住记录
	icu, ok := s.admissions[transfer.AdmissionID]
	if !ok || icu.Status != model.AdmissionStatusActive {
		return errors.NotFound("入住记录", transfer.AdmissionID.String())
	}
	icu.Status = model.AdmissionStatusDischarged
	icu.DischargeTime = transfer.TransferTime
	general := &model.Admission{
		BaseModel:     model.NewBaseModel(),
		OwnerID:       transfer.OwnerID,
		PatientID:     transfer.PatientID,
		BedID:         transfer.ToBedID,
		AdmissionTime: transfer.TransferTime,
		DischargeTime: transfer.TransferTime.AddDate(0, 0, transfer.StayDays),
		StayDays:      transfer.StayDays,
		Confidence:    transfer.Confidence,
		Status:        model.AdmissionStatusActive,
	}
	s.admissions[general.ID] = general

	s.beds[transfer.FromBedID].Status = model.BedStatusFree
	s.beds[transfer.ToBedID].Status = model.BedStatusOccupied
	for i, occ := range s.occupants {
		if occ.AdmissionID == transfer.AdmissionID {
			s.occupants = append(s.occupants[:i], s.occupants[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memoryStore) CommitAssignment(ctx context.Context, commit *allocator.AssignmentCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, commit)
	s.beds[commit.BedID].Status = model.BedStatusOccupied
	s.entries[commit.QueueEntryID].Status = model.QueueStatusAssigned
	return nil
}

// TestEmergencyFreeICUBed 紧急分配有空床测试
func TestEmergencyFreeICUBed(t *testing.T) {
	ownerID := uuid.New()
	store := newMemoryStore()
	entry := store.enqueue(ownerID)
	store.placeBed(ownerID, model.CategoryICU, model.BedStatusFree)

	a := allocator.NewEmergencyAllocator(store, nil, allocator.NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID,
		allocator.Requirements{NeedsVentilator: true}, 5)
	if err != nil {
		t.Fatalf("紧急分配失败: %v", err)
	}

	t.Logf("分配结果: %s", result.Message)
	if !result.Success || result.BedFreed {
		t.Errorf("有空床应直接分配: success=%v bedFreed=%v", result.Success, result.BedFreed)
	}
}

// TestEmergencyTransferPath 紧急分配转床腾位测试
// 无空闲ICU床位，但有稳定在住患者和空闲普通床位
func TestEmergencyTransferPath(t *testing.T) {
	ownerID := uuid.New()
	store := newMemoryStore()
	entry := store.enqueue(ownerID)

	icuBed := store.placeBed(ownerID, model.CategoryICU, model.BedStatusOccupied)
	generalBed := store.placeBed(ownerID, model.CategoryGeneral, model.BedStatusFree)
	stable := store.admit(icuBed, "王稳定", model.RoundStatusStable)

	a := allocator.NewEmergencyAllocator(store, nil, allocator.NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID, allocator.Requirements{}, 4)
	if err != nil {
		t.Fatalf("紧急分配失败: %v", err)
	}

	t.Logf("分配结果: %s", result.Message)
	if !result.Success || !result.BedFreed {
		t.Fatalf("应通过转床腾位成功: success=%v bedFreed=%v", result.Success, result.BedFreed)
	}
	if result.TransferredPatient == nil || result.TransferredPatient.Name != stable.Name {
		t.Error("返回的转出患者不符")
	}
	if len(store.transferred) != 1 {
		t.Fatalf("转床次数 = %d, expected 1", len(store.transferred))
	}
	// 紧急患者入住腾出的ICU床位
	if len(store.committed) != 1 || store.committed[0].BedID != icuBed.ID {
		t.Error("紧急患者应入住腾出的ICU床位")
	}

	// 转出患者的ICU记录出院，同时在普通床位留有新的在住记录
	icuRecord := store.admissions[stable.AdmissionID]
	if icuRecord.Status != model.AdmissionStatusDischarged {
		t.Errorf("原ICU入住记录状态 = %s, expected discharged", icuRecord.Status)
	}
	var generalRecord *model.Admission
	for _, adm := range store.admissions {
		if adm.PatientID == stable.PatientID && adm.ID != stable.AdmissionID {
			generalRecord = adm
			break
		}
	}
	if generalRecord == nil {
		t.Fatal("缺少普通床位的新入住记录")
	}
	if generalRecord.Status != model.AdmissionStatusActive || generalRecord.BedID != generalBed.ID {
		t.Errorf("普通床位记录异常: bed=%v status=%s", generalRecord.BedID, generalRecord.Status)
	}
	if generalRecord.StayDays != 3 || generalRecord.Confidence != 0.6 {
		t.Errorf("普通床位记录估计值异常: stay=%d conf=%v",
			generalRecord.StayDays, generalRecord.Confidence)
	}
}

// TestEmergencyTotalFailure 紧急分配完全失败测试
// 无空闲ICU床位，在住患者均病情恶化不可转出
func TestEmergencyTotalFailure(t *testing.T) {
	ownerID := uuid.New()
	store := newMemoryStore()
	entry := store.enqueue(ownerID)

	icuBed := store.placeBed(ownerID, model.CategoryICU, model.BedStatusOccupied)
	store.placeBed(ownerID, model.CategoryGeneral, model.BedStatusFree)
	store.admit(icuBed, "李危重", model.RoundStatusDeteriorating)

	a := allocator.NewEmergencyAllocator(store, nil, allocator.NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID, allocator.Requirements{}, 2)
	if err != nil {
		t.Fatalf("紧急分配失败: %v", err)
	}

	t.Logf("分配结果: %s", result.Message)
	if result.Success {
		t.Error("无可转出患者时分配应失败")
	}
	// 失败时不应改变任何状态
	if len(store.transferred) != 0 || len(store.committed) != 0 {
		t.Error("失败路径不应有状态变更")
	}
	if len(store.occupants) != 1 {
		t.Error("在住患者列表不应变化")
	}
	if store.entries[entry.ID].Status != model.QueueStatusWaiting {
		t.Error("排队记录应保持等待状态")
	}
}

// TestEmergencyConcurrentRace 并发紧急分配回归测试
// 两个请求同时竞争最后一张空闲ICU床位，必须恰好一个成功
func TestEmergencyConcurrentRace(t *testing.T) {
	ownerID := uuid.New()
	store := newMemoryStore()
	store.placeBed(ownerID, model.CategoryICU, model.BedStatusFree)

	first := store.enqueue(ownerID)
	second := store.enqueue(ownerID)

	a := allocator.NewEmergencyAllocator(store, nil, allocator.NewOwnerLocks())

	var wg sync.WaitGroup
	results := make([]*allocator.AllocationResult, 2)
	errs := make([]error, 2)
	for i, entry := range []*model.QueueEntry{first, second} {
		wg.Add(1)
		go func(i int, entryID uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = a.Allocate(context.Background(), entryID, ownerID, allocator.Requirements{}, 3)
		}(i, entry.ID)
	}
	wg.Wait()

	succeeded := 0
	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("第%d个请求返回错误: %v", i+1, errs[i])
		}
		if results[i].Success {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("成功数 = %d, expected 1", succeeded)
	}
	if len(store.committed) != 1 {
		t.Errorf("落库次数 = %d, expected 1", len(store.committed))
	}
	t.Logf("并发竞争结果: %d 成功 / 2 请求", succeeded)
}
