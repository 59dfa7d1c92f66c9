package allocator

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// fakeAdmission 内存版入住记录
type fakeAdmission struct {
	id         uuid.UUID
	patientID  uuid.UUID
	bedID      uuid.UUID
	status     string
	stayDays   int
	confidence float64
}

// fakeEmergencyStore 内存版数据访问，模拟床位、入住与排队状态流转
type fakeEmergencyStore struct {
	mu         sync.Mutex
	entries    map[uuid.UUID]*model.QueueEntry
	beds       map[uuid.UUID]*model.Bed
	occupants  []*model.Occupant
	admissions map[uuid.UUID]*fakeAdmission

	transfers []*Transfer
	commits   []*AssignmentCommit
}

func newFakeStore() *fakeEmergencyStore {
	return &fakeEmergencyStore{
		entries:    make(map[uuid.UUID]*model.QueueEntry),
		beds:       make(map[uuid.UUID]*model.Bed),
		admissions: make(map[uuid.UUID]*fakeAdmission),
	}
}

func (s *fakeEmergencyStore) addEntry(ownerID uuid.UUID) *model.QueueEntry {
	entry := &model.QueueEntry{
		BaseModel: model.NewBaseModel(),
		OwnerID:   ownerID,
		PatientID: uuid.New(),
		Status:    model.QueueStatusWaiting,
	}
	s.entries[entry.ID] = entry
	return entry
}

func (s *fakeEmergencyStore) addBed(ownerID uuid.UUID, category model.BedCategory, status string, ventilator, dialysis bool) *model.Bed {
	bed := &model.Bed{
		BaseModel:     model.NewBaseModel(),
		OwnerID:       ownerID,
		Category:      category,
		HasVentilator: ventilator,
		HasDialysis:   dialysis,
		Status:        status,
	}
	s.beds[bed.ID] = bed
	return bed
}

func (s *fakeEmergencyStore) addOccupant(bed *model.Bed, roundStatus string) *model.Occupant {
	occ := &model.Occupant{
		AdmissionID:       uuid.New(),
		PatientID:         uuid.New(),
		BedID:             bed.ID,
		LatestRoundStatus: roundStatus,
	}
	s.occupants = append(s.occupants, occ)
	s.admissions[occ.AdmissionID] = &fakeAdmission{
		id:        occ.AdmissionID,
		patientID: occ.PatientID,
		bedID:     bed.ID,
		status:    model.AdmissionStatusActive,
	}
	return occ
}

// admissionsForPatient 按患者取入住记录
func (s *fakeEmergencyStore) admissionsForPatient(patientID uuid.UUID) []*fakeAdmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*fakeAdmission
	for _, adm := range s.admissions {
		if adm.patientID == patientID {
			result = append(result, adm)
		}
	}
	return result
}

func (s *fakeEmergencyStore) QueueEntry(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, errors.NotFound("排队记录", id.String())
	}
	copied := *entry
	return &copied, nil
}

func (s *fakeEmergencyStore) FreeBeds(ctx context.Context, ownerID uuid.UUID, category model.BedCategory) ([]*model.Bed, error) {
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

func (s *fakeEmergencyStore) ICUOccupants(ctx context.Context, ownerID uuid.UUID) ([]*model.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Occupant(nil), s.occupants...), nil
}

func (s *fakeEmergencyStore) TransferOccupant(ctx context.Context, transfer *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, transfer)

	// 原ICU入住记录出院，普通床位另起一条在住记录
	icu, ok := s.admissions[transfer.AdmissionID]
	if !ok || icu.status != model.AdmissionStatusActive {
		return errors.NotFound("入住记录", transfer.AdmissionID.String())
	}
	icu.status = model.AdmissionStatusDischarged
	general := &fakeAdmission{
		id:         uuid.New(),
		patientID:  transfer.PatientID,
		bedID:      transfer.ToBedID,
		status:     model.AdmissionStatusActive,
		stayDays:   transfer.StayDays,
		confidence: transfer.Confidence,
	}
	s.admissions[general.id] = general

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

func (s *fakeEmergencyStore) CommitAssignment(ctx context.Context, commit *AssignmentCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, commit)
	s.beds[commit.BedID].Status = model.BedStatusOccupied
	s.entries[commit.QueueEntryID].Status = model.QueueStatusAssigned
	return nil
}

func TestEmergencyAllocator_DirectAssignment(t *testing.T) {
	ownerID := uuid.New()
	store := newFakeStore()
	entry := store.addEntry(ownerID)

	// 两张空闲ICU床位，需呼吸机时应挑兼容分更高的精确匹配
	store.addBed(ownerID, model.CategoryICU, model.BedStatusFree, true, true)
	exact := store.addBed(ownerID, model.CategoryICU, model.BedStatusFree, true, false)

	a := NewEmergencyAllocator(store, nil, NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID,
		Requirements{NeedsVentilator: true}, 5)
	if err != nil {
		t.Fatalf("Allocate() 返回错误: %v", err)
	}

	if !result.Success {
		t.Fatalf("分配应成功: %s", result.Message)
	}
	if result.BedFreed {
		t.Error("直接路径不应标记腾位")
	}
	if result.Bed.ID != exact.ID {
		t.Errorf("应选精确匹配床位 %v, got %v", exact.ID, result.Bed.ID)
	}

	if len(store.commits) != 1 {
		t.Fatalf("落库次数 = %d, expected 1", len(store.commits))
	}
	commit := store.commits[0]
	if commit.QueueEntryID != entry.ID || commit.StayDays != 5 {
		t.Errorf("落库内容异常: %+v", commit)
	}
	if store.entries[entry.ID].Status != model.QueueStatusAssigned {
		t.Error("排队记录应转为assigned")
	}
}

func TestEmergencyAllocator_TransferPath(t *testing.T) {
	ownerID := uuid.New()
	store := newFakeStore()
	entry := store.addEntry(ownerID)

	icuBed := store.addBed(ownerID, model.CategoryICU, model.BedStatusOccupied, true, true)
	generalBed := store.addBed(ownerID, model.CategoryGeneral, model.BedStatusFree, false, false)
	stable := store.addOccupant(icuBed, model.RoundStatusStable)

	a := NewEmergencyAllocator(store, nil, NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID, Requirements{}, 4)
	if err != nil {
		t.Fatalf("Allocate() 返回错误: %v", err)
	}

	if !result.Success || !result.BedFreed {
		t.Fatalf("应走腾位路径成功: %+v", result)
	}
	if result.TransferredPatient == nil || result.TransferredPatient.PatientID != stable.PatientID {
		t.Error("转出患者不符")
	}
	if result.Bed.ID != icuBed.ID {
		t.Errorf("紧急患者应入住腾出的ICU床位 %v, got %v", icuBed.ID, result.Bed.ID)
	}

	if len(store.transfers) != 1 {
		t.Fatalf("转床次数 = %d, expected 1", len(store.transfers))
	}
	transfer := store.transfers[0]
	if transfer.ToBedID != generalBed.ID {
		t.Error("应转到空闲普通床位")
	}
	if transfer.StayDays != 3 {
		t.Errorf("转出住期 = %d, expected 3", transfer.StayDays)
	}
	if transfer.Confidence != 0.6 {
		t.Errorf("转出置信度 = %v, expected 0.6", transfer.Confidence)
	}

	if store.beds[generalBed.ID].Status != model.BedStatusOccupied {
		t.Error("普通床位应转为占用")
	}
	if store.beds[icuBed.ID].Status != model.BedStatusOccupied {
		t.Error("腾出的ICU床位应被紧急患者再次占用")
	}

	// 转出患者保留两条入住记录：原ICU记录出院，普通床位新开一条在住记录
	admissions := store.admissionsForPatient(stable.PatientID)
	if len(admissions) != 2 {
		t.Fatalf("转出患者入住记录数 = %d, expected 2", len(admissions))
	}
	var icuRecord, generalRecord *fakeAdmission
	for _, adm := range admissions {
		switch adm.id {
		case stable.AdmissionID:
			icuRecord = adm
		default:
			generalRecord = adm
		}
	}
	if icuRecord == nil || icuRecord.status != model.AdmissionStatusDischarged {
		t.Errorf("原ICU入住记录应转为discharged: %+v", icuRecord)
	}
	if generalRecord == nil {
		t.Fatal("缺少普通床位的新入住记录")
	}
	if generalRecord.status != model.AdmissionStatusActive || generalRecord.bedID != generalBed.ID {
		t.Errorf("普通床位记录异常: %+v", generalRecord)
	}
	if generalRecord.stayDays != 3 || generalRecord.confidence != 0.6 {
		t.Errorf("普通床位记录估计值异常: stay=%d conf=%v",
			generalRecord.stayDays, generalRecord.confidence)
	}
}

func TestEmergencyAllocator_NoTransferableOccupant(t *testing.T) {
	ownerID := uuid.New()
	store := newFakeStore()
	entry := store.addEntry(ownerID)

	icuBed := store.addBed(ownerID, model.CategoryICU, model.BedStatusOccupied, true, true)
	store.addBed(ownerID, model.CategoryGeneral, model.BedStatusFree, false, false)
	store.addOccupant(icuBed, model.RoundStatusDeteriorating)

	a := NewEmergencyAllocator(store, nil, NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID, Requirements{}, 2)
	if err != nil {
		t.Fatalf("Allocate() 返回错误: %v", err)
	}

	if result.Success {
		t.Error("恶化患者不可转出，分配应失败")
	}
	if len(store.transfers) != 0 || len(store.commits) != 0 {
		t.Error("失败路径不应有任何落库")
	}
	if store.entries[entry.ID].Status != model.QueueStatusWaiting {
		t.Error("排队记录应保持waiting")
	}
}

func TestEmergencyAllocator_NoGeneralBed(t *testing.T) {
	ownerID := uuid.New()
	store := newFakeStore()
	entry := store.addEntry(ownerID)

	icuBed := store.addBed(ownerID, model.CategoryICU, model.BedStatusOccupied, true, true)
	store.addOccupant(icuBed, model.RoundStatusStable)

	a := NewEmergencyAllocator(store, nil, NewOwnerLocks())
	result, err := a.Allocate(context.Background(), entry.ID, ownerID, Requirements{}, 2)
	if err != nil {
		t.Fatalf("Allocate() 返回错误: %v", err)
	}

	if result.Success {
		t.Error("无普通床位可供转出，分配应失败")
	}
	// 在住患者不应被动过
	if len(store.transfers) != 0 {
		t.Error("失败路径不应执行转床")
	}
	if len(store.occupants) != 1 {
		t.Error("在住患者列表不应变化")
	}
}

func TestEmergencyAllocator_EntryNotWaiting(t *testing.T) {
	ownerID := uuid.New()
	store := newFakeStore()
	entry := store.addEntry(ownerID)
	entry.Status = model.QueueStatusAssigned
	store.addBed(ownerID, model.CategoryICU, model.BedStatusFree, true, true)

	a := NewEmergencyAllocator(store, nil, NewOwnerLocks())
	_, err := a.Allocate(context.Background(), entry.ID, ownerID, Requirements{}, 2)
	if !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("非等待状态应返回INVALID_INPUT, got %v", err)
	}
}

func TestEmergencyAllocator_ConcurrentLastBed(t *testing.T) {
	ownerID := uuid.New()
	store := newFakeStore()

	// 最后一张空闲ICU床位，两个并发紧急请求只能成功一个
	store.addBed(ownerID, model.CategoryICU, model.BedStatusFree, true, true)
	entries := []*model.QueueEntry{store.addEntry(ownerID), store.addEntry(ownerID)}

	a := NewEmergencyAllocator(store, nil, NewOwnerLocks())

	results := make([]*AllocationResult, len(entries))
	errs := make([]error, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entryID uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = a.Allocate(context.Background(), entryID, ownerID, Requirements{}, 2)
		}(i, entry.ID)
	}
	wg.Wait()

	succeeded := 0
	for i := range entries {
		if errs[i] != nil {
			t.Fatalf("第%d个请求返回错误: %v", i, errs[i])
		}
		if results[i].Success {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("成功数 = %d, expected 1", succeeded)
	}
	if len(store.commits) != 1 {
		t.Errorf("落库次数 = %d, expected 1", len(store.commits))
	}
}
