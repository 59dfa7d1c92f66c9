package validator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

func newAdmission(bedID uuid.UUID, start time.Time, days int) *model.Admission {
	return &model.Admission{
		BaseModel:     model.NewBaseModel(),
		BedID:         bedID,
		AdmissionTime: start,
		DischargeTime: start.AddDate(0, 0, days),
	}
}

func TestConflictDetector_Detect(t *testing.T) {
	d := NewConflictDetector()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	bedID := uuid.New()

	first := newAdmission(bedID, base, 3)
	overlapping := newAdmission(bedID, base.AddDate(0, 0, 1), 3)

	conflicts := d.Detect([]*model.Admission{first, overlapping})
	if len(conflicts) != 1 {
		t.Fatalf("冲突数 = %d, expected 1", len(conflicts))
	}

	c := conflicts[0]
	if c.BedID != bedID {
		t.Errorf("BedID = %v, expected %v", c.BedID, bedID)
	}
	if c.FirstID != first.ID || c.SecondID != overlapping.ID {
		t.Error("冲突双方应按入住时间排序")
	}
	// 重叠区间 = [第二条入住, 第一条出院)
	if !c.Overlap.Start.Equal(overlapping.AdmissionTime) || !c.Overlap.End.Equal(first.DischargeTime) {
		t.Errorf("重叠区间异常: %+v", c.Overlap)
	}
}

func TestConflictDetector_BackToBackNotConflict(t *testing.T) {
	d := NewConflictDetector()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	bedID := uuid.New()

	// 首尾相接：前一条出院时刻即后一条入住时刻，半开区间不算冲突
	first := newAdmission(bedID, base, 2)
	second := newAdmission(bedID, base.AddDate(0, 0, 2), 3)

	if d.HasConflicts([]*model.Admission{first, second}) {
		t.Error("首尾相接的入住不应判为冲突")
	}
}

func TestConflictDetector_DifferentBeds(t *testing.T) {
	d := NewConflictDetector()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// 同一时段住不同床位不冲突
	a := newAdmission(uuid.New(), base, 3)
	b := newAdmission(uuid.New(), base, 3)

	if d.HasConflicts([]*model.Admission{a, b}) {
		t.Error("不同床位的并行入住不应判为冲突")
	}
}

func TestConflictDetector_ChainOverlaps(t *testing.T) {
	d := NewConflictDetector()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	bedID := uuid.New()

	// 三条递进重叠，相邻成对报两处冲突
	admissions := []*model.Admission{
		newAdmission(bedID, base, 4),
		newAdmission(bedID, base.AddDate(0, 0, 1), 4),
		newAdmission(bedID, base.AddDate(0, 0, 2), 4),
	}

	conflicts := d.Detect(admissions)
	if len(conflicts) != 2 {
		t.Fatalf("冲突数 = %d, expected 2", len(conflicts))
	}
	if !conflicts[0].Overlap.Start.Before(conflicts[1].Overlap.Start) {
		t.Error("冲突应按重叠起点排序")
	}
}
