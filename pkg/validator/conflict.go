// Package validator 提供分配方案的一致性校验
package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// Conflict 床位占用冲突
type Conflict struct {
	BedID       uuid.UUID       `json:"bed_id"`
	FirstID     uuid.UUID       `json:"first_admission_id"`
	SecondID    uuid.UUID       `json:"second_admission_id"`
	Description string          `json:"description"`
	Overlap     model.TimeRange `json:"overlap"`
}

// ConflictDetector 入住冲突检测器
// 检查同一床位的入住区间是否重叠（同一张床同一时刻只能住一人）
type ConflictDetector struct{}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// Detect 检测入住记录集合中的床位占用冲突
// 半开区间：一条记录的出院时刻与下一条的入住时刻相同不算冲突
func (d *ConflictDetector) Detect(admissions []*model.Admission) []Conflict {
	byBed := make(map[uuid.UUID][]*model.Admission)
	for _, adm := range admissions {
		byBed[adm.BedID] = append(byBed[adm.BedID], adm)
	}

	var conflicts []Conflict
	for bedID, list := range byBed {
		if len(list) < 2 {
			continue
		}
		sorted := make([]*model.Admission, len(list))
		copy(sorted, list)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].AdmissionTime.Before(sorted[j].AdmissionTime)
		})

		for i := 1; i < len(sorted); i++ {
			prev, curr := sorted[i-1], sorted[i]
			if !prev.Interval().Overlaps(curr.Interval()) {
				continue
			}
			overlap := model.TimeRange{Start: curr.AdmissionTime, End: prev.DischargeTime}
			if curr.DischargeTime.Before(overlap.End) {
				overlap.End = curr.DischargeTime
			}
			conflicts = append(conflicts, Conflict{
				BedID:    bedID,
				FirstID:  prev.ID,
				SecondID: curr.ID,
				Description: fmt.Sprintf("床位 %s 存在重叠入住：%s 与 %s",
					bedID, prev.ID, curr.ID),
				Overlap: overlap,
			})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].BedID != conflicts[j].BedID {
			return conflicts[i].BedID.String() < conflicts[j].BedID.String()
		}
		return conflicts[i].Overlap.Start.Before(conflicts[j].Overlap.Start)
	})
	return conflicts
}

// HasConflicts 检查是否存在冲突
func (d *ConflictDetector) HasConflicts(admissions []*model.Admission) bool {
	return len(d.Detect(admissions)) > 0
}
