package stats

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    Summary
	}{
		{
			name:    "空样本返回零值",
			samples: nil,
			want:    Summary{},
		},
		{
			name:    "单样本",
			samples: []float64{5},
			want:    Summary{Count: 1, Mean: 5, StdDev: 0, Min: 5, Max: 5},
		},
		{
			name:    "常数样本标准差为零",
			samples: []float64{3, 3, 3, 3},
			want:    Summary{Count: 4, Mean: 3, StdDev: 0, Min: 3, Max: 3},
		},
		{
			name:    "典型样本",
			samples: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:    Summary{Count: 8, Mean: 5, StdDev: 2, Min: 2, Max: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.samples)
			if got.Count != tt.want.Count || got.Min != tt.want.Min || got.Max != tt.want.Max {
				t.Errorf("Summarize() = %+v, expected %+v", got, tt.want)
			}
			if math.Abs(got.Mean-tt.want.Mean) > 1e-9 {
				t.Errorf("Mean = %v, expected %v", got.Mean, tt.want.Mean)
			}
			if math.Abs(got.StdDev-tt.want.StdDev) > 1e-9 {
				t.Errorf("StdDev = %v, expected %v", got.StdDev, tt.want.StdDev)
			}
		})
	}
}

func TestWaitingAnalyzer_Analyze(t *testing.T) {
	a := NewWaitingAnalyzer()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	critical := &model.Patient{BaseModel: model.NewBaseModel(), Severity: model.SeverityCritical}
	low := &model.Patient{BaseModel: model.NewBaseModel(), Severity: model.SeverityLow}
	unknown := uuid.New() // 不在患者映射中

	admissions := []*model.Admission{
		{BaseModel: model.NewBaseModel(), PatientID: critical.ID, WaitingHours: 0, AdmissionTime: base},
		{BaseModel: model.NewBaseModel(), PatientID: low.ID, WaitingHours: 24, AdmissionTime: base},
		{BaseModel: model.NewBaseModel(), PatientID: low.ID, WaitingHours: 12, AdmissionTime: base},
		{BaseModel: model.NewBaseModel(), PatientID: unknown, WaitingHours: 6, AdmissionTime: base},
	}
	patients := map[string]*model.Patient{
		critical.ID.String(): critical,
		low.ID.String():      low,
	}

	report := a.Analyze(admissions, patients)

	if report.Overall.Count != 4 {
		t.Errorf("Overall.Count = %d, expected 4", report.Overall.Count)
	}
	if report.Overall.Max != 24 {
		t.Errorf("Overall.Max = %v, expected 24", report.Overall.Max)
	}

	// 分组按严重程度字典序排列：Critical < Low
	if len(report.BySeverity) != 2 {
		t.Fatalf("分组数 = %d, expected 2", len(report.BySeverity))
	}
	if report.BySeverity[0].Severity != "Critical" || report.BySeverity[1].Severity != "Low" {
		t.Errorf("分组顺序异常: %v, %v", report.BySeverity[0].Severity, report.BySeverity[1].Severity)
	}
	if report.BySeverity[0].Summary.Count != 1 {
		t.Errorf("Critical组样本数 = %d, expected 1", report.BySeverity[0].Summary.Count)
	}
	if report.BySeverity[1].Summary.Mean != 18 {
		t.Errorf("Low组均值 = %v, expected 18", report.BySeverity[1].Summary.Mean)
	}
}

func TestWaitingAnalyzer_Empty(t *testing.T) {
	a := NewWaitingAnalyzer()
	report := a.Analyze(nil, nil)
	if report.Overall.Count != 0 {
		t.Errorf("Overall.Count = %d, expected 0", report.Overall.Count)
	}
	if len(report.BySeverity) != 0 {
		t.Errorf("分组数 = %d, expected 0", len(report.BySeverity))
	}
}
