// Package stats 提供等待时长统计分析
package stats

import (
	"math"
	"sort"

	"github.com/paichuang/paichuang/pkg/model"
)

// Summary 样本汇总统计
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize 计算样本的均值、标准差与极值
// 空样本返回零值；标准差为总体标准差
func Summarize(samples []float64) Summary {
	s := Summary{Count: len(samples)}
	if s.Count == 0 {
		return s
	}

	s.Min = samples[0]
	s.Max = samples[0]
	sum := 0.0
	for _, v := range samples {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = sum / float64(s.Count)

	variance := 0.0
	for _, v := range samples {
		d := v - s.Mean
		variance += d * d
	}
	variance /= float64(s.Count)
	s.StdDev = math.Sqrt(variance)

	return s
}

// SeverityBucket 按严重程度分组的等待统计
type SeverityBucket struct {
	Severity string  `json:"severity"`
	Summary  Summary `json:"summary"`
}

// WaitingAnalyzer 等待时长分析器
type WaitingAnalyzer struct{}

// NewWaitingAnalyzer 创建等待时长分析器
func NewWaitingAnalyzer() *WaitingAnalyzer {
	return &WaitingAnalyzer{}
}

// Report 等待时长分析报告
type Report struct {
	Overall    Summary          `json:"overall"`
	BySeverity []SeverityBucket `json:"by_severity"`
}

// Analyze 生成按严重程度分组的等待时长报告
// 患者映射用于定位每条入住记录的严重程度，缺失的记录只计入总体
func (a *WaitingAnalyzer) Analyze(admissions []*model.Admission, patients map[string]*model.Patient) *Report {
	overall := make([]float64, 0, len(admissions))
	groups := make(map[string][]float64)

	for _, adm := range admissions {
		waiting := float64(adm.WaitingHours)
		overall = append(overall, waiting)
		if p, ok := patients[adm.PatientID.String()]; ok {
			key := string(p.Severity)
			groups[key] = append(groups[key], waiting)
		}
	}

	report := &Report{
		Overall:    Summarize(overall),
		BySeverity: make([]SeverityBucket, 0, len(groups)),
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		report.BySeverity = append(report.BySeverity, SeverityBucket{
			Severity: k,
			Summary:  Summarize(groups[k]),
		})
	}

	return report
}
