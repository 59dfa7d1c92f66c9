package model

import (
	"testing"
	"time"
)

func TestSeverity_Rank(t *testing.T) {
	tests := []struct {
		severity Severity
		expected int
	}{
		{SeverityCritical, 4},
		{SeverityHigh, 3},
		{SeverityMedium, 2},
		{SeverityLow, 1},
		{Severity("Unknown"), 0},
		{Severity(""), 0},
	}

	for _, tt := range tests {
		if result := tt.severity.Rank(); result != tt.expected {
			t.Errorf("Severity(%q).Rank() = %d, expected %d", tt.severity, result, tt.expected)
		}
	}
}

func TestTimeRange_Overlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	r1 := TimeRange{Start: base, End: base.Add(4 * time.Hour)}

	tests := []struct {
		name     string
		other    TimeRange
		expected bool
	}{
		{"完全重叠", TimeRange{Start: base, End: base.Add(4 * time.Hour)}, true},
		{"部分重叠", TimeRange{Start: base.Add(2 * time.Hour), End: base.Add(6 * time.Hour)}, true},
		{"首尾相接不算重叠", TimeRange{Start: base.Add(4 * time.Hour), End: base.Add(8 * time.Hour)}, false},
		{"完全分离", TimeRange{Start: base.Add(10 * time.Hour), End: base.Add(12 * time.Hour)}, false},
		{"包含关系", TimeRange{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := r1.Overlaps(tt.other); result != tt.expected {
				t.Errorf("Overlaps() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestPatient_View(t *testing.T) {
	p := &Patient{
		Token:     "A001",
		Name:      "测试患者",
		Severity:  SeverityHigh,
		Emergency: true,
		Attributes: JSONMap{
			"age":      68,
			"severity": "应被固定字段覆盖",
			"vitals":   map[string]interface{}{"spo2": 94},
		},
	}

	view := p.View()

	if view["severity"] != "High" {
		t.Errorf("固定字段应覆盖自定义属性, severity = %v", view["severity"])
	}
	if view["age"] != 68 {
		t.Errorf("自定义属性丢失, age = %v", view["age"])
	}
	if view["emergency"] != true {
		t.Errorf("emergency = %v, expected true", view["emergency"])
	}
	if _, ok := view["vitals"]; !ok {
		t.Error("嵌套属性丢失")
	}
}
