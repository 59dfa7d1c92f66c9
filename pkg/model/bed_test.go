package model

import (
	"testing"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		name            string
		needsVentilator bool
		needsDialysis   bool
		hasVentilator   bool
		hasDialysis     bool
		expected        bool
	}{
		{"无需求任意床位", false, false, false, false, true},
		{"无需求高配床位", false, false, true, true, true},
		{"需呼吸机床位有", true, false, true, false, true},
		{"需呼吸机床位无", true, false, false, true, false},
		{"需透析床位有", false, true, false, true, true},
		{"需透析床位无", false, true, true, false, false},
		{"双需求全满足", true, true, true, true, true},
		{"双需求缺一项", true, true, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{NeedsVentilator: tt.needsVentilator, NeedsDialysis: tt.needsDialysis}
			b := &Bed{HasVentilator: tt.hasVentilator, HasDialysis: tt.hasDialysis}
			if result := Compatible(p, b); result != tt.expected {
				t.Errorf("Compatible() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestCompatibilityScore(t *testing.T) {
	tests := []struct {
		name            string
		needsVentilator bool
		needsDialysis   bool
		hasVentilator   bool
		hasDialysis     bool
		expected        int
	}{
		{"完全匹配无设备", false, false, false, false, 2},
		{"完全匹配有设备", true, true, true, true, 2},
		{"设备冗余", false, false, true, true, 0},
		{"一项匹配", true, false, true, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{NeedsVentilator: tt.needsVentilator, NeedsDialysis: tt.needsDialysis}
			b := &Bed{HasVentilator: tt.hasVentilator, HasDialysis: tt.hasDialysis}
			if result := CompatibilityScore(p, b); result != tt.expected {
				t.Errorf("CompatibilityScore() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestBed_IsFree(t *testing.T) {
	free := &Bed{Status: BedStatusFree}
	occupied := &Bed{Status: BedStatusOccupied}

	if !free.IsFree() {
		t.Error("空闲床位应该返回true")
	}
	if occupied.IsFree() {
		t.Error("占用床位应该返回false")
	}
}
