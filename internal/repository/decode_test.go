package repository

import (
	"testing"

	"github.com/paichuang/paichuang/pkg/model"
)

func TestDecodePolicyRules(t *testing.T) {
	tests := []struct {
		name         string
		priorityJSON string
		categoryJSON string
		wantErr      bool
		wantPriority int
		wantCategory int
	}{
		{
			name:         "正常规则列",
			priorityJSON: `[{"name":"危重优先","conditions":[{"field":"severity","operator":"EQ","value":"critical"}],"score":100,"category":"ICU"}]`,
			categoryJSON: `[{"name":"普通资格","conditions":[],"category":"GENERAL"}]`,
			wantPriority: 1,
			wantCategory: 1,
		},
		{
			name:         "空列不报错",
			priorityJSON: "",
			categoryJSON: "",
		},
		{
			name:         "优先级规则列损坏",
			priorityJSON: `{"broken`,
			categoryJSON: `[]`,
			wantErr:      true,
		},
		{
			name:         "类别规则列损坏",
			priorityJSON: `[]`,
			categoryJSON: `not json`,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &model.Policy{}
			err := decodePolicyRules(p, []byte(tt.priorityJSON), []byte(tt.categoryJSON))
			if tt.wantErr {
				if err == nil {
					t.Fatal("期望解析失败，实际成功")
				}
				return
			}
			if err != nil {
				t.Fatalf("期望解析成功，实际失败: %v", err)
			}
			if len(p.PriorityRules) != tt.wantPriority {
				t.Errorf("优先级规则数 = %d, 期望 %d", len(p.PriorityRules), tt.wantPriority)
			}
			if len(p.CategoryRules) != tt.wantCategory {
				t.Errorf("类别规则数 = %d, 期望 %d", len(p.CategoryRules), tt.wantCategory)
			}
		})
	}
}

func TestDecodePatientAttributes(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantErr  bool
		wantAttr int
	}{
		{name: "正常属性", data: `{"age":82,"mobility":"assisted"}`, wantAttr: 2},
		{name: "空列不报错", data: ""},
		{name: "属性列损坏", data: `[broken`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &model.Patient{}
			err := decodePatientAttributes(p, []byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("期望解析失败，实际成功")
				}
				return
			}
			if err != nil {
				t.Fatalf("期望解析成功，实际失败: %v", err)
			}
			if len(p.Attributes) != tt.wantAttr {
				t.Errorf("属性数 = %d, 期望 %d", len(p.Attributes), tt.wantAttr)
			}
		})
	}
}
