// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/internal/service"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
	"github.com/paichuang/paichuang/pkg/rules"
)

// RulesHandler 规则求值处理器
type RulesHandler struct {
	svc       *service.AllocationService
	evaluator *rules.Evaluator
}

// NewRulesHandler 创建规则处理器
func NewRulesHandler(svc *service.AllocationService) *RulesHandler {
	return &RulesHandler{
		svc:       svc,
		evaluator: rules.NewEvaluator(),
	}
}

// PriorityRequest 优先级计算请求
type PriorityRequest struct {
	OwnerID   string `json:"owner_id"`
	PatientID string `json:"patient_id"`
}

// CalculatePriority 按激活策略计算患者优先级
func (h *RulesHandler) CalculatePriority(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req PriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	ownerID, appErr := parseUUID("owner_id", req.OwnerID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	patientID, appErr := parseUUID("patient_id", req.PatientID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result, err := h.svc.CalculatePriority(r.Context(), ownerID, patientID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// AssignBed 按激活策略给出确定性床位建议
func (h *RulesHandler) AssignBed(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req PriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	ownerID, appErr := parseUUID("owner_id", req.OwnerID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	patientID, appErr := parseUUID("patient_id", req.PatientID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result, err := h.svc.AssignBed(r.Context(), ownerID, patientID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// EvaluateRequest 无状态规则求值请求：患者与策略随请求传入，不查库
type EvaluateRequest struct {
	Patient PatientInput  `json:"patient"`
	Policy  *model.Policy `json:"policy"`
	Beds    []BedInput    `json:"beds,omitempty"`
}

// PatientInput 患者输入
type PatientInput struct {
	Token             string        `json:"token"`
	Name              string        `json:"name,omitempty"`
	ArrivalTime       string        `json:"arrival_time,omitempty"` // RFC3339
	Severity          string        `json:"severity"`
	Emergency         bool          `json:"emergency"`
	NeedsVentilator   interface{}   `json:"needs_ventilator,omitempty"`
	NeedsDialysis     interface{}   `json:"needs_dialysis,omitempty"`
	PredictedStayDays int           `json:"predicted_stay_days,omitempty"`
	Diagnosis         string        `json:"diagnosis,omitempty"`
	Attributes        model.JSONMap `json:"attributes,omitempty"`
}

// BedInput 床位输入
type BedInput struct {
	ID            string `json:"id"`
	Number        string `json:"number,omitempty"`
	Category      string `json:"category"`
	HasVentilator bool   `json:"has_ventilator,omitempty"`
	HasDialysis   bool   `json:"has_dialysis,omitempty"`
}

// EvaluateResponse 无状态求值响应
type EvaluateResponse struct {
	Score  *rules.ScoreResult  `json:"score"`
	Assign *rules.AssignResult `json:"assign,omitempty"`
}

// Evaluate 无状态求值：用于策略上线前的试算
func (h *RulesHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Policy == nil {
		respondError(w, errors.InvalidInput("policy", "不能为空"))
		return
	}

	patient, appErr := buildPatient(req.Patient)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	score, err := h.evaluator.Score(patient, req.Policy)
	if err != nil {
		respondAppError(w, err)
		return
	}

	resp := EvaluateResponse{Score: score}

	if len(req.Beds) > 0 {
		beds := make([]*model.Bed, 0, len(req.Beds))
		for _, b := range req.Beds {
			id, appErr := parseUUID("beds[].id", b.ID)
			if appErr != nil {
				respondError(w, appErr)
				return
			}
			beds = append(beds, &model.Bed{
				BaseModel:     model.BaseModel{ID: id},
				Number:        b.Number,
				Category:      b.Category,
				HasVentilator: b.HasVentilator,
				HasDialysis:   b.HasDialysis,
				Status:        model.BedStatusFree,
			})
		}

		assign, err := h.evaluator.AssignDeterministic(patient, beds, req.Policy)
		if err != nil {
			respondAppError(w, err)
			return
		}
		resp.Assign = assign
	}

	respondJSON(w, http.StatusOK, resp)
}

// buildPatient 从请求输入构建患者
func buildPatient(in PatientInput) (*model.Patient, *errors.AppError) {
	p := &model.Patient{
		BaseModel:         model.BaseModel{ID: uuid.New()},
		Token:             in.Token,
		Name:              in.Name,
		Severity:          model.Severity(in.Severity),
		Emergency:         in.Emergency,
		NeedsVentilator:   coerceBool(in.NeedsVentilator),
		NeedsDialysis:     coerceBool(in.NeedsDialysis),
		PredictedStayDays: in.PredictedStayDays,
		Diagnosis:         in.Diagnosis,
		Attributes:        in.Attributes,
	}

	if in.ArrivalTime != "" {
		t, err := time.Parse(time.RFC3339, in.ArrivalTime)
		if err != nil {
			return nil, errors.InvalidInput("arrival_time", "时间格式无效，应为RFC3339")
		}
		p.ArrivalTime = t
	}

	return p, nil
}

// coerceBool 把外部系统传来的各种形态折算成布尔
// 接口对接方有用 "true"/"1"/1 表示真值的情况
func coerceBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1" || b == "yes"
	case float64:
		return b != 0
	default:
		return false
	}
}
