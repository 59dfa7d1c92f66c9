// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paichuang/paichuang/internal/service"
	"github.com/paichuang/paichuang/pkg/allocator"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// AllocationHandler 床位分配处理器
type AllocationHandler struct {
	svc *service.AllocationService
}

// NewAllocationHandler 创建分配处理器
func NewAllocationHandler(svc *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{svc: svc}
}

// RunRequest 排程请求
type RunRequest struct {
	OwnerID string `json:"owner_id"`
	Seed    int64  `json:"seed,omitempty"`   // 固定种子可复现结果
	Commit  bool   `json:"commit,omitempty"` // 是否落库
}

// PlanResponse 排程响应
type PlanResponse struct {
	Success             bool              `json:"success"`
	Admissions          []AdmissionOutput `json:"admissions"`
	TotalWaitingHours   int               `json:"total_waiting_hours"`
	AdmittedCount       int               `json:"admitted_count"`
	AverageWaitingHours float64           `json:"average_waiting_hours"`
	OptimizationRuns    int               `json:"optimization_runs,omitempty"`
	Committed           bool              `json:"committed"`
	Duration            string            `json:"duration"`
}

// AdmissionOutput 入住记录输出
type AdmissionOutput struct {
	PatientID     string `json:"patient_id"`
	BedID         string `json:"bed_id"`
	AdmissionTime string `json:"admission_time"`
	DischargeTime string `json:"discharge_time"`
	WaitingHours  int    `json:"waiting_hours"`
	StayDays      int    `json:"stay_days"`
	Status        string `json:"status"`
}

// RunBaseline 运行基线排程（只读预览）
func (h *AllocationHandler) RunBaseline(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	ownerID, appErr := parseUUID("owner_id", req.OwnerID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	plan, err := h.svc.RunBaseline(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, planResponse(plan, false))
}

// RunOptimized 运行优化排程
func (h *AllocationHandler) RunOptimized(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	ownerID, appErr := parseUUID("owner_id", req.OwnerID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	plan, err := h.svc.RunOptimized(r.Context(), ownerID, req.Seed, req.Commit)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, planResponse(plan, req.Commit))
}

// PredictRequest 等待预测请求
type PredictRequest struct {
	OwnerID   string `json:"owner_id"`
	PatientID string `json:"patient_id"`
	Seed      int64  `json:"seed,omitempty"`
}

// PredictWait 预测患者等待时长
func (h *AllocationHandler) PredictWait(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req PredictRequest
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

	prediction, err := h.svc.PredictWait(r.Context(), ownerID, patientID, req.Seed)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, prediction)
}

// WaitingStats 查询等待时长统计
func (h *AllocationHandler) WaitingStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ownerID, appErr := parseUUID("owner_id", r.URL.Query().Get("owner_id"))
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	report, err := h.svc.WaitingStats(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// planResponse 构建排程响应
func planResponse(plan *allocator.Plan, committed bool) PlanResponse {
	admissions := make([]AdmissionOutput, len(plan.Admissions))
	for i, a := range plan.Admissions {
		admissions[i] = admissionOutput(a)
	}

	return PlanResponse{
		Success:             true,
		Admissions:          admissions,
		TotalWaitingHours:   plan.TotalWaitingHours,
		AdmittedCount:       plan.AdmittedCount,
		AverageWaitingHours: plan.AverageWaitingHours,
		OptimizationRuns:    plan.OptimizationRuns,
		Committed:           committed,
		Duration:            plan.Duration.String(),
	}
}

// admissionOutput 构建入住记录输出
func admissionOutput(a *model.Admission) AdmissionOutput {
	return AdmissionOutput{
		PatientID:     a.PatientID.String(),
		BedID:         a.BedID.String(),
		AdmissionTime: a.AdmissionTime.Format("2006-01-02 15:04"),
		DischargeTime: a.DischargeTime.Format("2006-01-02 15:04"),
		WaitingHours:  a.WaitingHours,
		StayDays:      a.StayDays,
		Status:        a.Status,
	}
}
