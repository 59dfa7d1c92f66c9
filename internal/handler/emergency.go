// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paichuang/paichuang/internal/service"
	"github.com/paichuang/paichuang/pkg/allocator"
	"github.com/paichuang/paichuang/pkg/errors"
)

// EmergencyHandler 紧急分配处理器
type EmergencyHandler struct {
	svc *service.EmergencyService
}

// NewEmergencyHandler 创建紧急分配处理器
func NewEmergencyHandler(svc *service.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{svc: svc}
}

// EmergencyRequest 紧急分配请求
type EmergencyRequest struct {
	OwnerID           string      `json:"owner_id"`
	QueueEntryID      string      `json:"queue_entry_id"`
	NeedsVentilator   interface{} `json:"needs_ventilator,omitempty"`
	NeedsDialysis     interface{} `json:"needs_dialysis,omitempty"`
	PredictedStayDays int         `json:"predicted_stay_days"`
}

// EmergencyResponse 紧急分配响应
type EmergencyResponse struct {
	Success            bool            `json:"success"`
	BedFreed           bool            `json:"bed_freed"`
	Bed                *BedOutput      `json:"bed,omitempty"`
	TransferredPatient *TransferOutput `json:"transferred_patient,omitempty"`
	Message            string          `json:"message"`
}

// BedOutput 床位输出
type BedOutput struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	Ward          string `json:"ward,omitempty"`
	Category      string `json:"category"`
	HasVentilator bool   `json:"has_ventilator"`
	HasDialysis   bool   `json:"has_dialysis"`
}

// TransferOutput 转出患者输出
type TransferOutput struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	FromBedID string `json:"from_bed_id"`
}

// Allocate 紧急ICU分配
func (h *EmergencyHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	ownerID, appErr := parseUUID("owner_id", req.OwnerID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	queueEntryID, appErr := parseUUID("queue_entry_id", req.QueueEntryID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}
	if req.PredictedStayDays <= 0 {
		respondError(w, errors.InvalidInput("predicted_stay_days", "必须大于0"))
		return
	}

	requirements := allocator.Requirements{
		NeedsVentilator: coerceBool(req.NeedsVentilator),
		NeedsDialysis:   coerceBool(req.NeedsDialysis),
	}

	result, err := h.svc.Allocate(r.Context(), queueEntryID, ownerID, requirements, req.PredictedStayDays)
	if err != nil {
		respondAppError(w, err)
		return
	}

	resp := EmergencyResponse{
		Success:  result.Success,
		BedFreed: result.BedFreed,
		Message:  result.Message,
	}
	if result.Bed != nil {
		resp.Bed = &BedOutput{
			ID:            result.Bed.ID.String(),
			Number:        result.Bed.Number,
			Ward:          result.Bed.Ward,
			Category:      result.Bed.Category,
			HasVentilator: result.Bed.HasVentilator,
			HasDialysis:   result.Bed.HasDialysis,
		}
	}
	if result.TransferredPatient != nil {
		resp.TransferredPatient = &TransferOutput{
			PatientID: result.TransferredPatient.PatientID.String(),
			Name:      result.TransferredPatient.Name,
			Token:     result.TransferredPatient.Token,
			FromBedID: result.TransferredPatient.BedID.String(),
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
