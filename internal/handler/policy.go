// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paichuang/paichuang/internal/service"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// PolicyHandler 分配策略处理器
type PolicyHandler struct {
	svc *service.PolicyService
}

// NewPolicyHandler 创建策略处理器
func NewPolicyHandler(svc *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{svc: svc}
}

// CreatePolicyRequest 创建策略请求
type CreatePolicyRequest struct {
	OwnerID         string               `json:"owner_id"`
	Name            string               `json:"name"`
	PriorityRules   []model.PriorityRule `json:"priority_rules"`
	CategoryRules   []model.CategoryRule `json:"category_rules,omitempty"`
	DefaultCategory string               `json:"default_category,omitempty"`
	Template        string               `json:"template,omitempty"` // 指定时忽略内联规则
}

// Create 创建并激活策略
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	ownerID, appErr := parseUUID("owner_id", req.OwnerID)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	if req.Template != "" {
		policy, err := h.svc.CreateFromTemplate(r.Context(), ownerID, req.Template)
		if err != nil {
			respondAppError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, policy)
		return
	}

	policy := &model.Policy{
		OwnerID:         ownerID,
		Name:            req.Name,
		PriorityRules:   req.PriorityRules,
		CategoryRules:   req.CategoryRules,
		DefaultCategory: req.DefaultCategory,
	}
	if err := h.svc.Create(r.Context(), policy); err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, policy)
}

// GetActive 获取激活策略
func (h *PolicyHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ownerID, appErr := parseUUID("owner_id", r.URL.Query().Get("owner_id"))
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	policy, err := h.svc.GetActive(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, policy)
}

// History 获取策略版本历史
func (h *PolicyHandler) History(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ownerID, appErr := parseUUID("owner_id", r.URL.Query().Get("owner_id"))
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	policies, err := h.svc.History(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"total":    len(policies),
	})
}

// TemplateOutput 模板目录输出
type TemplateOutput struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Templates 返回内置策略模板目录
func (h *PolicyHandler) Templates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	catalog := h.svc.Templates()
	templates := make([]TemplateOutput, len(catalog))
	for i, t := range catalog {
		templates[i] = TemplateOutput{Key: t.Key, Name: t.Name, Description: t.Description}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
	})
}
