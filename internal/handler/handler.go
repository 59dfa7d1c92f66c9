// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	stderrors "errors"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/errors"
)

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}

// respondAppError 从任意错误提取应用错误并返回
func respondAppError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		respondError(w, appErr)
		return
	}
	var ve *errors.ValidationErrors
	if stderrors.As(err, &ve) {
		respondError(w, ve.ToAppError())
		return
	}
	respondError(w, errors.Wrap(err, errors.CodeInternal, "内部错误"))
}

// parseUUID 解析UUID字段
func parseUUID(field, value string) (uuid.UUID, *errors.AppError) {
	if value == "" {
		return uuid.Nil, errors.InvalidInput(field, "不能为空")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, errors.InvalidInput(field, "无效的UUID格式")
	}
	return id, nil
}

// requireMethod 校验请求方法
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
