package dto

import (
	"time"

	"github.com/turtacn/mfagate/pkg/errors"
)

// APIResponse 通用 API 响应结构
type APIResponse struct {
	Success   bool                  `json:"success"`
	Data      interface{}           `json:"data,omitempty"`
	Error     *errors.ErrorResponse `json:"error,omitempty"`
	TraceID   string                `json:"trace_id,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// SuccessResponse 创建成功响应
func SuccessResponse(data interface{}, traceID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse 创建错误响应，并返回对应的 HTTP 状态码
func ErrorResponse(err error, traceID string) (*APIResponse, int) {
	body, status := errors.ToErrorResponse(err)
	return &APIResponse{
		Success:   false,
		Error:     body,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}, status
}
