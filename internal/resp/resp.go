// Package resp 提供统一的 HTTP JSON 响应封装与业务码定义。
package resp

import (
	"encoding/json"
	"net/http"
)

// Code 业务码类型
type Code int

const (
	CodeOK            Code = 0
	CodeInvalidParam  Code = 10001 // 参数/校验错误
	CodeNotFound      Code = 10002 // 资源不存在
	CodeInternalError Code = 10003 // 服务内部错误
	CodeTimeout       Code = 10004 // 请求超时
	CodeUnauthorized  Code = 10005 // 未认证或无权限
)

// Body 统一响应结构。Error 仅在非生产环境携带细节。
type Body struct {
	Code      Code        `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// HTTPStatusFromCode 将业务码映射到默认 HTTP 状态码
func HTTPStatusFromCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OK 写出成功响应
func OK(w http.ResponseWriter, data interface{}, requestID, message string) {
	if message == "" {
		message = "ok"
	}
	write(w, http.StatusOK, &Body{
		Code:      CodeOK,
		Message:   message,
		Data:      data,
		RequestID: requestID,
	})
}

// Created 写出 201 成功响应
func Created(w http.ResponseWriter, data interface{}, requestID, message string) {
	if message == "" {
		message = "created"
	}
	write(w, http.StatusCreated, &Body{
		Code:      CodeOK,
		Message:   message,
		Data:      data,
		RequestID: requestID,
	})
}

// Error 写出错误响应；detail 为可选的错误细节（生产环境应传空）
func Error(w http.ResponseWriter, status int, code Code, message, requestID, detail string) {
	write(w, status, &Body{
		Code:      code,
		Message:   message,
		Error:     detail,
		RequestID: requestID,
	})
}

func write(w http.ResponseWriter, status int, body *Body) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// 编码失败无法再向客户端补救，忽略错误
	_ = json.NewEncoder(w).Encode(body)
}
