package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/middleware"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/service"
)

// ContactHandler 留言相关的HTTP处理器
type ContactHandler struct {
	contactService service.ContactService
	logger         *zap.Logger
}

// NewContactHandler 创建留言处理器实例
func NewContactHandler(contactService service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// CreateContact 提交留言（公开接口）
// POST /api/contact
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	contact, err := h.contactService.CreateContact(&req)
	if err != nil {
		var violations domain.Violations
		if errors.As(err, &violations) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, violations.Error(), reqID, "")
			return
		}
		h.logger.Error("create contact failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create contact failed", reqID, "")
		return
	}
	resp.Created(w, contact, reqID, "")
}

// ListContacts 获取留言列表
// GET /api/admin/contacts?page=1&limit=20&status=new&type=inquiry&priority=high
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.ContactListRequest{}
	query := r.URL.Query()
	req.Page = parsePositiveInt(query.Get("page"), 1)
	req.Limit = parsePositiveInt(query.Get("limit"), 20)
	if status := query.Get("status"); status != "" {
		s := domain.ContactStatus(status)
		req.Status = &s
	}
	if contactType := query.Get("type"); contactType != "" {
		t := domain.ContactType(contactType)
		req.Type = &t
	}
	if priority := query.Get("priority"); priority != "" {
		p := domain.ContactPriority(priority)
		req.Priority = &p
	}

	result, err := h.contactService.ListContacts(req)
	if err != nil {
		h.logger.Error("list contacts failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list contacts failed", reqID, "")
		return
	}
	resp.OK(w, result, reqID, "")
}

// GetContact 获取留言详情；首次查看自动置为已读
// GET /api/admin/contacts/{id}
func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid contact ID", reqID, "")
		return
	}

	contact, err := h.contactService.GetContact(id)
	if err != nil {
		h.writeContactError(w, r, err, "get contact failed")
		return
	}
	resp.OK(w, contact, reqID, "")
}

// MarkRead 显式置为已读（幂等，与详情查看的自动已读等价）
// PUT /api/admin/contacts/{id}/read
func (h *ContactHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid contact ID", reqID, "")
		return
	}

	contact, err := h.contactService.GetContact(id)
	if err != nil {
		h.writeContactError(w, r, err, "mark contact read failed")
		return
	}
	resp.OK(w, contact, reqID, "")
}

// ReplyContact 回复留言
// PUT /api/admin/contacts/{id}/reply
func (h *ContactHandler) ReplyContact(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid contact ID", reqID, "")
		return
	}

	var req domain.ReplyContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	// 回复人取当前登录管理员
	if user := middleware.UserFromContext(r.Context()); user != nil && req.RepliedBy == "" {
		req.RepliedBy = user.Username
	}

	contact, err := h.contactService.ReplyContact(id, &req)
	if err != nil {
		h.writeContactError(w, r, err, "reply contact failed")
		return
	}
	resp.OK(w, contact, reqID, "")
}

// CloseContact 关闭留言
// PUT /api/admin/contacts/{id}/close
func (h *ContactHandler) CloseContact(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid contact ID", reqID, "")
		return
	}

	contact, err := h.contactService.CloseContact(id)
	if err != nil {
		h.writeContactError(w, r, err, "close contact failed")
		return
	}
	resp.OK(w, contact, reqID, "")
}

// UnreadCount 未读留言数
// GET /api/admin/contacts/unread-count
func (h *ContactHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	count, err := h.contactService.UnreadCount()
	if err != nil {
		h.logger.Error("unread count failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "unread count failed", reqID, "")
		return
	}
	result := map[string]int64{"unread": count}
	resp.OK(w, &result, reqID, "")
}

// writeContactError 统一映射留言服务错误
func (h *ContactHandler) writeContactError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	reqID := middleware.RequestIDFromContext(r.Context())
	if errors.Is(err, service.ErrContactNotFound) {
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "contact not found", reqID, "")
		return
	}
	h.logger.Error(logMsg, zap.String("request_id", reqID), zap.Error(err))
	resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, logMsg, reqID, "")
}
