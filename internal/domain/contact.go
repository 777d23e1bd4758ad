// Package domain 定义客户咨询（联系我们）领域模型。
package domain

import (
	"strings"
	"time"
)

// ContactType 定义咨询类型
type ContactType string

const (
	ContactTypeInquiry    ContactType = "inquiry"
	ContactTypeComplaint  ContactType = "complaint"
	ContactTypeSuggestion ContactType = "suggestion"
	ContactTypeSupport    ContactType = "support"
	ContactTypeOther      ContactType = "other"
)

// IsValid 判断咨询类型是否属于枚举集合
func (t ContactType) IsValid() bool {
	switch t {
	case ContactTypeInquiry, ContactTypeComplaint, ContactTypeSuggestion,
		ContactTypeSupport, ContactTypeOther:
		return true
	}
	return false
}

// ContactStatus 定义咨询处理状态
type ContactStatus string

const (
	ContactStatusNew     ContactStatus = "new"
	ContactStatusRead    ContactStatus = "read"
	ContactStatusReplied ContactStatus = "replied"
	ContactStatusClosed  ContactStatus = "closed"
)

// IsValid 判断处理状态是否属于枚举集合
func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactStatusNew, ContactStatusRead, ContactStatusReplied, ContactStatusClosed:
		return true
	}
	return false
}

// ContactPriority 定义咨询优先级
type ContactPriority string

const (
	PriorityLow    ContactPriority = "low"
	PriorityMedium ContactPriority = "medium"
	PriorityHigh   ContactPriority = "high"
	PriorityUrgent ContactPriority = "urgent"
)

// IsValid 判断优先级是否属于枚举集合
func (p ContactPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Contact 表示一条客户咨询记录
type Contact struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email,omitempty"`
	Subject    string          `json:"subject,omitempty"`
	Message    string          `json:"message"`
	Type       ContactType     `json:"type"`
	Status     ContactStatus   `json:"status"`
	Priority   ContactPriority `json:"priority"`
	AdminNotes string          `json:"admin_notes,omitempty"`
	RepliedAt  *time.Time      `json:"replied_at,omitempty"`
	RepliedBy  string          `json:"replied_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MarkAsRead 管理员首次查看时推进到 read
func (c *Contact) MarkAsRead() {
	c.Status = ContactStatusRead
}

// Reply 管理员回复：推进到 replied 并记录回复时间与回复人。
// 对已关闭的咨询回复不做拦截，与原始系统保持一致。
func (c *Contact) Reply(repliedBy string, now time.Time) {
	c.Status = ContactStatusReplied
	c.RepliedAt = &now
	c.RepliedBy = repliedBy
}

// Close 关闭咨询；终态，可从任意状态到达
func (c *Contact) Close() {
	c.Status = ContactStatusClosed
}

// CreateContactRequest 表示咨询提交请求
type CreateContactRequest struct {
	Name     string          `json:"name"`
	Phone    string          `json:"phone"`
	Email    string          `json:"email"`
	Subject  string          `json:"subject"`
	Message  string          `json:"message"`
	Type     ContactType     `json:"type"`
	Priority ContactPriority `json:"priority"`
}

// Validate 返回全部字段级违规
func (r *CreateContactRequest) Validate() Violations {
	var v Violations
	if strings.TrimSpace(r.Name) == "" {
		v.Add("name", "name is required")
	} else if len(r.Name) > 100 {
		v.Add("name", "name must be at most 100 characters")
	}
	if strings.TrimSpace(r.Phone) == "" {
		v.Add("phone", "phone is required")
	} else if !ValidPhone(r.Phone) {
		v.Add("phone", "phone must match +998XXXXXXXXX")
	}
	if !ValidEmail(r.Email) {
		v.Add("email", "invalid email format")
	}
	if len(r.Subject) > 200 {
		v.Add("subject", "subject must be at most 200 characters")
	}
	if strings.TrimSpace(r.Message) == "" {
		v.Add("message", "message is required")
	} else if len(r.Message) > 2000 {
		v.Add("message", "message must be at most 2000 characters")
	}
	if r.Type != "" && !r.Type.IsValid() {
		v.Add("type", "invalid contact type")
	}
	if r.Priority != "" && !r.Priority.IsValid() {
		v.Add("priority", "invalid priority")
	}
	return v
}

// ReplyContactRequest 表示管理员回复请求
type ReplyContactRequest struct {
	RepliedBy  string `json:"replied_by"`
	AdminNotes string `json:"admin_notes"`
}

// ContactListRequest 表示咨询列表查询请求
type ContactListRequest struct {
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Status   *ContactStatus   `json:"status"`
	Type     *ContactType     `json:"type"`
	Priority *ContactPriority `json:"priority"`
}

// ContactListResponse 表示咨询列表查询响应
type ContactListResponse struct {
	Contacts    []*Contact `json:"contacts"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Total       int64      `json:"total"`
}
