package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/repo"
)

// ErrContactNotFound 留言不存在
var ErrContactNotFound = errors.New("contact not found")

// ContactService 定义客户留言业务逻辑接口
type ContactService interface {
	CreateContact(req *domain.CreateContactRequest) (*domain.Contact, error)
	GetContact(id int64) (*domain.Contact, error)
	ListContacts(req *domain.ContactListRequest) (*domain.ContactListResponse, error)
	ReplyContact(id int64, req *domain.ReplyContactRequest) (*domain.Contact, error)
	CloseContact(id int64) (*domain.Contact, error)
	UnreadCount() (int64, error)
}

type contactService struct {
	contactRepo repo.ContactRepository
	publisher   NotificationPublisher
	logger      *zap.Logger
}

// NewContactService 创建留言服务实例
func NewContactService(contactRepo repo.ContactRepository, publisher NotificationPublisher, logger *zap.Logger) ContactService {
	return &contactService{
		contactRepo: contactRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreateContact 创建留言。type/priority 缺省分别为 other/medium。
func (s *contactService) CreateContact(req *domain.CreateContactRequest) (*domain.Contact, error) {
	if v := req.Validate(); !v.OK() {
		return nil, v
	}

	contact := &domain.Contact{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
		Type:     req.Type,
		Status:   domain.ContactStatusNew,
		Priority: req.Priority,
	}
	if contact.Type == "" {
		contact.Type = domain.ContactTypeInquiry
	}
	if contact.Priority == "" {
		contact.Priority = domain.PriorityMedium
	}

	if err := s.contactRepo.Create(contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	s.logger.Info("contact created",
		zap.Int64("contact_id", contact.ID),
		zap.String("type", string(contact.Type)),
	)

	if err := s.publisher.PublishContactCreated(contact); err != nil {
		s.logger.Error("failed to publish contact notification",
			zap.Int64("contact_id", contact.ID),
			zap.Error(err),
		)
	}

	return contact, nil
}

// GetContact 获取留言并推进到已读
func (s *contactService) GetContact(id int64) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	if contact.Status == domain.ContactStatusNew {
		contact.MarkAsRead()
		if err := s.contactRepo.Update(contact); err != nil {
			return nil, fmt.Errorf("mark contact as read: %w", err)
		}
	}
	return contact, nil
}

// ListContacts 分页获取留言列表
func (s *contactService) ListContacts(req *domain.ContactListRequest) (*domain.ContactListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	contacts, total, err := s.contactRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &domain.ContactListResponse{
		Contacts:    contacts,
		TotalPages:  totalPages,
		CurrentPage: req.Page,
		Total:       total,
	}, nil
}

// ReplyContact 登记回复
func (s *contactService) ReplyContact(id int64, req *domain.ReplyContactRequest) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	contact.Reply(req.RepliedBy, time.Now())
	if req.AdminNotes != "" {
		contact.AdminNotes = req.AdminNotes
	}

	if err := s.contactRepo.Update(contact); err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return contact, nil
}

// CloseContact 关闭留言
func (s *contactService) CloseContact(id int64) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	contact.Close()
	if err := s.contactRepo.Update(contact); err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return contact, nil
}

// UnreadCount 返回 new 状态留言数量
func (s *contactService) UnreadCount() (int64, error) {
	count, err := s.contactRepo.UnreadCount()
	if err != nil {
		return 0, fmt.Errorf("count unread contacts: %w", err)
	}
	return count, nil
}
