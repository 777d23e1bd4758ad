package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/paketuzb/paket_shop/internal/database"
	"github.com/paketuzb/paket_shop/internal/domain"
)

// ContactRepository 定义客户留言数据访问接口
type ContactRepository interface {
	Create(contact *domain.Contact) error
	GetByID(id int64) (*domain.Contact, error)
	Update(contact *domain.Contact) error
	List(req *domain.ContactListRequest) ([]*domain.Contact, int64, error)
	UnreadCount() (int64, error)
}

type contactRepo struct {
	db *database.DB
}

// NewContactRepository 创建留言仓储实例
func NewContactRepository(db *database.DB) ContactRepository {
	return &contactRepo{db: db}
}

const contactColumns = `
	id, name, phone, email, subject, message, type, status, priority,
	admin_notes, replied_at, replied_by, created_at, updated_at
`

// Create 创建留言记录
func (r *contactRepo) Create(contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (name, phone, email, subject, message, type, status, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		contact.Name, contact.Phone, contact.Email, contact.Subject, contact.Message,
		string(contact.Type), string(contact.Status), string(contact.Priority),
	)
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	contact.ID = id
	return nil
}

// GetByID 根据ID获取留言
func (r *contactRepo) GetByID(id int64) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`
	row := r.db.QueryRow(query, id)
	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

// Update 更新留言的处理状态字段
func (r *contactRepo) Update(contact *domain.Contact) error {
	query := `
		UPDATE contacts SET
			status = ?, priority = ?, admin_notes = ?, replied_at = ?, replied_by = ?
		WHERE id = ?
	`

	if _, err := r.db.Exec(query,
		string(contact.Status), string(contact.Priority),
		contact.AdminNotes, contact.RepliedAt, contact.RepliedBy,
		contact.ID,
	); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

// List 分页查询留言，按创建时间倒序
func (r *contactRepo) List(req *domain.ContactListRequest) ([]*domain.Contact, int64, error) {
	conditions := []string{"1 = 1"}
	args := []interface{}{}

	if req.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*req.Status))
	}
	if req.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*req.Type))
	}
	if req.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(*req.Priority))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM contacts " + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	query := `SELECT ` + contactColumns + ` FROM contacts ` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, req.Limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

// UnreadCount 返回 new 状态的留言数量
func (r *contactRepo) UnreadCount() (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM contacts WHERE status = 'new'`
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread contacts: %w", err)
	}
	return count, nil
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	c := &domain.Contact{}
	var (
		ctype, status, priority       string
		email, subject                sql.NullString
		adminNotes, repliedBy         sql.NullString
		repliedAt                     sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &email, &subject, &c.Message,
		&ctype, &status, &priority,
		&adminNotes, &repliedAt, &repliedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Email = email.String
	c.Subject = subject.String
	c.Type = domain.ContactType(ctype)
	c.Status = domain.ContactStatus(status)
	c.Priority = domain.ContactPriority(priority)
	c.AdminNotes = adminNotes.String
	c.RepliedBy = repliedBy.String
	c.RepliedAt = nullTimePtr(repliedAt)
	return c, nil
}
