package service

import (
	"fmt"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/repo"
)

// 测试用商品仓储模拟实现
type mockProductRepository struct {
	products map[int64]*domain.Product
	slugMap  map[string]*domain.Product
	nextID   int64
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[int64]*domain.Product),
		slugMap:  make(map[string]*domain.Product),
		nextID:   1,
	}
}

func (m *mockProductRepository) Create(product *domain.Product) error {
	if _, exists := m.slugMap[product.Slug]; exists {
		return fmt.Errorf("create product: %w", repo.ErrDuplicateKey)
	}

	product.ID = m.nextID
	m.nextID++

	m.products[product.ID] = product
	m.slugMap[product.Slug] = product
	return nil
}

func (m *mockProductRepository) GetByID(id int64) (*domain.Product, error) {
	product, exists := m.products[id]
	if !exists {
		return nil, nil
	}
	return product, nil
}

func (m *mockProductRepository) GetBySlug(slug string) (*domain.Product, error) {
	product, exists := m.slugMap[slug]
	if !exists {
		return nil, nil
	}
	return product, nil
}

func (m *mockProductRepository) GetBySKU(sku string) (*domain.Product, error) {
	for _, product := range m.products {
		if product.SKU == sku {
			return product, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepository) Update(product *domain.Product) error {
	if _, exists := m.products[product.ID]; !exists {
		return fmt.Errorf("product %d not found", product.ID)
	}
	m.products[product.ID] = product
	m.slugMap[product.Slug] = product
	return nil
}

func (m *mockProductRepository) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	var result []*domain.Product
	for _, product := range m.products {
		if product.Status != domain.ProductStatusActive {
			continue
		}
		result = append(result, product)
	}
	return result, int64(len(result)), nil
}

func (m *mockProductRepository) Categories() ([]string, error) {
	seen := make(map[string]bool)
	var categories []string
	for _, product := range m.products {
		c := string(product.Category)
		if !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}
	return categories, nil
}

func (m *mockProductRepository) ListLowStock() ([]*domain.Product, error) {
	var result []*domain.Product
	for _, product := range m.products {
		if product.Status == domain.ProductStatusActive && product.IsLowStock() {
			result = append(result, product)
		}
	}
	return result, nil
}

func (m *mockProductRepository) AdjustStock(id int64, qty int, op domain.StockOperation) error {
	product, exists := m.products[id]
	if !exists {
		return nil
	}
	return product.UpdateStock(qty, op)
}

func (m *mockProductRepository) RecordSale(id int64, qty int) error {
	product, exists := m.products[id]
	if !exists {
		return nil
	}
	return product.RecordSale(qty)
}

func (m *mockProductRepository) AddRating(id int64, rating float64) error {
	product, exists := m.products[id]
	if !exists {
		return nil
	}
	product.UpdateRating(rating)
	return nil
}

func (m *mockProductRepository) Count() (int64, error) {
	return int64(len(m.products)), nil
}

// 测试用订单仓储模拟实现
type mockOrderRepository struct {
	orders    map[int64]*domain.Order
	numberMap map[string]*domain.Order
	nextID    int64

	// 前 N 次 Create 返回订单号冲突，用于重试路径测试
	duplicateCreates int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders:    make(map[int64]*domain.Order),
		numberMap: make(map[string]*domain.Order),
		nextID:    1,
	}
}

func (m *mockOrderRepository) Create(order *domain.Order) error {
	if m.duplicateCreates > 0 {
		m.duplicateCreates--
		return fmt.Errorf("create order: %w", repo.ErrDuplicateKey)
	}
	if _, exists := m.numberMap[order.OrderNumber]; exists {
		return fmt.Errorf("create order: %w", repo.ErrDuplicateKey)
	}

	order.ID = m.nextID
	m.nextID++

	m.orders[order.ID] = order
	m.numberMap[order.OrderNumber] = order
	return nil
}

func (m *mockOrderRepository) GetByID(id int64) (*domain.Order, error) {
	order, exists := m.orders[id]
	if !exists {
		return nil, nil
	}
	return order, nil
}

func (m *mockOrderRepository) GetByOrderNumber(orderNumber string) (*domain.Order, error) {
	order, exists := m.numberMap[orderNumber]
	if !exists {
		return nil, nil
	}
	return order, nil
}

func (m *mockOrderRepository) Update(order *domain.Order) error {
	if _, exists := m.orders[order.ID]; !exists {
		return fmt.Errorf("order %d not found", order.ID)
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	var result []*domain.Order
	for _, order := range m.orders {
		if req.Status != nil && order.Status != *req.Status {
			continue
		}
		if req.Phone != nil && order.Customer.Phone != *req.Phone {
			continue
		}
		result = append(result, order)
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepository) MarkTelegramSent(id int64) error {
	if order, exists := m.orders[id]; exists {
		order.Notifications.TelegramSent = true
	}
	return nil
}

func (m *mockOrderRepository) MarkSheetUpdated(id int64) error {
	if order, exists := m.orders[id]; exists {
		order.Notifications.SheetUpdated = true
	}
	return nil
}

func (m *mockOrderRepository) UpdatePayment(id int64, payment *domain.Payment) error {
	order, exists := m.orders[id]
	if !exists {
		return fmt.Errorf("order %d not found", id)
	}
	order.Payment = *payment
	return nil
}

// 测试用留言仓储模拟实现
type mockContactRepository struct {
	contacts map[int64]*domain.Contact
	nextID   int64
}

func newMockContactRepository() *mockContactRepository {
	return &mockContactRepository{
		contacts: make(map[int64]*domain.Contact),
		nextID:   1,
	}
}

func (m *mockContactRepository) Create(contact *domain.Contact) error {
	contact.ID = m.nextID
	m.nextID++
	m.contacts[contact.ID] = contact
	return nil
}

func (m *mockContactRepository) GetByID(id int64) (*domain.Contact, error) {
	contact, exists := m.contacts[id]
	if !exists {
		return nil, nil
	}
	return contact, nil
}

func (m *mockContactRepository) Update(contact *domain.Contact) error {
	if _, exists := m.contacts[contact.ID]; !exists {
		return fmt.Errorf("contact %d not found", contact.ID)
	}
	m.contacts[contact.ID] = contact
	return nil
}

func (m *mockContactRepository) List(req *domain.ContactListRequest) ([]*domain.Contact, int64, error) {
	var result []*domain.Contact
	for _, contact := range m.contacts {
		if req.Status != nil && contact.Status != *req.Status {
			continue
		}
		if req.Type != nil && contact.Type != *req.Type {
			continue
		}
		if req.Priority != nil && contact.Priority != *req.Priority {
			continue
		}
		result = append(result, contact)
	}
	return result, int64(len(result)), nil
}

func (m *mockContactRepository) UnreadCount() (int64, error) {
	var count int64
	for _, contact := range m.contacts {
		if contact.Status == domain.ContactStatusNew {
			count++
		}
	}
	return count, nil
}

// 测试用用户仓储模拟实现
type mockUserRepository struct {
	users  map[string]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:  make(map[string]*domain.User),
		nextID: 1,
	}
}

func (m *mockUserRepository) Create(user *domain.User) error {
	if _, exists := m.users[user.Username]; exists {
		return fmt.Errorf("create user: %w", repo.ErrDuplicateKey)
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.Username] = user
	return nil
}

func (m *mockUserRepository) GetByID(id int64) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) GetByUsername(username string) (*domain.User, error) {
	user, exists := m.users[username]
	if !exists {
		return nil, nil
	}
	return user, nil
}

func (m *mockUserRepository) Update(user *domain.User) error {
	m.users[user.Username] = user
	return nil
}

// 测试用通知发布器：记录每类事件次数
type mockPublisher struct {
	orderEvents   []*domain.Order
	statusEvents  []domain.OrderStatus
	contactEvents []*domain.Contact
	lowStockCalls int
	failNext      bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{}
}

func (m *mockPublisher) PublishOrderCreated(order *domain.Order) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("publish failed")
	}
	m.orderEvents = append(m.orderEvents, order)
	return nil
}

func (m *mockPublisher) PublishOrderStatusChanged(order *domain.Order, _ domain.OrderStatus) error {
	m.statusEvents = append(m.statusEvents, order.Status)
	return nil
}

func (m *mockPublisher) PublishContactCreated(contact *domain.Contact) error {
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("publish failed")
	}
	m.contactEvents = append(m.contactEvents, contact)
	return nil
}

func (m *mockPublisher) PublishLowStock(products []*domain.Product) error {
	m.lowStockCalls++
	return nil
}
