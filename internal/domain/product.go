// Package domain 定义商品相关的业务领域模型和核心业务规则。
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// ProductCategory 定义商品分类类型
type ProductCategory string

const (
	CategorySelofan      ProductCategory = "Selofan"      // 塑封袋
	CategoryRulon        ProductCategory = "Rulon"        // 卷装袋
	CategoryAksessuarlar ProductCategory = "Aksessuarlar" // 配件
)

// Categories 返回固定的分类集合
func Categories() []ProductCategory {
	return []ProductCategory{CategorySelofan, CategoryRulon, CategoryAksessuarlar}
}

// IsValid 判断分类是否属于固定集合
func (c ProductCategory) IsValid() bool {
	switch c {
	case CategorySelofan, CategoryRulon, CategoryAksessuarlar:
		return true
	}
	return false
}

// ProductStatus 定义商品状态类型
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"       // 正常销售
	ProductStatusInactive     ProductStatus = "inactive"     // 暂停销售
	ProductStatusDiscontinued ProductStatus = "discontinued" // 已停产
)

// IsValid 判断销售状态是否属于枚举集合
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusInactive, ProductStatusDiscontinued:
		return true
	}
	return false
}

// StockStatus 定义库存展示状态
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// StockOperation 定义库存调整方向
type StockOperation string

const (
	StockOpSubtract StockOperation = "subtract"
	StockOpAdd      StockOperation = "add"
)

// Specifications 商品规格参数
type Specifications struct {
	Material  string `json:"material,omitempty"`
	Thickness string `json:"thickness,omitempty"`
	Length    string `json:"length,omitempty"`
	Width     string `json:"width,omitempty"`
	Color     string `json:"color,omitempty"`
	Weight    string `json:"weight,omitempty"`
	PackSize  string `json:"pack_size,omitempty"`
}

// Product 表示商品领域模型。
// 价格为苏姆（UZS）整数金额。
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      ProductCategory `json:"category"`
	Size          string          `json:"size"`
	Price         int64           `json:"price"`
	OriginalPrice *int64          `json:"original_price,omitempty"`
	Images        []string        `json:"images"`
	Specs         Specifications  `json:"specifications"`

	// 库存子记录
	Quantity          int    `json:"quantity"`
	InStock           bool   `json:"in_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	SKU               string `json:"sku"`

	// SEO 子记录
	Slug            string   `json:"slug"`
	MetaTitle       string   `json:"meta_title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`

	Features []string `json:"features,omitempty"`
	Usage    []string `json:"usage,omitempty"`

	RatingAverage float64 `json:"rating_average"`
	RatingCount   int     `json:"rating_count"`

	TotalSold  int `json:"total_sold"`
	WeekSales  int `json:"week_sales"`
	MonthSales int `json:"month_sales"`

	Status   ProductStatus `json:"status"`
	Featured bool          `json:"featured"`
	IsNew    bool          `json:"is_new"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive && p.InStock
}

// MainImage 返回主图（图片列表首项）
func (p *Product) MainImage() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// DiscountPercentage 计算折扣百分比。
// 仅当原价高于现价时返回非零值。
func (p *Product) DiscountPercentage() int {
	if p.OriginalPrice != nil && *p.OriginalPrice > p.Price {
		orig := float64(*p.OriginalPrice)
		return int(math.Round((orig - float64(p.Price)) / orig * 100))
	}
	return 0
}

// StockStatus 返回库存展示状态
func (p *Product) StockStatus() StockStatus {
	switch {
	case p.Quantity == 0:
		return StockStatusOutOfStock
	case p.Quantity <= p.LowStockThreshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// IsLowStock 判断是否达到补货提醒点（非零库存）
func (p *Product) IsLowStock() bool {
	return p.Quantity > 0 && p.Quantity <= p.LowStockThreshold
}

// Normalize 在每次持久化前执行派生字段计算：
//   - slug 为空时由名称派生；
//   - SKU 为空时由分类前缀 + 创建时间戳派生；
//   - in_stock 始终由 quantity 重新计算，不信任调用方输入；
//   - 创建超过 30 天后 is_new 不可逆地置为 false（惰性求值）。
func (p *Product) Normalize(now time.Time) {
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.SKU == "" {
		p.SKU = DeriveSKU(p.Category, p.createdOr(now))
	}
	p.InStock = p.Quantity > 0
	if p.IsNew && now.Sub(p.createdOr(now)) > 30*24*time.Hour {
		p.IsNew = false
	}
}

func (p *Product) createdOr(now time.Time) time.Time {
	if p.CreatedAt.IsZero() {
		return now
	}
	return p.CreatedAt
}

// UpdateStock 调整库存数量。
// subtract 在零处截断，不会出现负库存；随后总是重新派生 in_stock。
func (p *Product) UpdateStock(qty int, op StockOperation) error {
	switch op {
	case StockOpSubtract:
		p.Quantity -= qty
		if p.Quantity < 0 {
			p.Quantity = 0
		}
	case StockOpAdd:
		p.Quantity += qty
	default:
		return fmt.Errorf("unknown stock operation %q", op)
	}
	p.InStock = p.Quantity > 0
	return nil
}

// RecordSale 记录销量并扣减库存。
// 周/月销量计数器由外部周期任务重置，此处只累加。
func (p *Product) RecordSale(qty int) error {
	if qty <= 0 {
		qty = 1
	}
	p.TotalSold += qty
	p.WeekSales += qty
	p.MonthSales += qty
	return p.UpdateStock(qty, StockOpSubtract)
}

// UpdateRating 以滑动平均方式并入一条新评分
func (p *Product) UpdateRating(newRating float64) {
	total := p.RatingAverage*float64(p.RatingCount) + newRating
	p.RatingCount++
	p.RatingAverage = total / float64(p.RatingCount)
}

// Slugify 由名称派生 SEO slug：小写化、连续非字母数字字符折叠为单个连字符、
// 去除首尾连字符。对已是 slug 形式的输入幂等。
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// DeriveSKU 生成库存编码：分类前三个字符大写 + 创建时刻毫秒时间戳后 6 位。
func DeriveSKU(category ProductCategory, createdAt time.Time) string {
	prefix := strings.ToUpper(string(category))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	ts := fmt.Sprintf("%d", createdAt.UnixMilli())
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("%s-%s", prefix, ts)
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          ProductCategory `json:"category"`
	Size              string          `json:"size"`
	Price             int64           `json:"price"`
	OriginalPrice     *int64          `json:"original_price"`
	Images            []string        `json:"images"`
	Specs             Specifications  `json:"specifications"`
	Quantity          int             `json:"quantity"`
	LowStockThreshold *int            `json:"low_stock_threshold"`
	SKU               string          `json:"sku"`
	Slug              string          `json:"slug"`
	Features          []string        `json:"features"`
	Usage             []string        `json:"usage"`
	Featured          bool            `json:"featured"`
}

// Validate 对创建请求执行完整校验，返回全部违规项而非首个错误。
func (r *CreateProductRequest) Validate() Violations {
	var v Violations
	if strings.TrimSpace(r.Name) == "" {
		v.Add("name", "name is required")
	} else if len(r.Name) > 100 {
		v.Add("name", "name must be at most 100 characters")
	}
	if strings.TrimSpace(r.Description) == "" {
		v.Add("description", "description is required")
	} else if len(r.Description) > 1000 {
		v.Add("description", "description must be at most 1000 characters")
	}
	if !r.Category.IsValid() {
		v.Add("category", "category must be one of Selofan, Rulon, Aksessuarlar")
	}
	if strings.TrimSpace(r.Size) == "" {
		v.Add("size", "size is required")
	}
	if r.Price < 0 {
		v.Add("price", "price must be non-negative")
	}
	if r.OriginalPrice != nil && *r.OriginalPrice < 0 {
		v.Add("original_price", "original price must be non-negative")
	}
	if r.Quantity < 0 {
		v.Add("quantity", "quantity must be non-negative")
	}
	if r.LowStockThreshold != nil && *r.LowStockThreshold < 0 {
		v.Add("low_stock_threshold", "low stock threshold must be non-negative")
	}
	return v
}

// UpdateProductRequest 表示商品部分更新请求，nil 字段不变
type UpdateProductRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Category          *ProductCategory `json:"category"`
	Size              *string          `json:"size"`
	Price             *int64           `json:"price"`
	OriginalPrice     *int64           `json:"original_price"`
	Images            []string         `json:"images"`
	Specs             *Specifications  `json:"specifications"`
	Quantity          *int             `json:"quantity"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	MetaTitle         *string          `json:"meta_title"`
	MetaDescription   *string          `json:"meta_description"`
	Keywords          []string         `json:"keywords"`
	Features          []string         `json:"features"`
	Usage             []string         `json:"usage"`
	Status            *ProductStatus   `json:"status"`
	Featured          *bool            `json:"featured"`
	IsNew             *bool            `json:"is_new"`
}

// StockAdjustmentRequest 表示库存调整请求
type StockAdjustmentRequest struct {
	Quantity  int            `json:"quantity"`
	Operation StockOperation `json:"operation"`
}

// RatingRequest 表示评分提交请求
type RatingRequest struct {
	Rating float64 `json:"rating"`
}

// ProductListRequest 表示商品列表查询请求
type ProductListRequest struct {
	Page     int              `json:"page"`      // 页码，从1开始
	Limit    int              `json:"limit"`     // 每页大小
	Category *ProductCategory `json:"category"`  // 分类过滤
	MinPrice *int64           `json:"min_price"` // 最低价过滤
	MaxPrice *int64           `json:"max_price"` // 最高价过滤
	Search   *string          `json:"search"`    // 名称/描述关键词
	Featured *bool            `json:"featured"`  // 仅精选
	IsNew    *bool            `json:"is_new"`    // 仅新品
	Sort     string           `json:"sort"`      // 排序：空=最新上架，best_sellers=销量
}

// ProductListResponse 表示商品列表查询响应
type ProductListResponse struct {
	Products    []*Product `json:"products"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Total       int64      `json:"total"`
}
