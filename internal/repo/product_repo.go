// Package repo 实现数据访问层，负责与数据库的交互。
package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/paketuzb/paket_shop/internal/database"
	"github.com/paketuzb/paket_shop/internal/domain"
)

// ErrDuplicateKey 表示违反唯一约束（订单号、slug、SKU）
var ErrDuplicateKey = errors.New("duplicate key")

// isDuplicateKey 判断是否为 MySQL 1062 唯一键冲突
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// ProductRepository 定义商品数据访问接口
type ProductRepository interface {
	// 基本CRUD操作
	Create(product *domain.Product) error
	GetByID(id int64) (*domain.Product, error)
	GetBySlug(slug string) (*domain.Product, error)
	GetBySKU(sku string) (*domain.Product, error)
	Update(product *domain.Product) error

	// 查询操作
	List(req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	Categories() ([]string, error)
	ListLowStock() ([]*domain.Product, error)

	// 原子库存操作：并发安全性完全由数据库的单语句更新保证
	AdjustStock(id int64, qty int, op domain.StockOperation) error
	RecordSale(id int64, qty int) error
	AddRating(id int64, rating float64) error

	// 统计操作
	Count() (int64, error)
}

// productRepo 实现ProductRepository接口
type productRepo struct {
	db *database.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *database.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `
	id, name, description, category, size, price, original_price,
	images, specifications, quantity, in_stock, low_stock_threshold, sku,
	slug, meta_title, meta_description, keywords, features, usage_list,
	rating_average, rating_count, total_sold, week_sales, month_sales,
	status, featured, is_new, created_at, updated_at
`

// Create 创建商品
func (r *productRepo) Create(product *domain.Product) error {
	images, specs, keywords, features, usage, err := marshalProductJSON(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (
			name, description, category, size, price, original_price,
			images, specifications, quantity, in_stock, low_stock_threshold, sku,
			slug, meta_title, meta_description, keywords, features, usage_list,
			rating_average, rating_count, total_sold, week_sales, month_sales,
			status, featured, is_new
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		product.Name, product.Description, string(product.Category), product.Size,
		product.Price, product.OriginalPrice,
		images, specs, product.Quantity, product.InStock, product.LowStockThreshold, product.SKU,
		product.Slug, product.MetaTitle, product.MetaDescription, keywords, features, usage,
		product.RatingAverage, product.RatingCount,
		product.TotalSold, product.WeekSales, product.MonthSales,
		string(product.Status), product.Featured, product.IsNew,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("create product: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	product.ID = id
	return nil
}

// GetByID 根据ID获取商品
func (r *productRepo) GetByID(id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	return r.queryOne(query, id)
}

// GetBySlug 根据SEO slug 获取商品
func (r *productRepo) GetBySlug(slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = ?`
	return r.queryOne(query, slug)
}

// GetBySKU 根据SKU获取商品
func (r *productRepo) GetBySKU(sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = ?`
	return r.queryOne(query, sku)
}

// Update 更新商品全部字段
func (r *productRepo) Update(product *domain.Product) error {
	images, specs, keywords, features, usage, err := marshalProductJSON(product)
	if err != nil {
		return err
	}

	query := `
		UPDATE products SET
			name = ?, description = ?, category = ?, size = ?, price = ?, original_price = ?,
			images = ?, specifications = ?, quantity = ?, in_stock = ?, low_stock_threshold = ?, sku = ?,
			slug = ?, meta_title = ?, meta_description = ?, keywords = ?, features = ?, usage_list = ?,
			rating_average = ?, rating_count = ?, total_sold = ?, week_sales = ?, month_sales = ?,
			status = ?, featured = ?, is_new = ?
		WHERE id = ?
	`

	// 驱动默认返回"改动行数"，值未变时也是0，不能用RowsAffected判定商品是否存在；
	// 存在性由服务层先行校验。
	_, err = r.db.Exec(query,
		product.Name, product.Description, string(product.Category), product.Size,
		product.Price, product.OriginalPrice,
		images, specs, product.Quantity, product.InStock, product.LowStockThreshold, product.SKU,
		product.Slug, product.MetaTitle, product.MetaDescription, keywords, features, usage,
		product.RatingAverage, product.RatingCount,
		product.TotalSold, product.WeekSales, product.MonthSales,
		string(product.Status), product.Featured, product.IsNew,
		product.ID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("update product: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// List 分页查询商品列表
func (r *productRepo) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	conditions := []string{"status = 'active'"}
	args := []interface{}{}

	if req.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, string(*req.Category))
	}
	if req.MinPrice != nil {
		conditions = append(conditions, "price >= ?")
		args = append(args, *req.MinPrice)
	}
	if req.MaxPrice != nil {
		conditions = append(conditions, "price <= ?")
		args = append(args, *req.MaxPrice)
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + *req.Search + "%"
		args = append(args, pattern, pattern)
	}
	if req.Featured != nil {
		conditions = append(conditions, "featured = ?")
		args = append(args, *req.Featured)
	}
	if req.IsNew != nil {
		conditions = append(conditions, "is_new = ?")
		args = append(args, *req.IsNew)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// 总数
	var total int64
	countQuery := "SELECT COUNT(*) FROM products " + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	orderBy := "created_at DESC"
	if req.Sort == "best_sellers" {
		orderBy = "total_sold DESC, created_at DESC"
	}

	// 分页数据
	offset := (req.Page - 1) * req.Limit
	query := `SELECT ` + productColumns + ` FROM products ` + where +
		` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	args = append(args, req.Limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Categories 返回去重后的分类列表
func (r *productRepo) Categories() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListLowStock 返回达到补货提醒点的在售商品
func (r *productRepo) ListLowStock() ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE status = 'active' AND quantity > 0 AND quantity <= low_stock_threshold`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// AdjustStock 原子调整库存。
// subtract 在数据库内以 GREATEST(0, ...) 截断，in_stock 在同一语句内重算，
// 避免读取-修改-写回竞态。
func (r *productRepo) AdjustStock(id int64, qty int, op domain.StockOperation) error {
	var query string
	switch op {
	case domain.StockOpSubtract:
		query = `UPDATE products
			SET quantity = GREATEST(0, quantity - ?), in_stock = quantity > 0
			WHERE id = ?`
	case domain.StockOpAdd:
		query = `UPDATE products
			SET quantity = quantity + ?, in_stock = quantity > 0
			WHERE id = ?`
	default:
		return fmt.Errorf("unknown stock operation %q", op)
	}

	if _, err := r.db.Exec(query, qty, id); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	return nil
}

// RecordSale 原子记录销量并扣减库存
func (r *productRepo) RecordSale(id int64, qty int) error {
	query := `UPDATE products
		SET total_sold = total_sold + ?,
			week_sales = week_sales + ?,
			month_sales = month_sales + ?,
			quantity = GREATEST(0, quantity - ?),
			in_stock = quantity > 0
		WHERE id = ?`

	if _, err := r.db.Exec(query, qty, qty, qty, qty, id); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	return nil
}

// AddRating 原子并入一条新评分（滑动平均）
func (r *productRepo) AddRating(id int64, rating float64) error {
	query := `UPDATE products
		SET rating_average = (rating_average * rating_count + ?) / (rating_count + 1),
			rating_count = rating_count + 1
		WHERE id = ?`

	if _, err := r.db.Exec(query, rating, id); err != nil {
		return fmt.Errorf("add rating: %w", err)
	}
	return nil
}

// Count 返回商品总数
func (r *productRepo) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func (r *productRepo) queryOne(query string, arg interface{}) (*domain.Product, error) {
	row := r.db.QueryRow(query, arg)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// rowScanner 统一 *sql.Row 与 *sql.Rows 的 Scan 签名
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var (
		images, specs, keywords, features, usage []byte
		category, status                         string
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &category, &p.Size, &p.Price, &p.OriginalPrice,
		&images, &specs, &p.Quantity, &p.InStock, &p.LowStockThreshold, &p.SKU,
		&p.Slug, &p.MetaTitle, &p.MetaDescription, &keywords, &features, &usage,
		&p.RatingAverage, &p.RatingCount, &p.TotalSold, &p.WeekSales, &p.MonthSales,
		&status, &p.Featured, &p.IsNew, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Category = domain.ProductCategory(category)
	p.Status = domain.ProductStatus(status)

	if err := unmarshalJSONColumn(images, &p.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if err := unmarshalJSONColumn(specs, &p.Specs); err != nil {
		return nil, fmt.Errorf("decode specifications: %w", err)
	}
	if err := unmarshalJSONColumn(keywords, &p.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if err := unmarshalJSONColumn(features, &p.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if err := unmarshalJSONColumn(usage, &p.Usage); err != nil {
		return nil, fmt.Errorf("decode usage: %w", err)
	}
	return p, nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func marshalProductJSON(p *domain.Product) (images, specs, keywords, features, usage []byte, err error) {
	if images, err = json.Marshal(p.Images); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("encode images: %w", err)
	}
	if specs, err = json.Marshal(p.Specs); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("encode specifications: %w", err)
	}
	if keywords, err = json.Marshal(p.Keywords); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("encode keywords: %w", err)
	}
	if features, err = json.Marshal(p.Features); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("encode features: %w", err)
	}
	if usage, err = json.Marshal(p.Usage); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("encode usage: %w", err)
	}
	return images, specs, keywords, features, usage, nil
}

func unmarshalJSONColumn(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
