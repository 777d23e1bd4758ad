// Package service 实现业务逻辑层，协调领域对象与仓储完成业务用例。
package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/repo"
)

// 商品业务错误
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductExists      = errors.New("product already exists")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrInvalidAdjustment  = errors.New("invalid stock adjustment")
	ErrProductUnavailable = errors.New("product is unavailable")
)

// ProductService 定义商品业务逻辑接口
type ProductService interface {
	// 商品管理（后台）
	CreateProduct(req *domain.CreateProductRequest) (*domain.Product, error)
	UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.Product, error)
	Discontinue(id int64) error
	AdjustStock(id int64, req *domain.StockAdjustmentRequest) (*domain.Product, error)

	// 商品查询（前台）
	GetProduct(id int64) (*domain.Product, error)
	GetProductBySlug(slug string) (*domain.Product, error)
	ListProducts(req *domain.ProductListRequest) (*domain.ProductListResponse, error)
	Categories() ([]string, error)

	// 评分
	AddRating(id int64, req *domain.RatingRequest) (*domain.Product, error)

	// 补货提醒
	ListLowStock() ([]*domain.Product, error)
}

type productService struct {
	productRepo repo.ProductRepository
	logger      *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(productRepo repo.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger,
	}
}

// CreateProduct 创建商品。
// slug 与 SKU 缺省时由名称和分类推导，冲突时返回 ErrProductExists。
func (s *productService) CreateProduct(req *domain.CreateProductRequest) (*domain.Product, error) {
	if v := req.Validate(); !v.OK() {
		return nil, v
	}

	now := time.Now()
	product := &domain.Product{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Size:          req.Size,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Images:        req.Images,
		Specs:         req.Specs,
		Quantity:      req.Quantity,
		SKU:           req.SKU,
		Slug:          req.Slug,
		Features:      req.Features,
		Usage:         req.Usage,
		Status:        domain.ProductStatusActive,
		Featured:      req.Featured,
		IsNew:         true,
		CreatedAt:     now,
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	} else {
		product.LowStockThreshold = 10
	}
	product.Normalize(now)

	// slug 唯一性预检：唯一索引兜底，预检只为给出友好错误
	existing, err := s.productRepo.GetBySlug(product.Slug)
	if err != nil {
		return nil, fmt.Errorf("check slug uniqueness: %w", err)
	}
	if existing != nil {
		return nil, ErrProductExists
	}

	if err := s.productRepo.Create(product); err != nil {
		if errors.Is(err, repo.ErrDuplicateKey) {
			return nil, ErrProductExists
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.String("category", string(product.Category)),
	)
	return product, nil
}

// UpdateProduct 部分更新商品
func (s *productService) UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		if !req.Category.IsValid() {
			var v domain.Violations
			v.Add("category", "category must be one of Selofan, Rulon, Aksessuarlar")
			return nil, v
		}
		product.Category = *req.Category
	}
	if req.Size != nil {
		product.Size = *req.Size
	}
	if req.Price != nil {
		if *req.Price < 0 {
			var v domain.Violations
			v.Add("price", "price must be non-negative")
			return nil, v
		}
		product.Price = *req.Price
	}
	if req.OriginalPrice != nil {
		product.OriginalPrice = req.OriginalPrice
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Specs != nil {
		product.Specs = *req.Specs
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			var v domain.Violations
			v.Add("quantity", "quantity must be non-negative")
			return nil, v
		}
		product.Quantity = *req.Quantity
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}
	if req.MetaTitle != nil {
		product.MetaTitle = *req.MetaTitle
	}
	if req.MetaDescription != nil {
		product.MetaDescription = *req.MetaDescription
	}
	if req.Keywords != nil {
		product.Keywords = req.Keywords
	}
	if req.Features != nil {
		product.Features = req.Features
	}
	if req.Usage != nil {
		product.Usage = req.Usage
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			var v domain.Violations
			v.Add("status", "status must be one of active, inactive, discontinued")
			return nil, v
		}
		product.Status = *req.Status
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}
	if req.IsNew != nil {
		product.IsNew = *req.IsNew
	}

	product.Normalize(time.Now())

	if err := s.productRepo.Update(product); err != nil {
		if errors.Is(err, repo.ErrDuplicateKey) {
			return nil, ErrProductExists
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

// Discontinue 下架商品（软删除）
func (s *productService) Discontinue(id int64) error {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}

	product.Status = domain.ProductStatusDiscontinued
	if err := s.productRepo.Update(product); err != nil {
		return fmt.Errorf("discontinue product: %w", err)
	}

	s.logger.Info("product discontinued", zap.Int64("product_id", id))
	return nil
}

// AdjustStock 调整库存并返回最新商品
func (s *productService) AdjustStock(id int64, req *domain.StockAdjustmentRequest) (*domain.Product, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidAdjustment
	}
	if req.Operation != domain.StockOpSubtract && req.Operation != domain.StockOpAdd {
		return nil, ErrInvalidAdjustment
	}

	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if err := s.productRepo.AdjustStock(id, req.Quantity, req.Operation); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	updated, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("reload product: %w", err)
	}
	if updated != nil && updated.IsLowStock() {
		s.logger.Warn("product stock is low",
			zap.Int64("product_id", updated.ID),
			zap.String("sku", updated.SKU),
			zap.Int("quantity", updated.Quantity),
		)
	}
	return updated, nil
}

// GetProduct 获取商品详情
func (s *productService) GetProduct(id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// GetProductBySlug 根据slug获取商品
func (s *productService) GetProductBySlug(slug string) (*domain.Product, error) {
	product, err := s.productRepo.GetBySlug(slug)
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// ListProducts 分页获取商品列表
func (s *productService) ListProducts(req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 12
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	products, total, err := s.productRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &domain.ProductListResponse{
		Products:    products,
		TotalPages:  totalPages,
		CurrentPage: req.Page,
		Total:       total,
	}, nil
}

// Categories 获取分类列表
func (s *productService) Categories() ([]string, error) {
	categories, err := s.productRepo.Categories()
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// AddRating 提交评分：1~5 的整数或半星
func (s *productService) AddRating(id int64, req *domain.RatingRequest) (*domain.Product, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if err := s.productRepo.AddRating(id, req.Rating); err != nil {
		return nil, fmt.Errorf("add rating: %w", err)
	}

	updated, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("reload product: %w", err)
	}
	return updated, nil
}

// ListLowStock 获取达到补货提醒点的商品
func (s *productService) ListLowStock() ([]*domain.Product, error) {
	products, err := s.productRepo.ListLowStock()
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	return products, nil
}
