package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/paketuzb/paket_shop/internal/cache"
	"github.com/paketuzb/paket_shop/internal/domain"
)

// CachedProductRepository 带缓存的商品仓储。
// 读路径先查缓存，写路径直写数据库并失效相关键。
// 库存与销量走原子SQL，缓存中的数量只保证最终一致。
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, c cache.Cache, ttl time.Duration) ProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: c,
		ttl:   ttl,
	}
}

func (r *CachedProductRepository) productKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}

func (r *CachedProductRepository) slugKey(slug string) string {
	return "product:slug:" + slug
}

func (r *CachedProductRepository) skuKey(sku string) string {
	return "product:sku:" + sku
}

func (r *CachedProductRepository) categoriesKey() string {
	return "product:categories"
}

func (r *CachedProductRepository) invalidate(ctx context.Context, p *domain.Product) {
	keys := []string{r.productKey(p.ID), r.categoriesKey()}
	if p.Slug != "" {
		keys = append(keys, r.slugKey(p.Slug))
	}
	if p.SKU != "" {
		keys = append(keys, r.skuKey(p.SKU))
	}
	_ = r.cache.Del(ctx, keys...)
}

// Create 创建商品并失效分类缓存
func (r *CachedProductRepository) Create(product *domain.Product) error {
	if err := r.repo.Create(product); err != nil {
		return err
	}
	r.invalidate(context.Background(), product)
	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(id int64) (*domain.Product, error) {
	ctx := context.Background()
	key := r.productKey(id)

	var cached domain.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	product, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}

	_ = r.cache.Set(ctx, key, product, r.ttl)
	return product, nil
}

// GetBySlug 根据slug获取商品（带缓存）
func (r *CachedProductRepository) GetBySlug(slug string) (*domain.Product, error) {
	ctx := context.Background()
	key := r.slugKey(slug)

	var cached domain.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	product, err := r.repo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}

	_ = r.cache.Set(ctx, key, product, r.ttl)
	return product, nil
}

// GetBySKU 根据SKU获取商品（带缓存）
func (r *CachedProductRepository) GetBySKU(sku string) (*domain.Product, error) {
	ctx := context.Background()
	key := r.skuKey(sku)

	var cached domain.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	product, err := r.repo.GetBySKU(sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}

	_ = r.cache.Set(ctx, key, product, r.ttl)
	return product, nil
}

// Update 更新商品并失效缓存
func (r *CachedProductRepository) Update(product *domain.Product) error {
	if err := r.repo.Update(product); err != nil {
		return err
	}
	r.invalidate(context.Background(), product)
	return nil
}

// List 列表查询不走缓存：过滤维度多，命中率低
func (r *CachedProductRepository) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	return r.repo.List(req)
}

// Categories 分类列表（带缓存）
func (r *CachedProductRepository) Categories() ([]string, error) {
	ctx := context.Background()
	key := r.categoriesKey()

	var cached []string
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	categories, err := r.repo.Categories()
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, key, categories, r.ttl)
	return categories, nil
}

// ListLowStock 补货提醒用，总是读数据库
func (r *CachedProductRepository) ListLowStock() ([]*domain.Product, error) {
	return r.repo.ListLowStock()
}

// AdjustStock 原子调整库存并失效商品缓存
func (r *CachedProductRepository) AdjustStock(id int64, qty int, op domain.StockOperation) error {
	if err := r.repo.AdjustStock(id, qty, op); err != nil {
		return err
	}
	r.invalidateByID(id)
	return nil
}

// RecordSale 原子记录销量并失效商品缓存
func (r *CachedProductRepository) RecordSale(id int64, qty int) error {
	if err := r.repo.RecordSale(id, qty); err != nil {
		return err
	}
	r.invalidateByID(id)
	return nil
}

// AddRating 原子并入评分并失效商品缓存
func (r *CachedProductRepository) AddRating(id int64, rating float64) error {
	if err := r.repo.AddRating(id, rating); err != nil {
		return err
	}
	r.invalidateByID(id)
	return nil
}

// Count 返回商品总数
func (r *CachedProductRepository) Count() (int64, error) {
	return r.repo.Count()
}

// invalidateByID 只有ID在手时从数据库带回slug/SKU再失效
func (r *CachedProductRepository) invalidateByID(id int64) {
	ctx := context.Background()
	product, err := r.repo.GetByID(id)
	if err != nil || product == nil {
		_ = r.cache.Del(ctx, r.productKey(id))
		return
	}
	r.invalidate(ctx, product)
}
