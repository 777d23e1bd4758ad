// Package seed 在启动时初始化示例商品与管理员账号。
// 幂等：已存在的数据不会被覆盖。
package seed

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/service"
)

// Seeder 按需写入示例数据
type Seeder struct {
	products service.ProductService
	users    service.UserService
	logger   *zap.Logger
}

// New 创建种子执行器
func New(products service.ProductService, users service.UserService, logger *zap.Logger) *Seeder {
	return &Seeder{
		products: products,
		users:    users,
		logger:   logger,
	}
}

// SeedProducts 写入示例商品，已存在的（同slug/SKU）跳过
func (s *Seeder) SeedProducts() error {
	created := 0
	for _, req := range sampleProducts() {
		_, err := s.products.CreateProduct(req)
		if err != nil {
			if errors.Is(err, service.ErrProductExists) {
				continue
			}
			return fmt.Errorf("seed product %s: %w", req.SKU, err)
		}
		created++
	}
	if created > 0 {
		s.logger.Info("sample products seeded", zap.Int("count", created))
	}
	return nil
}

// EnsureAdmin 确保管理员账号存在；未配置账号时跳过
func (s *Seeder) EnsureAdmin(username, email, password string) error {
	if username == "" || password == "" {
		s.logger.Warn("admin credentials not configured, skipping admin seed")
		return nil
	}
	if err := s.users.EnsureAdmin(username, email, password); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func sampleProducts() []*domain.CreateProductRequest {
	return []*domain.CreateProductRequest{
		{
			Name:        "Selofan Paket Kichik",
			Description: "Do'konlar uchun kichik o'lchamdagi selofan paket",
			Category:    domain.CategorySelofan,
			Size:        "20x30 sm",
			Price:       500,
			Quantity:    1000,
			SKU:         "SEL001",
			Slug:        "selofan-paket-kichik",
			Images:      []string{"https://picsum.photos/400/300?random=1"},
			Specs: domain.Specifications{
				Material:  "Yuqori sifatli selofan",
				Thickness: "25 mikron",
				Color:     "Shaffof",
			},
		},
		{
			Name:        "Selofan Paket O'rta",
			Description: "O'rta bizneslar uchun selofan paket",
			Category:    domain.CategorySelofan,
			Size:        "30x40 sm",
			Price:       800,
			Quantity:    800,
			SKU:         "SEL002",
			Slug:        "selofan-paket-orta",
			Images:      []string{"https://picsum.photos/400/300?random=2"},
			Specs: domain.Specifications{
				Material:  "Yuqori sifatli selofan",
				Thickness: "30 mikron",
				Color:     "Shaffof",
			},
		},
		{
			Name:        "Selofan Paket Katta",
			Description: "Yirik do'konlar uchun katta selofan paket",
			Category:    domain.CategorySelofan,
			Size:        "40x50 sm",
			Price:       1200,
			Quantity:    500,
			SKU:         "SEL003",
			Slug:        "selofan-paket-katta",
			Images:      []string{"https://picsum.photos/400/300?random=3"},
			Specs: domain.Specifications{
				Material:  "Yuqori sifatli selofan",
				Thickness: "35 mikron",
				Color:     "Shaffof",
			},
		},
		{
			Name:        "Rulon Paket Kichik",
			Description: "Kichik bizneslar uchun rulon paket",
			Category:    domain.CategoryRulon,
			Size:        "30 sm kenglik",
			Price:       1500,
			Quantity:    200,
			SKU:         "RUL001",
			Slug:        "rulon-paket-kichik",
			Images:      []string{"https://picsum.photos/400/300?random=4"},
			Specs: domain.Specifications{
				Material:  "Polietilen",
				Length:    "100 metr",
				Thickness: "40 mikron",
			},
		},
		{
			Name:        "Rulon Paket O'rta",
			Description: "O'rta bizneslar uchun rulon paket",
			Category:    domain.CategoryRulon,
			Size:        "50 sm kenglik",
			Price:       2500,
			Quantity:    150,
			SKU:         "RUL002",
			Slug:        "rulon-paket-orta",
			Images:      []string{"https://picsum.photos/400/300?random=5"},
			Specs: domain.Specifications{
				Material:  "Polietilen",
				Length:    "100 metr",
				Thickness: "45 mikron",
			},
		},
		{
			Name:        "Rulon Paket Katta",
			Description: "Yirik bizneslar uchun rulon paket",
			Category:    domain.CategoryRulon,
			Size:        "70 sm kenglik",
			Price:       3500,
			Quantity:    100,
			SKU:         "RUL003",
			Slug:        "rulon-paket-katta",
			Images:      []string{"https://picsum.photos/400/300?random=6"},
			Specs: domain.Specifications{
				Material:  "Polietilen",
				Length:    "100 metr",
				Thickness: "50 mikron",
			},
		},
	}
}
