package domain

import (
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple name", in: "Selofan Paket Kichik", want: "selofan-paket-kichik"},
		{name: "punctuation collapsed", in: "Rulon -- Paket (Katta)!", want: "rulon-paket-katta"},
		{name: "leading and trailing junk", in: "  ***Aksessuar***  ", want: "aksessuar"},
		{name: "digits kept", in: "Paket 40x50", want: "paket-40x50"},
		{name: "already slugified is idempotent", in: "selofan-paket-kichik", want: "selofan-paket-kichik"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
			// 再次派生结果不变
			if again := Slugify(got); again != got {
				t.Errorf("Slugify not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestDeriveSKU(t *testing.T) {
	createdAt := time.UnixMilli(1726000123456)
	sku := DeriveSKU(CategorySelofan, createdAt)
	if sku != "SEL-123456" {
		t.Errorf("DeriveSKU() = %q, want %q", sku, "SEL-123456")
	}
}

func TestProduct_DiscountPercentage(t *testing.T) {
	orig := int64(1000)
	low := int64(400)

	tests := []struct {
		name    string
		price   int64
		origPtr *int64
		want    int
	}{
		{name: "no original price", price: 500, origPtr: nil, want: 0},
		{name: "original below price", price: 500, origPtr: &low, want: 0},
		{name: "25 percent off", price: 750, origPtr: &orig, want: 25},
		{name: "rounded", price: 667, origPtr: &orig, want: 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Price: tt.price, OriginalPrice: tt.origPtr}
			if got := p.DiscountPercentage(); got != tt.want {
				t.Errorf("DiscountPercentage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProduct_StockStatus(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		threshold int
		want      StockStatus
	}{
		{name: "out of stock", quantity: 0, threshold: 10, want: StockStatusOutOfStock},
		{name: "low stock at threshold", quantity: 10, threshold: 10, want: StockStatusLowStock},
		{name: "low stock below threshold", quantity: 3, threshold: 10, want: StockStatusLowStock},
		{name: "in stock", quantity: 11, threshold: 10, want: StockStatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Quantity: tt.quantity, LowStockThreshold: tt.threshold}
			if got := p.StockStatus(); got != tt.want {
				t.Errorf("StockStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProduct_UpdateStock(t *testing.T) {
	tests := []struct {
		name        string
		start       int
		qty         int
		op          StockOperation
		wantQty     int
		wantInStock bool
		wantErr     bool
	}{
		{name: "subtract within stock", start: 10, qty: 4, op: StockOpSubtract, wantQty: 6, wantInStock: true},
		{name: "subtract floors at zero", start: 5, qty: 10, op: StockOpSubtract, wantQty: 0, wantInStock: false},
		{name: "subtract to exactly zero", start: 5, qty: 5, op: StockOpSubtract, wantQty: 0, wantInStock: false},
		{name: "add", start: 0, qty: 7, op: StockOpAdd, wantQty: 7, wantInStock: true},
		{name: "unknown operation", start: 5, qty: 1, op: "multiply", wantQty: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Quantity: tt.start, InStock: tt.start > 0}
			err := p.UpdateStock(tt.qty, tt.op)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateStock() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Quantity != tt.wantQty {
				t.Errorf("quantity = %d, want %d", p.Quantity, tt.wantQty)
			}
			if p.InStock != tt.wantInStock {
				t.Errorf("inStock = %v, want %v", p.InStock, tt.wantInStock)
			}
			if p.InStock != (p.Quantity > 0) {
				t.Errorf("inStock invariant broken: quantity=%d inStock=%v", p.Quantity, p.InStock)
			}
		})
	}
}

func TestProduct_RecordSale(t *testing.T) {
	p := &Product{Quantity: 20, InStock: true, TotalSold: 5, WeekSales: 2, MonthSales: 3}
	if err := p.RecordSale(4); err != nil {
		t.Fatalf("RecordSale() error = %v", err)
	}

	if p.TotalSold != 9 {
		t.Errorf("totalSold = %d, want 9", p.TotalSold)
	}
	if p.WeekSales != 6 || p.MonthSales != 7 {
		t.Errorf("week/month sales = %d/%d, want 6/7", p.WeekSales, p.MonthSales)
	}
	// 库存效果与 UpdateStock(subtract) 等价
	ref := &Product{Quantity: 20, InStock: true}
	_ = ref.UpdateStock(4, StockOpSubtract)
	if p.Quantity != ref.Quantity || p.InStock != ref.InStock {
		t.Errorf("stock effect = %d/%v, want %d/%v", p.Quantity, p.InStock, ref.Quantity, ref.InStock)
	}
}

func TestProduct_RecordSale_DefaultQuantity(t *testing.T) {
	p := &Product{Quantity: 3, InStock: true}
	if err := p.RecordSale(0); err != nil {
		t.Fatalf("RecordSale() error = %v", err)
	}
	if p.TotalSold != 1 || p.Quantity != 2 {
		t.Errorf("totalSold/quantity = %d/%d, want 1/2", p.TotalSold, p.Quantity)
	}
}

func TestProduct_UpdateRating(t *testing.T) {
	p := &Product{RatingAverage: 4.0, RatingCount: 3}
	p.UpdateRating(5.0)

	if p.RatingCount != 4 {
		t.Errorf("ratingCount = %d, want 4", p.RatingCount)
	}
	if p.RatingAverage != 4.25 {
		t.Errorf("ratingAverage = %v, want 4.25", p.RatingAverage)
	}
}

func TestProduct_Normalize(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("derives slug sku and inStock", func(t *testing.T) {
		p := &Product{
			Name:     "Selofan Paket Kichik",
			Category: CategorySelofan,
			Quantity: 10,
			IsNew:    true,
		}
		p.Normalize(now)

		if p.Slug != "selofan-paket-kichik" {
			t.Errorf("slug = %q", p.Slug)
		}
		if p.SKU == "" {
			t.Error("SKU not derived")
		}
		if !p.InStock {
			t.Error("inStock not derived from quantity")
		}
		if !p.IsNew {
			t.Error("fresh product must remain new")
		}
	})

	t.Run("does not overwrite explicit slug and sku", func(t *testing.T) {
		p := &Product{
			Name:     "Selofan Paket Kichik",
			Category: CategorySelofan,
			Slug:     "custom-slug",
			SKU:      "SEL001",
		}
		p.Normalize(now)
		if p.Slug != "custom-slug" || p.SKU != "SEL001" {
			t.Errorf("slug/sku overwritten: %q/%q", p.Slug, p.SKU)
		}
	})

	t.Run("inStock never trusted from caller", func(t *testing.T) {
		p := &Product{Name: "x", Category: CategoryRulon, Quantity: 0, InStock: true}
		p.Normalize(now)
		if p.InStock {
			t.Error("inStock must be recomputed to false when quantity is zero")
		}
	})

	t.Run("isNew expires after 30 days", func(t *testing.T) {
		p := &Product{
			Name:      "x",
			Category:  CategoryRulon,
			IsNew:     true,
			CreatedAt: now.Add(-31 * 24 * time.Hour),
		}
		p.Normalize(now)
		if p.IsNew {
			t.Error("isNew must flip to false after 30 days")
		}

		// 不可逆：再次 Normalize 也不会翻回
		p.Normalize(now)
		if p.IsNew {
			t.Error("isNew must stay false")
		}
	})
}
