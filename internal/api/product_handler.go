// Package api 提供商品、订单、留言与支付相关的HTTP处理器。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/middleware"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/service"
)

// ProductHandler 商品相关的HTTP处理器
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler 创建商品处理器实例
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// ListProducts 获取商品列表
// GET /api/products?page=1&limit=12&category=selofan&min_price=&max_price=&search=&featured=&new=&sort=best_sellers
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.ProductListRequest{}
	query := r.URL.Query()

	req.Page = parsePositiveInt(query.Get("page"), 1)
	req.Limit = parsePositiveInt(query.Get("limit"), 12)

	if category := query.Get("category"); category != "" {
		c := domain.ProductCategory(category)
		req.Category = &c
	}
	if minStr := query.Get("min_price"); minStr != "" {
		if v, err := strconv.ParseInt(minStr, 10, 64); err == nil {
			req.MinPrice = &v
		}
	}
	if maxStr := query.Get("max_price"); maxStr != "" {
		if v, err := strconv.ParseInt(maxStr, 10, 64); err == nil {
			req.MaxPrice = &v
		}
	}
	if search := query.Get("search"); search != "" {
		req.Search = &search
	}
	if featuredStr := query.Get("featured"); featuredStr != "" {
		v := featuredStr == "true"
		req.Featured = &v
	}
	if newStr := query.Get("new"); newStr != "" {
		v := newStr == "true"
		req.IsNew = &v
	}
	req.Sort = query.Get("sort")

	result, err := h.productService.ListProducts(req)
	if err != nil {
		h.logger.Error("list products failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list products failed", reqID, "")
		return
	}
	resp.OK(w, result, reqID, "")
}

// GetProduct 获取商品详情
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 3)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	product, err := h.productService.GetProduct(id)
	if err != nil {
		h.writeProductError(w, r, err, "get product failed")
		return
	}
	resp.OK(w, product, reqID, "")
}

// GetProductBySlug 通过slug获取商品详情
// GET /api/products/slug/{slug}
func (h *ProductHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product slug", reqID, "")
		return
	}

	product, err := h.productService.GetProductBySlug(parts[4])
	if err != nil {
		h.writeProductError(w, r, err, "get product by slug failed")
		return
	}
	resp.OK(w, product, reqID, "")
}

// Categories 获取在售商品的分类列表
// GET /api/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	categories, err := h.productService.Categories()
	if err != nil {
		h.logger.Error("list categories failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list categories failed", reqID, "")
		return
	}
	resp.OK(w, categories, reqID, "")
}

// AddRating 提交商品评分
// POST /api/products/{id}/rating
func (h *ProductHandler) AddRating(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 3)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.AddRating(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRating) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "rating must be between 1 and 5", reqID, "")
			return
		}
		h.writeProductError(w, r, err, "add rating failed")
		return
	}
	resp.OK(w, product, reqID, "")
}

// CreateProduct 创建商品
// POST /api/admin/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.CreateProduct(&req)
	if err != nil {
		var violations domain.Violations
		if errors.As(err, &violations) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, violations.Error(), reqID, "")
			return
		}
		if errors.Is(err, service.ErrProductExists) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "product with this name or SKU already exists", reqID, "")
			return
		}
		h.logger.Error("create product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create product failed", reqID, "")
		return
	}
	resp.Created(w, product, reqID, "")
}

// UpdateProduct 更新商品
// PUT /api/admin/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.UpdateProduct(id, &req)
	if err != nil {
		var violations domain.Violations
		if errors.As(err, &violations) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, violations.Error(), reqID, "")
			return
		}
		h.writeProductError(w, r, err, "update product failed")
		return
	}
	resp.OK(w, product, reqID, "")
}

// Discontinue 下架商品（软删除）
// DELETE /api/admin/products/{id}
func (h *ProductHandler) Discontinue(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	if err := h.productService.Discontinue(id); err != nil {
		h.writeProductError(w, r, err, "discontinue product failed")
		return
	}
	result := map[string]interface{}{"discontinued": true}
	resp.OK(w, &result, reqID, "")
}

// AdjustStock 增减商品库存
// POST /api/admin/products/{id}/stock
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.StockAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.AdjustStock(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAdjustment) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid stock adjustment", reqID, "")
			return
		}
		h.writeProductError(w, r, err, "adjust stock failed")
		return
	}
	resp.OK(w, product, reqID, "")
}

// ListLowStock 获取达到补货提醒点的商品
// GET /api/admin/products/low-stock
func (h *ProductHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	products, err := h.productService.ListLowStock()
	if err != nil {
		h.logger.Error("list low stock failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list low stock failed", reqID, "")
		return
	}
	resp.OK(w, products, reqID, "")
}

// writeProductError 统一映射商品服务错误
func (h *ProductHandler) writeProductError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	reqID := middleware.RequestIDFromContext(r.Context())
	if errors.Is(err, service.ErrProductNotFound) {
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
		return
	}
	h.logger.Error(logMsg, zap.String("request_id", reqID), zap.Error(err))
	resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, logMsg, reqID, "")
}

// pathID 从URL路径的指定段解析数字ID，如 /api/products/{id} 的第3段
func pathID(path string, index int) (int64, bool) {
	parts := strings.Split(path, "/")
	if len(parts) <= index {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[index], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePositiveInt 解析正整数查询参数，非法时回退默认值
func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
