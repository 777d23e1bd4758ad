package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/api"
	"github.com/paketuzb/paket_shop/internal/cache"
	"github.com/paketuzb/paket_shop/internal/config"
	"github.com/paketuzb/paket_shop/internal/database"
	"github.com/paketuzb/paket_shop/internal/limiter"
	"github.com/paketuzb/paket_shop/internal/logger"
	mw "github.com/paketuzb/paket_shop/internal/middleware"
	"github.com/paketuzb/paket_shop/internal/mq"
	"github.com/paketuzb/paket_shop/internal/notify"
	"github.com/paketuzb/paket_shop/internal/repo"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/seed"
	"github.com/paketuzb/paket_shop/internal/service"
)

// 低库存巡检周期
const lowStockCheckInterval = time.Hour

// AppDependencies 包含应用的所有依赖
type AppDependencies struct {
	ProductHandler *api.ProductHandler
	OrderHandler   *api.OrderHandler
	ContactHandler *api.ContactHandler
	PaymentHandler *api.PaymentHandler
	UserHandler    *api.UserHandler
	JWTService     service.JWTService

	ProductService service.ProductService
	Publisher      service.NotificationPublisher
	Consumer       *mq.Consumer
	MQConn         *mq.Connection
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}
	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// 启动HTTP服务前先完成迁移，保证处理请求时表结构就绪
	if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}
	return db, nil
}

// initCache 初始化缓存实例；Redis 不可用时回退内存缓存
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
		lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	}
	lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
	return redisCache
}

// initLimiter 初始化公共写接口限流器；有 Redis 时多实例共享配额，否则退化为单机内存桶
func initLimiter(cfg *config.Config, cacheInstance cache.Cache, lg *zap.Logger) limiter.Limiter {
	if !cfg.RateLimit.Enabled {
		lg.Sugar().Infow("rate limiting disabled")
		return nil
	}

	limiterCfg := &limiter.Config{
		Rate:   cfg.RateLimit.Rate,
		Window: cfg.RateLimit.Window,
		Burst:  cfg.RateLimit.Burst,
	}
	if redisCache, ok := cacheInstance.(*cache.RedisCache); ok {
		lg.Sugar().Infow("rate limiting enabled", "backend", "redis", "rate", limiterCfg.Rate, "window", limiterCfg.Window)
		return limiter.NewRedisLimiter(redisCache.Client(), limiterCfg)
	}
	lg.Sugar().Infow("rate limiting enabled", "backend", "memory", "rate", limiterCfg.Rate, "window", limiterCfg.Window)
	return limiter.NewMemoryLimiter(limiterCfg)
}

// initDependencies 初始化依赖注入链：仓储 -> 通知 -> 服务 -> API处理器
func initDependencies(ctx context.Context, cfg *config.Config, db *database.DB, cacheInstance cache.Cache, lg *zap.Logger) (*AppDependencies, error) {
	userRepo := repo.NewUserRepository(db)
	orderRepo := repo.NewOrderRepository(db)
	contactRepo := repo.NewContactRepository(db)

	var productRepo repo.ProductRepository = repo.NewProductRepository(db)
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(productRepo, cacheInstance, cfg.Cache.TTL)
	}

	// 通知链路：Telegram播报 + Google Sheets台账
	telegram := notify.NewTelegramClient(cfg.Telegram, lg)
	sheetsClient, err := notify.NewSheetsClient(ctx, cfg.Sheets, lg)
	if err != nil {
		return nil, fmt.Errorf("init google sheets: %v", err)
	}
	dispatcher := notify.NewDispatcher(orderRepo, contactRepo, telegram, sheetsClient, lg)

	// MQ 开启时经 RabbitMQ 异步投递，否则直接后台派发
	var publisher service.NotificationPublisher
	var consumer *mq.Consumer
	var mqConn *mq.Connection
	if cfg.MQ.Enabled {
		mqConn, err = mq.Dial(cfg.MQ.URL, lg)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %v", err)
		}
		producer, err := mq.NewProducer(mqConn, lg)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq producer: %v", err)
		}
		publisher = producer
		consumer = mq.NewConsumer(mqConn, dispatcher, lg)
	} else {
		publisher = notify.NewDirectPublisher(dispatcher, lg)
	}

	userService := service.NewUserService(userRepo, lg)
	jwtService := service.NewJWTService(cfg, userRepo, lg)
	productService := service.NewProductService(productRepo, lg)
	orderService := service.NewOrderService(orderRepo, productRepo, publisher, cfg.Delivery.DefaultCost, lg)
	contactService := service.NewContactService(contactRepo, publisher, lg)

	click := service.NewClickClient(cfg.Payment.ClickAPIURL, cfg.Payment.ClickServiceID, cfg.Payment.ClickAuthToken)
	paymentService := service.NewPaymentService(orderRepo, click, cfg.Payment.PaymeMerchantID, cfg.Payment.FrontendURL, lg)

	// 启动期种子：管理员账号必建，示例商品按需
	seeder := seed.New(productService, userService, lg)
	if err := seeder.EnsureAdmin(cfg.Seed.AdminUsername, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
		return nil, err
	}
	if cfg.Seed.Enabled {
		if err := seeder.SeedProducts(); err != nil {
			return nil, err
		}
	}

	return &AppDependencies{
		ProductHandler: api.NewProductHandler(productService, lg),
		OrderHandler:   api.NewOrderHandler(orderService, lg),
		ContactHandler: api.NewContactHandler(contactService, lg),
		PaymentHandler: api.NewPaymentHandler(paymentService, lg),
		UserHandler:    api.NewUserHandler(userService, jwtService, lg),
		JWTService:     jwtService,
		ProductService: productService,
		Publisher:      publisher,
		Consumer:       consumer,
		MQConn:         mqConn,
	}, nil
}

// notFound 未注册路径返回JSON错误体，避免ServeMux默认的纯文本404
func notFound(w http.ResponseWriter, r *http.Request) {
	reqID := mw.RequestIDFromContext(r.Context())
	resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "not found", reqID, "")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	reqID := mw.RequestIDFromContext(r.Context())
	resp.Error(w, http.StatusMethodNotAllowed, resp.CodeInvalidParam, "method not allowed", reqID, "")
}

// setupRoutes 设置路由和中间件
func setupRoutes(cfg *config.Config, deps *AppDependencies, rateLimiter limiter.Limiter, lg *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", notFound)

	// 公共写接口按IP限流，防刷单与留言灌水；未启用时直通
	limited := func(h http.HandlerFunc) http.Handler {
		if rateLimiter == nil {
			return h
		}
		return limiter.Middleware(rateLimiter, lg)(h)
	}

	// 健康检查端点
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		reqID := mw.RequestIDFromContext(r.Context())
		data := map[string]any{
			"status":  "ok",
			"version": cfg.App.Version,
		}
		resp.OK(w, &data, reqID, "")
	})

	// 商品（公开）
	mux.HandleFunc("/api/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.ProductHandler.ListProducts(w, r)
		default:
			methodNotAllowed(w, r)
		}
	})
	mux.HandleFunc("/api/products/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/products/slug/"):
			deps.ProductHandler.GetProductBySlug(w, r)
		case strings.HasSuffix(r.URL.Path, "/rating") && r.Method == http.MethodPost:
			deps.ProductHandler.AddRating(w, r)
		case r.Method == http.MethodGet:
			deps.ProductHandler.GetProduct(w, r)
		default:
			methodNotAllowed(w, r)
		}
	})
	mux.HandleFunc("/api/categories", deps.ProductHandler.Categories)

	// 订单（公开下单与查单）
	mux.Handle("/api/orders", limited(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.OrderHandler.CreateOrder(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))
	mux.HandleFunc("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/orders/track/"):
			deps.OrderHandler.TrackOrder(w, r)
		case r.Method == http.MethodGet:
			deps.OrderHandler.LookupOrder(w, r)
		default:
			methodNotAllowed(w, r)
		}
	})

	// 留言与支付（公开）
	mux.Handle("/api/contact", limited(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.ContactHandler.CreateContact(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))
	mux.Handle("/api/payment", limited(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.PaymentHandler.InitiatePayment(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))

	// 管理端认证
	authMiddleware := mw.AuthMiddleware(deps.JWTService, lg)
	adminMiddleware := mw.RequireAdmin(lg)
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(adminMiddleware(h))
	}

	mux.HandleFunc("/api/auth/login", deps.UserHandler.Login)
	mux.HandleFunc("/api/auth/refresh", deps.UserHandler.RefreshToken)
	mux.Handle("/api/auth/profile", authMiddleware(http.HandlerFunc(deps.UserHandler.GetProfile)))

	// 商品管理
	mux.Handle("/api/admin/products", admin(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.ProductHandler.CreateProduct(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))
	mux.Handle("/api/admin/products/", admin(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/low-stock"):
			deps.ProductHandler.ListLowStock(w, r)
		case strings.HasSuffix(r.URL.Path, "/stock") && r.Method == http.MethodPost:
			deps.ProductHandler.AdjustStock(w, r)
		case r.Method == http.MethodPut:
			deps.ProductHandler.UpdateProduct(w, r)
		case r.Method == http.MethodDelete:
			deps.ProductHandler.Discontinue(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))

	// 订单管理
	mux.Handle("/api/admin/orders", admin(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.OrderHandler.ListOrders(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))
	mux.Handle("/api/admin/orders/", admin(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status") && r.Method == http.MethodPut:
			deps.OrderHandler.UpdateStatus(w, r)
		case strings.HasSuffix(r.URL.Path, "/tracking") && r.Method == http.MethodPut:
			deps.OrderHandler.AddTracking(w, r)
		case r.Method == http.MethodGet:
			deps.OrderHandler.GetOrder(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))

	// 留言管理
	mux.Handle("/api/admin/contacts", admin(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.ContactHandler.ListContacts(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))
	mux.Handle("/api/admin/contacts/", admin(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/unread-count"):
			deps.ContactHandler.UnreadCount(w, r)
		case strings.HasSuffix(r.URL.Path, "/read") && r.Method == http.MethodPut:
			deps.ContactHandler.MarkRead(w, r)
		case strings.HasSuffix(r.URL.Path, "/reply") && r.Method == http.MethodPut:
			deps.ContactHandler.ReplyContact(w, r)
		case strings.HasSuffix(r.URL.Path, "/close") && r.Method == http.MethodPut:
			deps.ContactHandler.CloseContact(w, r)
		case r.Method == http.MethodGet:
			deps.ContactHandler.GetContact(w, r)
		default:
			methodNotAllowed(w, r)
		}
	}))

	// 构建中间件链：请求进入时执行顺序为 access log → CORS → timeout → recovery → request ID
	handler := mw.RequestID(mux)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})(handler)
	handler = mw.AccessLog(lg)(handler)

	return handler
}

// runLowStockMonitor 周期巡检低库存商品并投递补货提醒
func runLowStockMonitor(ctx context.Context, products service.ProductService, publisher service.NotificationPublisher, lg *zap.Logger) {
	ticker := time.NewTicker(lowStockCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lowStock, err := products.ListLowStock()
		if err != nil {
			lg.Sugar().Errorw("low stock check failed", "err", err)
			continue
		}
		if len(lowStock) == 0 {
			continue
		}
		if err := publisher.PublishLowStock(lowStock); err != nil {
			lg.Sugar().Errorw("publish low stock alert failed", "err", err)
		}
	}
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	cacheInstance := initCache(cfg, lg)
	defer func() {
		if err := cacheInstance.Close(); err != nil {
			lg.Sugar().Errorw("failed to close cache", "err", err)
		}
	}()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	deps, err := initDependencies(bgCtx, cfg, db, cacheInstance, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize dependencies", "err", err)
	}
	if deps.MQConn != nil {
		defer func() {
			if err := deps.MQConn.Close(); err != nil {
				lg.Sugar().Errorw("failed to close rabbitmq connection", "err", err)
			}
		}()
	}

	// 后台任务：通知消费与低库存巡检
	if deps.Consumer != nil {
		go func() {
			if err := deps.Consumer.Start(bgCtx); err != nil {
				lg.Sugar().Errorw("notification consumer stopped", "err", err)
			}
		}()
	}
	go runLowStockMonitor(bgCtx, deps.ProductService, deps.Publisher, lg)

	rateLimiter := initLimiter(cfg, cacheInstance, lg)

	handler := setupRoutes(cfg, deps, rateLimiter, lg)
	startServer(cfg, handler, lg)
}
