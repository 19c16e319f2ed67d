package router

import (
	"time"

	"stockpos/internal/config"
	"stockpos/internal/handler"
	"stockpos/internal/infra"
	"stockpos/internal/middleware"
	"stockpos/internal/model"
	"stockpos/internal/repository"
	"stockpos/internal/service"
	"stockpos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// rdb may be nil, in which case no background jobs are enqueued.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, mailCB *infra.Breaker) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)

	// Worker dispatcher. Left as a nil interface without Redis so the sale
	// engine skips alerts instead of calling a nil client.
	var alerts worker.Enqueuer
	if rdb != nil {
		alerts = worker.NewDispatcher(rdb)
	}

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	categorySvc := service.NewCategoryService(categoryRepo)
	supplierSvc := service.NewSupplierService(supplierRepo)
	productSvc := service.NewProductService(productRepo, categoryRepo, supplierRepo, movementRepo, cfg.LowStockThreshold)
	saleSvc := service.NewSaleService(saleRepo, productRepo, userRepo, movementRepo, alerts, service.SaleOptions{
		RestoreStockOnPaidDelete: cfg.RestoreStockOnPaidDelete,
		LowStockThreshold:        cfg.LowStockThreshold,
	})
	saleQuerySvc := service.NewSaleQueryService(saleRepo, cfg.StoreName)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc)
	categoriesH := handler.NewCategoriesHandler(categorySvc)
	suppliersH := handler.NewSuppliersHandler(supplierSvc)
	productsH := handler.NewProductsHandler(productSvc)
	salesH := handler.NewSalesHandler(saleSvc, saleQuerySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, mailCB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/register", middleware.LoginRateLimiter(), authH.Register)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		anyRole := middleware.RequireRole(model.RoleUser, model.RoleAdmin)
		adminOnly := middleware.RequireRole(model.RoleAdmin)

		v1.GET("/auth/me", anyRole, authH.Me)
		v1.POST("/auth/change-password", anyRole, authH.ChangePassword)

		users := v1.Group("/users", adminOnly)
		{
			users.GET("", usersH.List)
			users.POST("", usersH.Create)
			users.PUT("/:id", usersH.Update)
			users.POST("/:id/reset-password", usersH.ResetPassword)
			users.DELETE("/:id", usersH.Deactivate)
		}

		// Catalog: every authenticated user reads, admins write
		v1.GET("/categories", anyRole, categoriesH.List)
		v1.GET("/categories/:id", anyRole, categoriesH.Get)
		categories := v1.Group("/categories", adminOnly)
		{
			categories.POST("", categoriesH.Create)
			categories.PUT("/:id", categoriesH.Update)
			categories.DELETE("/:id", categoriesH.Delete)
		}

		v1.GET("/suppliers", anyRole, suppliersH.List)
		v1.GET("/suppliers/:id", anyRole, suppliersH.Get)
		suppliers := v1.Group("/suppliers", adminOnly)
		{
			suppliers.POST("", suppliersH.Create)
			suppliers.PUT("/:id", suppliersH.Update)
			suppliers.DELETE("/:id", suppliersH.Delete)
		}

		v1.GET("/products", anyRole, productsH.List)
		v1.GET("/products/low-stock", anyRole, productsH.LowStock)
		v1.GET("/products/:id", anyRole, productsH.Get)
		v1.GET("/products/:id/movements", anyRole, productsH.Movements)
		products := v1.Group("/products", adminOnly)
		{
			products.POST("", productsH.Create)
			products.PUT("/:id", productsH.Update)
			products.DELETE("/:id", productsH.Delete)
			products.PATCH("/:id/stock", productsH.AdjustStock)
		}

		sales := v1.Group("/sales", anyRole)
		{
			sales.POST("", salesH.Create)
			sales.GET("", salesH.List)
			sales.GET("/date-range", salesH.DateRange)
			sales.GET("/export", salesH.Export)
			sales.GET("/customer/:phone", salesH.ByCustomer)
			sales.GET("/payment-type/:type", salesH.ByPaymentType)
			sales.GET("/:id", salesH.Get)
			sales.GET("/:id/receipt", salesH.Receipt)
			sales.PATCH("/:id", salesH.Update)
			sales.POST("/:id/pay", salesH.Pay)
			sales.POST("/:id/cancel", salesH.Cancel)
			sales.DELETE("/:id", adminOnly, salesH.Delete)
		}
	}

	// Swagger UI, only enabled outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
