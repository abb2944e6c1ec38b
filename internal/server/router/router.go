package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/server/handlers"
)

// Dependencies groups everything the HTTP surface is built from.
type Dependencies struct {
	Tokens        *auth.TokenManager
	Users         auth.UserLoader
	UserHandler   *handlers.UserHandler
	Products      *handlers.ProductHandler
	Sales         *handlers.SaleHandler
	Reports       *handlers.ReportHandler
	Dashboard     *handlers.DashboardHandler
	Notifications *handlers.NotificationHandler
	Metrics       *observability.Metrics
	Gatherer      prometheus.Gatherer
	ServiceName   string
	CORSOrigins   []string
}

// New wires the Gin engine with required routes and middlewares.
func New(deps Dependencies, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware(deps.Metrics))
	r.Use(cors.New(corsConfig(deps.CORSOrigins)))
	if deps.ServiceName != "" {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/v1/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/admin-login", deps.UserHandler.AdminLogin)
	authGroup.POST("/record-keepers/login", deps.UserHandler.RecordKeeperLogin)

	authed := api.Group("")
	authed.Use(auth.Middleware(deps.Tokens, deps.Users))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	users := authed.Group("/users")
	users.POST("/register-user", adminOnly, deps.UserHandler.Register)
	users.GET("", adminOnly, deps.UserHandler.List)
	users.GET("/:id", deps.UserHandler.Get)
	users.PUT("/:id", deps.UserHandler.Update)
	users.DELETE("/:id", adminOnly, deps.UserHandler.Delete)

	products := authed.Group("/products")
	products.POST("/create-product", adminOnly, deps.Products.Create)
	products.GET("/get-products", deps.Products.List)
	products.GET("/get-product/:id", deps.Products.Get)
	products.PUT("/update-product/:id", adminOnly, deps.Products.Update)
	products.DELETE("/delete-product/:id", adminOnly, deps.Products.Delete)

	sales := authed.Group("/sales")
	sales.POST("/create-sale", deps.Sales.Create)
	sales.GET("/get-sales", deps.Sales.List)
	sales.GET("/get-sale-by-product/:productId", deps.Sales.ByProduct)
	sales.PUT("/update-sale/:id", deps.Sales.Update)
	sales.DELETE("/delete-sale/:id", adminOnly, deps.Sales.Delete)

	reports := authed.Group("/reports")
	reports.POST("/generate", adminOnly, deps.Reports.Generate)
	reports.POST("/daily/run", adminOnly, deps.Reports.RunDaily)
	reports.GET("", deps.Reports.List)
	reports.GET("/:id", deps.Reports.Get)
	reports.GET("/:id/snapshot", deps.Reports.Snapshot)
	reports.DELETE("/:id", adminOnly, deps.Reports.Delete)

	authed.GET("/admin-dashboard", adminOnly, deps.Dashboard.Get)
	if deps.Notifications != nil {
		authed.POST("/notifications/whatsapp", adminOnly, deps.Notifications.SendMessage)
	}

	logger.Info("router initialized")
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func metricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
