// Package gateway is the HTTP API of KhanPan: recommendation, order ledger,
// authentication and the signed-in user's order session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/example/khanpan/docs"
	"github.com/example/khanpan/pkg/auth"
	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/metrics"
	"github.com/example/khanpan/pkg/recommend"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Recommender answers a chat turn. On failure it still returns the text to
// show the user.
type Recommender interface {
	Recommend(ctx context.Context, text string, history []recommend.Message) (string, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Ledger      ledger.Ledger
	Auth        *auth.Service
	Recommender Recommender
	Menu        recommend.MenuSource // optional, enables menu selections on /api/me/order
	Metrics     *metrics.Metrics     // optional
	Checks      map[string]HealthCheck
}

type Gateway struct {
	config *config.Config
	logger *zap.Logger
	router *gin.Engine
	server *http.Server

	ledger      ledger.Ledger
	auth        *auth.Service
	recommender Recommender
	menu        recommend.MenuSource
	metrics     *metrics.Metrics
	checks      map[string]HealthCheck
}

func NewGateway(cfg *config.Config, logger *zap.Logger, deps Deps) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware(logger))
	router.Use(loggerMiddleware(logger))
	router.Use(corsMiddleware())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	return &Gateway{
		config:      cfg,
		logger:      logger,
		router:      router,
		ledger:      deps.Ledger,
		auth:        deps.Auth,
		recommender: deps.Recommender,
		menu:        deps.Menu,
		metrics:     deps.Metrics,
		checks:      deps.Checks,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/", g.index)
	g.router.GET("/health", g.health)
	g.router.GET("/version", g.version)
	if g.metrics != nil {
		g.router.GET("/metrics", g.metrics.GinHandler())
	}

	api := g.router.Group("/api")
	{
		api.POST("/food-recommendation", g.foodRecommendation)

		api.POST("/order", g.createOrder)
		api.GET("/orders/:userId", g.listOrders)
		api.GET("/orders/current/:userId", g.currentOrder)
		api.DELETE("/order/:orderId", g.deleteOrder)
		api.PATCH("/order/:orderId/deliver", g.markDelivered)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", g.signup)
			authGroup.POST("/verify-otp", g.verifyOTP)
			authGroup.POST("/login", g.login)
			authGroup.POST("/forgot-password", g.forgotPassword)
			authGroup.POST("/verify-reset-otp", g.verifyResetOTP)
			authGroup.POST("/reset-password", g.resetPassword)
			authGroup.GET("/validate", g.validate)
		}

		me := api.Group("/me", g.requireUser)
		{
			me.GET("/order", g.sessionState)
			me.POST("/order", g.sessionPlace)
			me.PUT("/order", g.sessionModify)
			me.DELETE("/order", g.sessionCancel)
			me.GET("/orders", g.sessionHistory)
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start blocks serving HTTP until Shutdown is called.
func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Use route /api/food-recommendation with POST method"})
}

func (g *Gateway) version(c *gin.Context) {
	c.String(http.StatusOK, g.config.Gateway.Version)
}

// health reports every dependency check; any failure turns the response 503.
func (g *Gateway) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	checks := make(gin.H, len(g.checks))
	for name, check := range g.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
