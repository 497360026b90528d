// Package httpapi exposes the booking, ledger and auth services over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/turf/internal/auth"
	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// ErrInvalidServerConfig reports missing server dependencies.
var ErrInvalidServerConfig = errors.New("invalid http server config")

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

// HealthChecker reports whether the backing store answers.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Production     bool
	ServiceName    string
	Location       *time.Location
	// GatewayKeyID is the public key the checkout widget needs alongside an order.
	GatewayKeyID string
}

// Dependencies are the services the handlers call.
type Dependencies struct {
	Bookings *booking.Service
	Ledger   *ledger.Service
	Auth     *auth.Service
	Health   HealthChecker
	Logger   *zap.Logger
}

// Server holds the handlers and their dependencies.
type Server struct {
	bookings *booking.Service
	ledger   *ledger.Service
	auth     *auth.Service
	health   HealthChecker
	logger   *zap.Logger
	config   Config
}

// NewServer validates dependencies and fills config defaults.
func NewServer(config Config, dependencies Dependencies) (*Server, error) {
	if dependencies.Bookings == nil || dependencies.Ledger == nil || dependencies.Auth == nil || dependencies.Health == nil {
		return nil, fmt.Errorf("%w: bookings, ledger, auth and health are required", ErrInvalidServerConfig)
	}
	if config.RequestTimeout < 0 {
		return nil, fmt.Errorf("%w: negative request timeout", ErrInvalidServerConfig)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.ServiceName == "" {
		config.ServiceName = "turfd"
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		bookings: dependencies.Bookings,
		ledger:   dependencies.Ledger,
		auth:     dependencies.Auth,
		health:   dependencies.Health,
		logger:   logger,
		config:   config,
	}, nil
}

// Router builds the gin engine with every route registered.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(server.recovery())
	router.Use(requestID())
	router.Use(accessLog(server.logger))
	if corsMiddleware := server.cors(); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	router.Use(otelgin.Middleware(server.config.ServiceName))
	router.Use(requestTimeout(server.config.RequestTimeout))

	router.GET("/healthz", server.handleHealth)

	staff := server.requireRoles(auth.RoleAdmin, auth.RoleManager)
	admin := server.requireRoles(auth.RoleAdmin)
	anyone := server.requireRoles(auth.RoleAdmin, auth.RoleManager, auth.RoleStaff)

	bookingRoutes := router.Group("/booking")
	bookingRoutes.GET("/slots", server.handleSlots)
	bookingRoutes.POST("", server.handleCreateBooking)
	bookingRoutes.POST("/manual", staff, server.handleManualBooking)
	bookingRoutes.GET("", staff, server.handleListBookings)
	bookingRoutes.GET("/:id", server.handleGetBooking)
	bookingRoutes.PATCH("/:id/status", staff, server.handleUpdateBookingStatus)

	paymentRoutes := router.Group("/payment")
	paymentRoutes.POST("/create-order", server.handleCreateOrder)
	paymentRoutes.POST("/verify-payment", server.handleVerifyPayment)

	transactionRoutes := router.Group("/transactions", staff)
	transactionRoutes.GET("/summary", server.handleTransactionSummary)
	transactionRoutes.GET("", server.handleListTransactions)
	transactionRoutes.POST("", server.handleCreateTransaction)
	transactionRoutes.PUT("/:id/status", server.handleUpdateTransactionStatus)

	expenseRoutes := router.Group("/expenses", staff)
	expenseRoutes.GET("/summary", server.handleExpenseSummary)
	expenseRoutes.GET("", server.handleListExpenses)
	expenseRoutes.POST("", server.handleCreateExpense)
	expenseRoutes.PUT("/:id/status", server.handleUpdateExpenseStatus)

	dashboardRoutes := router.Group("/dashboard", staff)
	dashboardRoutes.GET("/stats", server.handleDashboardStats)
	dashboardRoutes.GET("/recent-bookings", server.handleRecentBookings)
	dashboardRoutes.GET("/schedule", server.handleSchedule)

	authRoutes := router.Group("/auth")
	authRoutes.POST("/login", server.handleLogin)
	authRoutes.POST("/refresh", server.handleRefresh)
	authRoutes.GET("/me", anyone, server.handleMe)

	router.GET("/settings", server.handleGetSettings)
	router.PUT("/settings", admin, server.handleUpdateSettings)

	return router
}

func (server *Server) cors() gin.HandlerFunc {
	if len(server.config.AllowedOrigins) == 0 {
		return nil
	}
	corsConfig := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Origin", "Accept", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(server.config.AllowedOrigins) == 1 && server.config.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = server.config.AllowedOrigins
	}
	return cors.New(corsConfig)
}

func (server *Server) handleHealth(ctx *gin.Context) {
	if err := server.health.Ping(ctx.Request.Context()); err != nil {
		server.logger.Warn("health check failed", zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("turfd listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
