package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/boxoffice/internal/audit/domain"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	"github.com/smallbiznis/boxoffice/internal/observability"
	obsmiddleware "github.com/smallbiznis/boxoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/boxoffice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/boxoffice/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	checkout     *config.CheckoutConfigHolder
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	inventorySvc inventorydomain.Service
	orderSvc     orderdomain.Service
	screeningSvc screeningdomain.Service
	paymentSvc   paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Checkout     *config.CheckoutConfigHolder
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service `optional:"true"`
	InventorySvc inventorydomain.Service
	OrderSvc     orderdomain.Service
	ScreeningSvc screeningdomain.Service
	PaymentSvc   paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		checkout:     p.Checkout,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		inventorySvc: p.InventorySvc,
		orderSvc:     p.OrderSvc,
		screeningSvc: p.ScreeningSvc,
		paymentSvc:   p.PaymentSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", Principal())

	api.POST("/tiers", s.RequireUser(), s.CreateTier)
	api.GET("/tiers/:id", s.GetTierSummary)
	api.GET("/events/:id/tiers", s.ListEventTiers)
	api.POST("/tiers/:id/capacity", s.RequireUser(), s.IncreaseCapacity)
	api.GET("/tiers/:id/drift", s.RequireUser(), s.GetTierDrift)
	api.POST("/tiers/:id/reconcile", s.RequireUser(), s.ReconcileTier)
	api.POST("/tiers/:id/holds", s.CreateHold)
	api.GET("/holds/:id", s.GetHold)
	api.DELETE("/holds/:id", s.ReleaseHold)

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrder)
	api.GET("/orders/:id/tickets.pdf", s.GetOrderTicketsPDF)
	api.GET("/tickets/:code", s.GetTicket)
	api.GET("/tickets/:code/qr.png", s.GetTicketQRCode)
	api.POST("/tickets/:code/redeem", s.RequireUser(), s.RedeemTicket)
	api.POST("/tickets/:code/cancel", s.RequireUser(), s.CancelTicket)

	submissions := api.Group("/submissions", s.RequireUser())
	{
		submissions.POST("", s.CreateSubmission)
		submissions.GET("", s.ListSubmissions)
		submissions.GET("/ranked", s.ListRankedSubmissions)
		submissions.GET("/:id", s.GetSubmission)
		submissions.PATCH("/:id", s.UpdateSubmission)
		submissions.POST("/:id/reviews", s.RecordReview)
		submissions.DELETE("/:id/reviews", s.DeleteReview)
		submissions.GET("/:id/reviews", s.ListReviews)
		submissions.POST("/:id/decision", s.DecideSubmission)
	}
	api.PUT("/artists/:id/genres", s.RequireUser(), s.SetArtistGenres)
	api.PUT("/venues/:id/genres", s.RequireUser(), s.SetVenueRequiredGenres)
	api.GET("/screening/config", s.RequireUser(), s.GetScreeningConfig)
	api.PUT("/screening/config", s.RequireUser(), s.UpdateScreeningConfig)

	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", Principal(), s.RequireUser())
	admin.POST("/roles", s.AssignRole)
	admin.DELETE("/roles", s.RevokeRole)
	admin.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
