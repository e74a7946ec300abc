package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/lexdraft/internal/analytics"
	analyticsdomain "github.com/smallbiznis/lexdraft/internal/analytics/domain"
	"github.com/smallbiznis/lexdraft/internal/audit"
	auditdomain "github.com/smallbiznis/lexdraft/internal/audit/domain"
	"github.com/smallbiznis/lexdraft/internal/auth"
	authdomain "github.com/smallbiznis/lexdraft/internal/auth/domain"
	"github.com/smallbiznis/lexdraft/internal/auth/session"
	"github.com/smallbiznis/lexdraft/internal/authorization"
	"github.com/smallbiznis/lexdraft/internal/checkout"
	checkoutdomain "github.com/smallbiznis/lexdraft/internal/checkout/domain"
	"github.com/smallbiznis/lexdraft/internal/commission"
	commissiondomain "github.com/smallbiznis/lexdraft/internal/commission/domain"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/letter"
	letterdomain "github.com/smallbiznis/lexdraft/internal/letter/domain"
	"github.com/smallbiznis/lexdraft/internal/observability"
	obsmiddleware "github.com/smallbiznis/lexdraft/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/lexdraft/internal/observability/metrics"
	obstracing "github.com/smallbiznis/lexdraft/internal/observability/tracing"
	"github.com/smallbiznis/lexdraft/internal/pricing"
	pricingdomain "github.com/smallbiznis/lexdraft/internal/pricing/domain"
	"github.com/smallbiznis/lexdraft/internal/profile"
	profiledomain "github.com/smallbiznis/lexdraft/internal/profile/domain"
	"github.com/smallbiznis/lexdraft/internal/providers"
	"github.com/smallbiznis/lexdraft/internal/ratelimit"
	"github.com/smallbiznis/lexdraft/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/lexdraft/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	session.Module,
	profile.Module,
	commission.Module,
	subscription.Module,
	pricing.Module,
	checkout.Module,
	letter.Module,
	analytics.Module,
	providers.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
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
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authsvc         authdomain.Service
	sessions        *session.Manager
	profileSvc      profiledomain.Service
	letterSvc       letterdomain.Service
	pricingSvc      pricingdomain.Service
	checkoutSvc     checkoutdomain.Service
	subscriptionSvc subscriptiondomain.Service
	commissionSvc   commissiondomain.Service
	analyticsSvc    analyticsdomain.Service
	auditSvc        auditdomain.Service
	limiter         *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	ProfileSvc      profiledomain.Service
	LetterSvc       letterdomain.Service
	PricingSvc      pricingdomain.Service
	CheckoutSvc     checkoutdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	CommissionSvc   commissiondomain.Service
	AnalyticsSvc    analyticsdomain.Service
	AuditSvc        auditdomain.Service
	Limiter         *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		profileSvc:      p.ProfileSvc,
		letterSvc:       p.LetterSvc,
		pricingSvc:      p.PricingSvc,
		checkoutSvc:     p.CheckoutSvc,
		subscriptionSvc: p.SubscriptionSvc,
		commissionSvc:   p.CommissionSvc,
		analyticsSvc:    p.AnalyticsSvc,
		auditSvc:        p.AuditSvc,
		limiter:         p.Limiter,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.RateLimit(ratelimit.PolicyAuth), s.Signup)
	auth.POST("/login", s.RateLimit(ratelimit.PolicyAuth), s.Login)
	auth.POST("/admin/login", s.RateLimit(ratelimit.PolicyAuth), s.AdminLogin)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/plans", s.ListPlans)

	// Signed by the payment provider, not by a session.
	api.POST("/payments/webhooks/stripe", s.HandleStripeWebhook)

	authed := api.Group("", s.AuthRequired())

	// -------- Letters --------
	authed.POST("/letters", s.CreateDraftLetter)
	authed.POST("/letters/generate", s.RateLimit(ratelimit.PolicyGenerate), s.GenerateLetter)
	authed.GET("/letters", s.ListLetters)
	authed.GET("/letters/:id", s.GetLetter)
	authed.POST("/letters/:id/submit", s.SubmitLetter)
	authed.POST("/letters/:id/complete", s.CompleteLetter)
	authed.POST("/letters/:id/send-email", s.SendLetterEmail)
	authed.GET("/letters/:id/audit", s.GetLetterAudit)
	authed.GET("/letters/:id/pdf", s.DownloadLetterPDF)

	// -------- Checkout --------
	authed.POST("/checkout", s.StartCheckout)
	authed.POST("/checkout/verify", s.VerifyPayment)
	authed.GET("/subscriptions", s.ListSubscriptions)

	// -------- Employee --------
	authed.GET("/commissions", s.ListCommissions)
	authed.GET("/commissions/summary", s.GetOwnCommissionSummary)
	authed.GET("/coupons", s.ListCoupons)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.Use(s.AuthRequired())
	admin.Use(s.AdminRequired())

	// -------- Review queue --------
	admin.GET("/letters", s.ListReviewLetters)
	admin.GET("/letters/:id", s.GetLetter)
	admin.POST("/letters/:id/start-review", s.StartLetterReview)
	admin.PUT("/letters/:id/draft", s.UpdateLetterDraft)
	admin.POST("/letters/:id/approve", s.ApproveLetter)
	admin.POST("/letters/:id/reject", s.RejectLetter)
	admin.POST("/letters/:id/complete", s.CompleteLetter)
	admin.GET("/letters/:id/audit", s.GetLetterAudit)
	admin.GET("/letters/:id/pdf", s.DownloadLetterPDF)

	// -------- Users --------
	admin.GET("/users", s.ListUsers)
	admin.POST("/users/promote", s.PromoteUser)
	admin.GET("/super-users", s.ListSuperUsers)
	admin.POST("/super-users", s.SetSuperUser)

	// -------- Commissions --------
	admin.GET("/commissions", s.ListCommissions)
	admin.POST("/commissions/:id/mark-paid", s.MarkCommissionPaid)
	admin.GET("/employees/:id/commission-summary", s.GetEmployeeCommissionSummary)

	admin.GET("/analytics", s.GetAnalytics)
	admin.GET("/security-logs", s.ListSecurityLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
