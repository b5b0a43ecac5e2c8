// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Route groups:
//   - public:   /health, /ready, /metrics, /swagger/*any, /auth/callback
//   - webhooks: /webhooks/stripe (signature-verified, no bearer token)
//   - API:      everything under cfg.APIBasePath, bearer token required
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-realty-backend/docs"
	"github.com/tbourn/go-realty-backend/internal/auth"
	"github.com/tbourn/go-realty-backend/internal/cache"
	"github.com/tbourn/go-realty-backend/internal/config"
	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/http/handlers"
	"github.com/tbourn/go-realty-backend/internal/http/middleware"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/services"
)

const (
	jsonBodyLimit = 1 << 20
	intentCost    = 3
)

// Deps are the external collaborators the router builds services from.
// Cache and Store may be nil; uploads then answer 503 and reads go to the DB.
type Deps struct {
	DB        *gorm.DB
	Verifier  auth.TokenVerifier
	Exchanger auth.CodeExchanger
	Gateway   services.PaymentGateway
	Cache     *cache.Cache
	Store     services.ObjectStore
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. gzip, CORS and security headers
//
// Inside the API group: auth, then the per-user rate limiter, then
// idempotency. Replayed answers still spend rate tokens.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) Response compression, CORS, security headers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	useCORS(r, cfg.CORS.AllowedOrigins)
	apiBase := strings.TrimRight(cfg.APIBasePath, "/")
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{
			apiBase + "/create-payment-intent",
			apiBase + "/crowdfunding-payment-intent",
			"/auth/callback",
		},
		Expose: []string{"ETag", "Retry-After"},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(deps))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := buildHandlers(deps, cfg)
	// Intent creation calls the processor, so it drains the bucket faster.
	rl := middleware.NewRateLimiter(cfg.Rate.RPS, cfg.Rate.Burst, middleware.KeyByUserOrIP(),
		middleware.WithRouteCost(joinRoute(apiBase, "/create-payment-intent"), intentCost),
		middleware.WithRouteCost(joinRoute(apiBase, "/crowdfunding-payment-intent"), intentCost),
	)

	// Sign-in redirect target (rate limited per IP, no bearer token yet).
	if deps.Exchanger != nil {
		cb := &auth.CallbackHandler{
			Exchanger:      deps.Exchanger,
			SiteURL:        cfg.Auth.SiteURL,
			ErrorPath:      cfg.Auth.ErrorPath,
			VerifierCookie: cfg.Auth.CodeVerifierCookie,
		}
		r.GET("/auth/callback", rl.Handler(), cb.Handle)
	}

	// Processor webhooks authenticate by signature.
	if h.WebhookSecret != "" {
		r.POST("/webhooks/stripe", limitBody(jsonBodyLimit), h.StripeWebhook)
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(auth.RequireUser(deps.Verifier, handlers.Fail))
	api.Use(rl.Handler())
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200, TTL: cfg.IdempotencyTTL},
		requestKeys{repo.RequestKeyStore{DB: deps.DB}},
	))

	js := api.Group("", limitBody(jsonBodyLimit))
	{
		// Payment-gated offer acceptance
		js.POST("/create-payment-intent", h.CreatePaymentIntent)
		js.POST("/accept-offer-after-payment", h.AcceptOfferAfterPayment)

		// Crowdfunding
		js.POST("/crowdfunding-payment-intent", h.CrowdfundingPaymentIntent)
		js.POST("/confirm-crowdfunding-payment", h.ConfirmCrowdfundingPayment)
		js.GET("/projects", h.ListProjects)
		js.GET("/projects/:id", h.GetProject)
		js.GET("/pledges", h.ListMyPledges)

		// Offers
		js.POST("/offers", h.CreateOffer)
		js.GET("/offers", h.ListOffers)
		js.GET("/offers/:id", h.GetOffer)
		js.POST("/offers/:id/decline", h.DeclineOffer)
		js.POST("/offers/:id/withdraw", h.WithdrawOffer)

		// Profiles, directory, registration
		js.GET("/profiles/me", h.Me)
		js.GET("/profiles/:id", h.GetProfile)
		js.GET("/directory", h.BrowseDirectory)
		js.PUT("/registration/steps/:step", h.SaveRegistrationStep)
		js.POST("/registration/complete", h.CompleteRegistration)

		// Messages
		js.POST("/messages", h.SendMessage)
		js.GET("/messages/unread", h.UnreadMessages)
		js.GET("/threads/:userId", h.Thread)
		js.POST("/threads/:userId/read", h.MarkThreadRead)

		// Feed and notifications
		js.POST("/posts", h.CreatePost)
		js.GET("/posts", h.ListPosts)
		js.DELETE("/posts/:id", h.DeletePost)
		js.GET("/notifications", h.ListNotifications)
		js.POST("/notifications/:id/read", h.MarkNotificationRead)
	}

	// Uploads get the file cap plus room for multipart framing.
	up := api.Group("", limitBody(h.MaxUploadBytes+jsonBodyLimit))
	{
		up.POST("/profiles/me/avatar", h.UploadAvatar)
		up.POST("/profiles/me/license", h.UploadLicenseDocument)
	}
}

// requestKeys adapts the idempotency table to the middleware store.
type requestKeys struct{ st repo.RequestKeyStore }

func (k requestKeys) Lookup(ctx context.Context, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
	rec, err := k.st.Lookup(ctx, scope, key, now)
	if err != nil || rec == nil {
		return nil, err
	}
	return &middleware.StoredResponse{
		Status:      rec.Status,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		Truncated:   rec.Truncated,
	}, nil
}

func (k requestKeys) Remember(ctx context.Context, scope, key string, resp middleware.StoredResponse, ttl time.Duration) error {
	return k.st.Remember(ctx, scope, key, domain.Idempotency{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		Truncated:   resp.Truncated,
	}, ttl)
}

// buildHandlers performs dependency injection: services ← repo/db/gateway.
func buildHandlers(deps Deps, cfg config.Config) *handlers.Handlers {
	profiles := services.NewProfileService(deps.DB, deps.Cache, deps.Store)
	if cfg.Cache.TTL > 0 {
		profiles.CacheTTL = cfg.Cache.TTL
	}
	if cfg.Storage.MaxUploadBytes > 0 {
		profiles.MaxUploadBytes = cfg.Storage.MaxUploadBytes
	}

	hooks := services.NewWebhookService(deps.DB)
	if cfg.IdempotencyTTL > 0 {
		hooks.DedupeTTL = cfg.IdempotencyTTL
	}

	h := handlers.New(handlers.Services{
		Payments:      services.NewPaymentService(deps.DB, deps.Gateway),
		Crowdfunding:  services.NewCrowdfundingService(deps.DB, deps.Gateway),
		Offers:        services.NewOfferService(deps.DB),
		Profiles:      profiles,
		Messages:      services.NewMessageService(deps.DB),
		Feed:          services.NewFeedService(deps.DB),
		Notifications: services.NewNotificationService(deps.DB),
		Webhooks:      hooks,
	})
	h.WebhookSecret = cfg.Payments.WebhookSecret
	h.MaxUploadBytes = profiles.MaxUploadBytes
	return h
}

// useCORS installs the CORS posture (safe defaults: allow all if none
// configured).
func useCORS(r *gin.Engine, origins []string) {
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	expose := []string{"X-Request-ID", "Content-Length", "ETag"}

	if len(origins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
		return
	}

	// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		ExposeHeaders:    expose,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// readiness reports 503 until the database (and the cache, when configured)
// answer a ping.
func readiness(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}
		ready := true

		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["db"] = "down"
			ready = false
		} else {
			checks["db"] = "ok"
		}
		if deps.Cache.Enabled() {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "down"
				ready = false
			} else {
				checks["cache"] = "ok"
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "checks": checks})
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// joinRoute builds the gin route template a path registers under base.
func joinRoute(base, p string) string {
	if base == "" {
		return p
	}
	return base + p
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
