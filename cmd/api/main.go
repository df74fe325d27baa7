package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/extra/redisotel/v9"

	"github.com/glowmart/backend-glow/internal/auth"
	"github.com/glowmart/backend-glow/internal/cart"
	"github.com/glowmart/backend-glow/internal/catalog"
	"github.com/glowmart/backend-glow/internal/checkout"
	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/config"
	"github.com/glowmart/backend-glow/internal/db"
	"github.com/glowmart/backend-glow/internal/health"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/obs"
	"github.com/glowmart/backend-glow/internal/order"
	"github.com/glowmart/backend-glow/internal/promo"
	"github.com/glowmart/backend-glow/internal/ratelimit"
	"github.com/glowmart/backend-glow/internal/security"
	"github.com/glowmart/backend-glow/internal/wishlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", cfg.LogFormat)
	logLevel := envOrDefault("OBS_LOG_LEVEL", cfg.LogLevel)
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "glow")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "glow-api",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: cfg.TracingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, "glow-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	issuer, err := auth.NewIssuer(auth.Config{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		AccessTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token issuer")
	}
	authMiddleware := auth.Middleware{Issuer: issuer}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalog.NewStore(pool),
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc, Validate: validate}

	promoStore := promo.NewStore(pool)
	promoSvc := &promo.Service{Store: promoStore}
	promoHandler := &promo.Handler{Svc: promoSvc, Store: promoStore, Validate: validate}

	inventorySvc := &inventory.Service{Pool: pool, Tasks: asynqClient, Logger: &logger}
	inventoryHandler := &inventory.Handler{Svc: inventorySvc, Validate: validate}

	cartStore := cart.NewStore(pool)
	orderStore := order.NewStore(pool)

	cartSvc := &cart.Service{
		Store:    cartStore,
		Products: catalogSvc,
		Promos:   promoSvc,
		Pricing:  cfg.PricingOptions(),
		TTL:      cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	wishlistSvc := &wishlist.Service{Store: wishlist.NewStore(pool), Carts: cartSvc}
	wishlistHandler := &wishlist.Handler{Svc: wishlistSvc, Validate: validate}

	checkoutSvc := &checkout.Service{
		Pool:     pool,
		Carts:    cartStore,
		Orders:   orderStore,
		Promos:   promoSvc,
		Tasks:    asynqClient,
		Logger:   &logger,
		Pricing:  cfg.PricingOptions(),
		Currency: cfg.Currency,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate}

	orderHandler := &order.Handler{Store: orderStore}
	orderAdmin := &order.AdminHandler{Store: orderStore, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	slidingLimiter := ratelimit.Limiter{Client: redisClient, Prefix: "glow:rl:"}
	promoLimit := ratelimit.Handler{
		Limiter: slidingLimiter,
		Config:  ratelimit.Config{Key: clientKey, Window: cfg.PromoRateWindow, Max: cfg.PromoRateMax},
		OnError: func(err error) { logger.Error().Err(err).Msg("promo rate limiter") },
	}
	checkoutLimit := ratelimit.Handler{
		Limiter: slidingLimiter,
		Config:  ratelimit.Config{Key: clientKey, Window: cfg.CheckoutRateWin, Max: cfg.CheckoutRateMax},
		OnError: func(err error) { logger.Error().Err(err).Msg("checkout rate limiter") },
	}

	globalLimiter, err := ratelimit.NewGlobalLimiter(redisClient, cfg.GlobalRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise global rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(ratelimit.GlobalMiddleware(globalLimiter))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Anon-Id"},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{db: pool, redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.Authenticate)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/brands", catalogHandler.Brands)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.With(promoLimit.Middleware).Post("/promos/validate", promoHandler.ValidateCode)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.GetCart)
			c.Post("/{id}/quote", cartHandler.Quote)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.EnsureCart)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{itemID}", cartHandler.UpdateItem)
				g.Post("/{id}/items/{itemID}/select", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{itemID}", cartHandler.RemoveItem)
				g.Post("/{id}/promo", cartHandler.ApplyPromo)
				g.Delete("/{id}/promo", cartHandler.RemovePromo)
			})
		})

		v.With(authMiddleware.RequireAuth, idem.Middleware, checkoutLimit.Middleware).
			Post("/checkout", checkoutHandler.Create)

		v.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)
			authed.Get("/orders", orderHandler.List)
			authed.Get("/orders/{id}", orderHandler.Get)
			authed.Post("/orders/{id}/cancel", orderHandler.Cancel)

			authed.Get("/wishlist", wishlistHandler.List)
			authed.Post("/wishlist/{productID}", wishlistHandler.Add)
			authed.Delete("/wishlist/{productID}", wishlistHandler.Remove)
			authed.Post("/wishlist/{productID}/move-to-cart", wishlistHandler.MoveToCart)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(authMiddleware.RequireRole("admin"))
			admin.Post("/products", catalogHandler.AdminCreate)
			admin.Put("/products/{id}", catalogHandler.AdminUpdate)
			admin.Post("/products/{id}/stock", inventoryHandler.AdjustStock)
			admin.Get("/promos", promoHandler.List)
			admin.Post("/promos", promoHandler.Create)
			admin.Put("/promos/{code}", promoHandler.Update)
			admin.Get("/orders", orderAdmin.List)
			admin.Patch("/orders/{id}/status", orderAdmin.UpdateStatus)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	<-shutdownDone
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// clientKey buckets rate limit counters by authenticated user when available,
// falling back to the remote address.
func clientKey(r *http.Request) string {
	if uid, ok := common.UserID(r.Context()); ok {
		return "u:" + uid
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return "ip:" + host
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
