package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/broadcast"
	"storefront/internal/cache"
	"storefront/internal/config"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	maxRelayBackoff = 30 * time.Second
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	stores *Stores
	redis  *redis.Client
	hub    *broadcast.Hub
	relay  *broadcast.RedisRelay
	kafka  *broadcast.KafkaSink

	relayBackoff time.Duration
}

// NewServer wires stores, cache, broadcaster, services and handlers into one HTTP server.
// redisClient may be nil, which disables the product cache, the cross-instance relay and rate limiting.
func NewServer(cfg *config.Config, logger *zap.Logger, stores *Stores, redisClient *redis.Client) (*Server, error) {
	hub := broadcast.NewHub(logger.Named("hub"))
	publishers := broadcast.Multi{hub}

	var relay *broadcast.RedisRelay
	if redisClient != nil {
		relay = broadcast.NewRedisRelay(redisClient, cfg.Broadcast.RedisChannel, hub, logger.Named("relay"))
		publishers = append(publishers, relay)
	}

	var kafka *broadcast.KafkaSink
	if cfg.Kafka.Enabled() {
		sink, err := broadcast.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Named("kafka"))
		if err != nil {
			return nil, err
		}
		kafka = sink
		publishers = append(publishers, kafka)
	}

	products := stores.Products
	if redisClient != nil {
		products = cache.NewProductCache(products, redisClient, cfg.Cache.TTL, logger.Named("cache"))
	}

	// Initialize services
	catalogService := service.NewCatalogService(products, publishers, logger)
	cartService := service.NewCartService(stores.Carts, products, publishers, logger)

	// Create router
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack(logger, cfg.Server.TrustProxy)...)
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		storeHealth := stores.Health(r.Context())

		status, code := "ok", http.StatusOK
		if storeHealth["status"] != "up" {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		custommiddleware.RespondWithJSON(w, code, map[string]interface{}{
			"status":    status,
			"store":     storeHealth,
			"broadcast": hub.Stats(),
		})
	})

	router.Group(func(r chi.Router) {
		if redisClient != nil {
			r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "ratelimit:api",
			}, logger))
		}

		transport.NewProductHandler(catalogService, logger).RegisterRoutes(r)
		transport.NewCartHandler(cartService, logger).RegisterRoutes(r)
	})

	// The event stream is long-lived and stays outside the rate limit
	transport.NewEventsHandler(hub, cfg.Broadcast.Buffer, logger).RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:     router,
			IdleTimeout: time.Minute,
			ReadTimeout: 10 * time.Second,
			// No write timeout: event streams stay open indefinitely
		},
		config: cfg,
		logger: logger,
		stores: stores,
		redis:  redisClient,
		hub:    hub,
		relay:  relay,
		kafka:  kafka,

		relayBackoff: time.Second,
	}

	return server, nil
}

// Run serves HTTP and relays events until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server listening", zap.String("addr", s.Addr))
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.relay != nil {
		g.Go(func() error {
			s.runRelay(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down gracefully")

		// Close listeners first so open event streams return
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// runRelay keeps the relay subscribed until ctx is done. Relay failures are
// logged and retried with backoff; they never stop the HTTP server.
func (s *Server) runRelay(ctx context.Context) {
	delay := s.relayBackoff
	for {
		err := s.relay.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("Event relay stopped, retrying",
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRelayBackoff {
			delay = maxRelayBackoff
		}
	}
}

// Close releases every resource the server owns
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Closing server resources")

	s.hub.Close()

	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			s.logger.Error("Failed to close kafka producer", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if err := s.stores.Close(ctx); err != nil {
		s.logger.Error("Failed to close store", zap.Error(err))
		return err
	}

	return nil
}
