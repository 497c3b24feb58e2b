package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/logger"
	"marketplace/internal/metrics"
	custommiddleware "marketplace/internal/middleware"
	"marketplace/internal/notify"
	"marketplace/internal/payment"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/storage"
	"marketplace/internal/transport"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client

	pubSub         *gochannel.GoChannel
	publisher      *notify.Publisher
	stopConsumer   context.CancelFunc
	consumerExited chan struct{}
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
	}

	media, err := s.mediaStore()
	if err != nil {
		return nil, err
	}

	s.startNotifications()
	s.connectRedis()

	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	profileRepo := repository.NewProfileRepository(sqlDB)
	categoryRepo := repository.NewCategoryRepository(sqlDB)
	itemRepo := repository.NewItemRepository(sqlDB)
	viewRepo := repository.NewViewEventRepository(sqlDB)
	conversationRepo := repository.NewConversationRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)

	userService := service.NewUserService(
		userRepo,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		logger,
	)
	catalogService := service.NewCatalogService(itemRepo, categoryRepo, media, logger)
	viewTracker := service.NewViewTracker(viewRepo)
	recommendations := service.NewRecommendationService(service.NewRepositorySource(profileRepo, viewRepo, itemRepo))
	profileService := service.NewProfileService(profileRepo, recommendations)
	conversationService := service.NewConversationService(itemRepo, conversationRepo, logger)
	orderService := service.NewOrderService(
		itemRepo,
		orderRepo,
		payment.FromConfig(cfg.Payment, logger),
		service.PaymentSettings{
			Currency:   cfg.Payment.Currency,
			SuccessURL: cfg.Payment.SuccessURL,
			CancelURL:  cfg.Payment.CancelURL,
		},
		s.publisher,
		logger,
	)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)

	api := chi.NewRouter()
	transport.NewUserHandler(userService, logger).RegisterRoutes(api, authMiddleware)
	transport.NewCatalogHandler(catalogService, viewTracker, logger).RegisterRoutes(api, authMiddleware, optionalAuth)
	transport.NewProfileHandler(profileService, logger).RegisterRoutes(api, authMiddleware)
	transport.NewConversationHandler(conversationService, logger).RegisterRoutes(api, authMiddleware)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(api, authMiddleware)
	transport.NewAdminHandler(catalogService, conversationService, orderService, logger).RegisterRoutes(api, authMiddleware)

	methods, err := custommiddleware.RouteMethods(api)
	if err != nil {
		return nil, fmt.Errorf("failed to collect route methods: %w", err)
	}

	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.MetricsMiddleware)
	router.Use(custommiddleware.CORSMiddleware(custommiddleware.CORSOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: methods,
		Development:    cfg.Server.IsDevelopment(),
	}))

	if s.redis != nil {
		// resolve the caller first so signed-in users get their own bucket
		router.Use(optionalAuth)
		router.Use(custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit",
		}, logger))
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", metrics.Handler())
	router.Mount("/", api)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// mediaStore returns nil when no bucket is configured. The explicit nil keeps
// a typed nil *storage.Client out of the interface.
func (s *Server) mediaStore() (service.MediaStore, error) {
	client, err := storage.New(s.config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to configure media store: %w", err)
	}
	if client == nil {
		s.logger.Warn("Media store not configured, image keys are not verified")
		return nil, nil
	}
	s.logger.Info("Media store configured", zap.String("bucket", client.Bucket()))
	return client, nil
}

func (s *Server) startNotifications() {
	s.pubSub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: s.config.Notification.Buffer},
		logger.NewWatermillAdapter(s.logger),
	)
	s.publisher = notify.NewPublisher(s.pubSub, s.config.Notification.Topic, s.logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.stopConsumer = cancel
	s.consumerExited = make(chan struct{})

	consumer := notify.NewConsumer(s.pubSub, s.config.Notification.Topic, s.logger)
	go func() {
		defer close(s.consumerExited)
		if err := consumer.Run(ctx); err != nil {
			s.logger.Error("Notification consumer stopped", zap.Error(err))
		}
	}()
}

// connectRedis leaves rate limiting off when redis is unreachable
func (s *Server) connectRedis() {
	client, err := cache.Connect(s.config.Redis)
	if err != nil {
		s.logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		return
	}
	s.redis = client
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	custommiddleware.RespondWithJSON(w, status, stats)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	var errs []error

	// drain in-flight publishes before the consumer and the pub/sub go away
	s.publisher.Wait()
	s.stopConsumer()
	<-s.consumerExited
	if err := s.pubSub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pub/sub: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	s.logger.Sync()
	return errors.Join(errs...)
}
