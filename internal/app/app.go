package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/adapter/cache"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/email"
	grpcadapter "github.com/angola031/Ecoswap-sub003/internal/adapter/grpc"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/handler"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/http/router"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/identity"
	natsadapter "github.com/angola031/Ecoswap-sub003/internal/adapter/messaging/nats"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/notify"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/repository/mongodb"
	"github.com/angola031/Ecoswap-sub003/internal/adapter/storage/s3"
	"github.com/angola031/Ecoswap-sub003/internal/config"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"github.com/angola031/Ecoswap-sub003/internal/platform/tracer"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// App owns every long-lived resource of the service.
type App struct {
	cfg *config.Config
	log *logger.Logger

	tp          *sdktrace.TracerProvider
	mongoClient *mongo.Client
	redisClient *redis.Client
	publisher   *natsadapter.Publisher

	httpServer    *http.Server
	metricsServer *http.Server
	grpcServer    *grpcadapter.Server
}

// New connects the backing services and assembles the HTTP API. MongoDB is
// required; Redis, NATS, SMTP and S3 are optional and only logged when absent.
func New(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: appLogger}
	a.tp = tracer.InitTracer(cfg.ServiceName, cfg.Tracing.OTLPEndpoint, appLogger)

	m := metrics.NewMetricsManager(cfg.ServiceName)

	appLogger.Info("Connecting to MongoDB...", zap.String("database", cfg.Mongo.Database))
	mongoClient, err := mongodb.NewMongoDBConnection(&cfg.Mongo)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	a.mongoClient = mongoClient
	db := mongoClient.Database(cfg.Mongo.Database)
	appLogger.Info("Successfully connected and pinged MongoDB.")

	retry := mongodb.RetryPolicy{
		Attempts:        cfg.Retry.ReadAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}

	convRepo, err := mongodb.NewConversationRepository(db, retry, appLogger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize ConversationRepository: %w", err)
	}
	msgRepo, err := mongodb.NewMessageRepository(db, retry, appLogger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize MessageRepository: %w", err)
	}
	proposalRepo, err := mongodb.NewProposalRepository(db, retry, appLogger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize ProposalRepository: %w", err)
	}
	exchangeRepo, err := mongodb.NewExchangeRepository(db, retry, appLogger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize ExchangeRepository: %w", err)
	}
	ratingRepo, err := mongodb.NewRatingRepository(db, retry, appLogger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize RatingRepository: %w", err)
	}
	users := mongodb.NewUserDirectory(db, retry, appLogger)
	appLogger.Info("Repositories initialized.")

	var products domain.ProductCatalog = mongodb.NewProductCatalog(db, retry, appLogger)
	if redisClient, err := cache.NewClient(ctx, cfg.Redis); err != nil {
		appLogger.Warn("Redis unavailable, product lookups are not cached", zap.String("address", cfg.Redis.Address), zap.Error(err))
	} else {
		a.redisClient = redisClient
		products = cache.NewProductCatalog(products, redisClient, cfg.Redis.ProductTTL, appLogger)
		appLogger.Info("Redis product cache enabled.", zap.Duration("ttl", cfg.Redis.ProductTTL))
	}

	var channels []notify.Channel
	if publisher, err := natsadapter.NewPublisher(cfg.NATS, appLogger, cfg.ServiceName); err != nil {
		appLogger.Warn("NATS unavailable, events will not be published", zap.Error(err))
	} else {
		a.publisher = publisher
		channels = append(channels, notify.Channel{Name: "nats", Notifier: publisher})
	}
	if cfg.SMTP.Host != "" {
		sender, err := email.NewSMTPSender(cfg.SMTP, appLogger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize SMTP sender: %w", err)
		}
		channels = append(channels, notify.Channel{Name: "email", Notifier: email.NewNotifier(sender, users, appLogger)})
	} else {
		appLogger.Info("SMTP host not configured, e-mail notifications disabled.")
	}
	notifier := notify.NewFanout(m, appLogger, channels...)
	appLogger.Info("Notification channels configured", zap.Int("channels", notifier.Len()))

	var storage domain.AttachmentStorage
	if cfg.S3.Endpoint != "" {
		s3Storage, err := s3.NewS3Storage(ctx, cfg.S3, appLogger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		storage = s3Storage
	} else {
		appLogger.Info("S3 endpoint not configured, attachment uploads disabled.")
	}

	conversations := usecase.NewConversationUsecase(convRepo, msgRepo, products, storage, notifier, m, appLogger)
	proposals := usecase.NewProposalUsecase(proposalRepo, exchangeRepo, convRepo, products, notifier, m, appLogger, usecase.ProposalOptions{
		MaxCounterChain:        cfg.Proposal.MaxCounterChain,
		DonationRejectAttempts: cfg.Proposal.DonationRejectTry,
	})
	exchanges := usecase.NewExchangeUsecase(exchangeRepo, proposalRepo, products, conversations, notifier, m, appLogger, cfg.Proposal.DonationRejectTry)
	ratings := usecase.NewRatingUsecase(ratingRepo, exchangeRepo, notifier, appLogger)
	donations := usecase.NewDonationUsecase(products, proposalRepo, exchangeRepo, conversations, proposals, appLogger)
	appLogger.Info("Usecases initialized.")

	resolver := identity.NewJWTResolver(cfg.Auth.JWTSecret, users, appLogger)
	mux := router.New(cfg.ServiceName, router.Handlers{
		Conversations: handler.NewConversationHandler(conversations, proposals, cfg.HTTP.MaxUploadBytes, m, appLogger),
		Proposals:     handler.NewProposalHandler(proposals, m, appLogger),
		Exchanges:     handler.NewExchangeHandler(exchanges, ratings, m, appLogger),
		Users:         handler.NewUserHandler(ratings, donations, m, appLogger),
	}, resolver, m, appLogger)

	a.httpServer = &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	a.metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, appLogger, m.Registry)
	a.grpcServer = grpcadapter.NewGRPCServer(cfg.ServiceName, appLogger)
	return a, nil
}

// Run serves HTTP, gRPC health and metrics until ctx is cancelled or one of
// them fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", ":"+a.cfg.GRPC.Port)
	if err != nil {
		a.Close(context.Background())
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", a.cfg.GRPC.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("Starting HTTP server", zap.String("port", a.cfg.HTTP.Port))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.log.Info("Starting gRPC health server", zap.String("port", a.cfg.GRPC.Port))
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	if a.metricsServer != nil {
		g.Go(func() error {
			a.log.Info("Starting Prometheus metrics server", zap.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	a.grpcServer.SetServing(true)

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down servers...")
		a.grpcServer.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if a.metricsServer != nil {
			if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		a.grpcServer.Shutdown()
		a.Close(shutdownCtx)
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Close releases the backing connections. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("Error closing Redis client", zap.Error(err))
		}
		a.redisClient = nil
	}
	if a.mongoClient != nil {
		disconnectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.mongoClient.Disconnect(disconnectCtx); err != nil {
			a.log.Error("Error disconnecting from MongoDB", zap.Error(err))
		} else {
			a.log.Info("MongoDB connection closed.")
		}
		a.mongoClient = nil
	}
	if a.tp != nil {
		if err := a.tp.Shutdown(ctx); err != nil {
			a.log.Error("Error shutting down tracer provider", zap.Error(err))
		}
		a.tp = nil
	}
}
