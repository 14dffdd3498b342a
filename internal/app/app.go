package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/whiteboard/internal/controller"
	"github.com/sharetube/whiteboard/internal/repository/connection/inmemory"
	imageRedis "github.com/sharetube/whiteboard/internal/repository/image/redis"
	imageS3 "github.com/sharetube/whiteboard/internal/repository/image/s3"
	whiteboardRedis "github.com/sharetube/whiteboard/internal/repository/whiteboard/redis"
	"github.com/sharetube/whiteboard/internal/service/whiteboard"
	"github.com/sharetube/whiteboard/pkg/ctxlogger"
	"github.com/sharetube/whiteboard/pkg/discovery"
	"github.com/sharetube/whiteboard/pkg/redisclient"
	"golang.org/x/sync/errgroup"
)

const (
	SnapshotStoreRedis = "redis"
	SnapshotStoreS3    = "s3"
)

type AppConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	MaxMessageBytes  int64         `json:"max_message_bytes"`
	MaxSnapshotBytes int           `json:"max_snapshot_bytes"`
	MaxSnapshotSide  int           `json:"max_snapshot_side"`
	ListLimit        int64         `json:"list_limit"`
	ParticipantExp   time.Duration `json:"participant_exp"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout"`
	RedisPort        int           `json:"redis_port"`
	RedisHost        string        `json:"redis_host"`
	RedisPassword    string        `json:"-"`
	RedisDB          int           `json:"redis_db"`
	SnapshotStore    string        `json:"snapshot_store"`
	S3Bucket         string        `json:"s3_bucket"`
	S3Prefix         string        `json:"s3_prefix"`
	S3Region         string        `json:"s3_region"`
	S3Endpoint       string        `json:"s3_endpoint"`
	S3AccessKey      string        `json:"-"`
	S3SecretKey      string        `json:"-"`
	MDNS             bool          `json:"mdns"`
	MDNSInstance     string        `json:"mdns_instance"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535"))
	}
	if cfg.MaxSnapshotBytes < 1 {
		errs = append(errs, fmt.Errorf("max snapshot bytes must be greater than 0"))
	}
	if cfg.MaxMessageBytes < int64(cfg.MaxSnapshotBytes) {
		errs = append(errs, fmt.Errorf("max message bytes must not be lower than max snapshot bytes"))
	}
	if cfg.ParticipantExp <= 0 {
		errs = append(errs, fmt.Errorf("participant expiration must be greater than 0"))
	}
	switch cfg.SnapshotStore {
	case SnapshotStoreRedis:
	case SnapshotStoreS3:
		if cfg.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("s3 bucket is required for the s3 snapshot store"))
		}
		if cfg.S3Region == "" {
			errs = append(errs, fmt.Errorf("s3 region is required for the s3 snapshot store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown snapshot store %q", cfg.SnapshotStore))
	}

	return errors.Join(errs...)
}

func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(h), nil
}

type iImageRepo interface {
	SetImage(ctx context.Context, snapshotID, encoded string) error
	GetImage(ctx context.Context, snapshotID string) (string, error)
}

func newImageRepo(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) iImageRepo {
	if cfg.SnapshotStore == SnapshotStoreS3 {
		client := imageS3.NewClient(&imageS3.Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return imageS3.NewRepo(client, cfg.S3Bucket, cfg.S3Prefix, logger)
	}

	return imageRedis.NewRepo(rc, logger)
}

// Server is the wired room server without a listener.
type Server struct {
	handler          http.Handler
	closeConnections func()
}

func NewServer(cfg *AppConfig, rc *redis.Client, registry *prometheus.Registry, logger *slog.Logger) *Server {
	whiteboardRepo := whiteboardRedis.NewRepo(rc, cfg.ParticipantExp, logger)
	connectionRepo := inmemory.NewRepo(logger)
	whiteboardService := whiteboard.NewService(whiteboardRepo, newImageRepo(cfg, rc, logger), connectionRepo, whiteboard.Config{
		MaxSnapshotBytes: cfg.MaxSnapshotBytes,
		MaxSnapshotSide:  cfg.MaxSnapshotSide,
		ListLimit:        cfg.ListLimit,
	}, logger)
	ctrl := controller.NewController(whiteboardService, controller.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, registry, logger)

	return &Server{
		handler:          ctrl.GetMux(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		closeConnections: ctrl.CloseConnections,
	}
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// CloseConnections closes every open websocket. http.Server.Shutdown does not
// track hijacked connections.
func (s *Server) CloseConnections() {
	s.closeConnections()
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := NewLogger(cfg.LogLevel, os.Stdout)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := NewServer(cfg, rc, registry, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(srv.CloseConnections)

	if cfg.MDNS {
		mdnsServer, err := discovery.Advertise(cfg.MDNSInstance, cfg.Port)
		if err != nil {
			logger.WarnContext(ctx, "failed to advertise over mdns", "error", err)
		} else {
			defer mdnsServer.Shutdown()
			logger.InfoContext(ctx, "advertising over mdns", "service", discovery.ServiceType)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gCtx, "starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
