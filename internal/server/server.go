package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/taiwoajasa245/verse-collections-api/internal/collection"
	"github.com/taiwoajasa245/verse-collections-api/internal/database"
	"github.com/taiwoajasa245/verse-collections-api/internal/savelock"
	"github.com/taiwoajasa245/verse-collections-api/pkg/config"
)

// lockTTL bounds how long a crashed instance can hold a collection's save lock.
const lockTTL = 30 * time.Second

type Server struct {
	port     string
	db       database.Service
	handler  http.Handler
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	service  *collection.CollectionService
	redis    *savelock.Redis
}

// NewServer constructs your app server with all dependencies injected.
func NewServer(db database.Service, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	stats := db.Health()
	if stats["status"] != "up" {
		return nil, fmt.Errorf("database connection failed: %s", stats["error"])
	}
	logger.Info("database connection successful", zap.String("open_connections", stats["open_connections"]))

	var locker savelock.Locker = savelock.NewLocal()
	var redisLock *savelock.Redis
	if cfg.RedisURL != "" {
		rl, err := savelock.NewRedis(cfg.RedisURL, lockTTL, logger)
		if err != nil {
			return nil, err
		}
		locker, redisLock = rl, rl
		logger.Info("using redis for collection save locks")
	} else {
		logger.Info("using in-process collection save locks")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	limits := collection.Limits{
		MaxGroupsPerCollection: cfg.MaxGroupsPerCollection,
		MaxCollectionsPerUser:  cfg.MaxCollectionsPerUser,
	}
	service := collection.NewCollectionService(
		collection.NewRepository(db),
		locker,
		limits,
		collection.NewMetrics(registry),
		logger.Named("collection"),
	)

	s := &Server{
		port:     cfg.Port,
		db:       db,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		service:  service,
		redis:    redisLock,
	}

	s.handler = s.RegisterRoutes()
	return s, nil
}

// HTTPServer returns the actual *http.Server instance
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Close releases the redis connection, if any. The database is owned by the caller.
func (s *Server) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
