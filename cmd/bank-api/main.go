package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bank-transfer/accounts"
	"bank-transfer/accounts/application"
	"bank-transfer/accounts/domain"
	"bank-transfer/accounts/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sink domain.Notifier = infra.LogNotifier{Logger: logger.Named("notify")}
	if cfg.notifyRedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.notifyRedisAddr,
			Password: cfg.notifyRedisPassword,
			DB:       cfg.notifyRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			logger.Fatal("redis notify ping error", zap.Error(err))
		}

		sink = infra.MultiNotifier{
			sink,
			infra.NewRedisNotifier(rdb,
				infra.WithNotifyStream(cfg.notifyStream),
				infra.WithNotifyPrefix(cfg.notifyPrefix),
				infra.WithNotifyTTL(cfg.notifyTTL),
			),
		}
	}

	if cfg.notifyRateRPS > 0 {
		throttled := infra.NewThrottledNotifier(sink, cfg.notifyRateRPS, cfg.notifyRateBurst)
		defer throttled.Close()
		sink = throttled
	}

	async := infra.NewAsyncNotifier(sink, logger.Named("notify"),
		infra.WithQueueSize(cfg.notifyQueueSize),
		infra.WithWorkers(cfg.notifyWorkers),
	)

	store := infra.NewMemoryAccountStore()
	svc := &application.TransferService{
		Store:       store,
		Locks:       infra.NewLockRegistry(),
		Notifier:    async,
		Logger:      logger.Named("transfer"),
		LockTimeout: cfg.lockTimeout,
	}

	h := accounts.NewHandler(svc, logger)
	h.Count = store.Len

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           accounts.LoggingMiddleware(logger.Named("http"))(h.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("bank api listening",
		zap.String("addr", cfg.listenAddr),
		zap.Duration("lockTimeout", cfg.lockTimeout),
	)
	logger.Info("notify config",
		zap.Bool("redis", cfg.notifyRedisEnabled),
		zap.String("stream", cfg.notifyStream),
		zap.Float64("rateRPS", cfg.notifyRateRPS),
		zap.Int("rateBurst", cfg.notifyRateBurst),
		zap.Int("queueSize", cfg.notifyQueueSize),
		zap.Int("workers", cfg.notifyWorkers),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}

	// entrega o que ficou na fila antes de sair
	async.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

type config struct {
	listenAddr  string
	lockTimeout time.Duration
	logLevel    string

	notifyRedisEnabled  bool
	notifyRedisAddr     string
	notifyRedisPassword string
	notifyRedisDB       int
	notifyStream        string
	notifyPrefix        string
	notifyTTL           time.Duration
	notifyQueueSize     int
	notifyWorkers       int
	notifyRateRPS       float64
	notifyRateBurst     int
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	// 0 = espera indefinida pelos locks das contas
	cfg.lockTimeout = getenvDurationDefault("LOCK_TIMEOUT", 5*time.Second)
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")

	cfg.notifyRedisEnabled = getenvBoolDefault("NOTIFY_REDIS_ENABLED", false)
	cfg.notifyRedisAddr = getenvDefault("NOTIFY_REDIS_ADDR", "")
	cfg.notifyRedisPassword = os.Getenv("NOTIFY_REDIS_PASSWORD")
	cfg.notifyRedisDB = getenvIntDefault("NOTIFY_REDIS_DB", 0)
	cfg.notifyStream = getenvDefault("NOTIFY_STREAM", "transfer.notifications")
	cfg.notifyPrefix = getenvDefault("NOTIFY_PREFIX", "transfer:notify")
	cfg.notifyTTL = getenvDurationDefault("NOTIFY_TTL", 24*time.Hour)
	cfg.notifyQueueSize = getenvIntDefault("NOTIFY_QUEUE_SIZE", 1024)
	cfg.notifyWorkers = getenvIntDefault("NOTIFY_WORKERS", 2)
	cfg.notifyRateRPS = getenvFloatDefault("NOTIFY_RATE_RPS", 0)
	cfg.notifyRateBurst = getenvIntDefault("NOTIFY_RATE_BURST", 10)

	if cfg.notifyRedisEnabled && strings.TrimSpace(cfg.notifyRedisAddr) == "" {
		return config{}, errors.New("NOTIFY_REDIS_ADDR is required when NOTIFY_REDIS_ENABLED=true")
	}
	if cfg.lockTimeout < 0 {
		return config{}, errors.New("LOCK_TIMEOUT must be >= 0")
	}
	if cfg.notifyQueueSize <= 0 {
		return config{}, errors.New("NOTIFY_QUEUE_SIZE must be > 0")
	}
	if cfg.notifyWorkers <= 0 {
		return config{}, errors.New("NOTIFY_WORKERS must be > 0")
	}
	if cfg.notifyRateRPS < 0 {
		return config{}, errors.New("NOTIFY_RATE_RPS must be >= 0")
	}
	if cfg.notifyRateRPS > 0 && cfg.notifyRateBurst <= 0 {
		return config{}, errors.New("NOTIFY_RATE_BURST must be > 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
