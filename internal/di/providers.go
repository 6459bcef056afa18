package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	domsvc "MarketSignal/internal/domain/service"
	"MarketSignal/internal/handler/api"
	internalrepo "MarketSignal/internal/repository"
	"MarketSignal/internal/services/headlines"
	"MarketSignal/internal/services/sentiment"
	"MarketSignal/internal/usecase"
	"MarketSignal/pkg/cache"
	pkgch "MarketSignal/pkg/clickhouse"
	"MarketSignal/pkg/config"
	xhttp "MarketSignal/pkg/http"
	pkgkafka "MarketSignal/pkg/kafka"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/metrics"
	"MarketSignal/pkg/server"
)

// ProvideRegistry creates the Prometheus registry shared by every component.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger and, when enabled, attaches the
// error collector publishing to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))

	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the journal
// schema. Returns nil when no host is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.ClickHouse.Host == "" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(client.Database())); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache creates the cache: in-process memory, or memory in front of Redis.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mem := cache.NewMemoryCache(cache.WithMemoryMaxSize(4096), cache.WithMemoryCleanup(time.Minute))
		return mem, func() { _ = mem.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	layered := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(time.Minute))
	return layered, func() { _ = layered.Close() }, nil
}

// ProvideClassifier creates the HTTP sentiment classifier behind the verdict cache.
func ProvideClassifier(cfg *config.Config, c cache.Service) domsvc.Classifier {
	base := sentiment.NewHTTPServiceBase(cfg.Classifier.URL, cfg.Classifier.Timeout)
	return sentiment.NewCachedClassifier(sentiment.NewHTTPClassifier(base, cfg.Classifier.Attempts), c, cfg.Classifier.CacheTTL)
}

// ProvideHeadlineSource creates the HTML or RSS headline source.
func ProvideHeadlineSource(cfg *config.Config) repository.HeadlineSource {
	client := xhttp.NewClient(
		xhttp.WithTimeout(10*time.Second),
		xhttp.WithUserAgent(cfg.Headlines.UserAgent),
	)
	opts := headlines.Options{
		Selector:  cfg.Headlines.Selector,
		MinLength: cfg.Headlines.MinLength,
		Limit:     cfg.Headlines.Limit,
	}
	if cfg.Headlines.Source == "rss" {
		return headlines.NewRSSSource(cfg.Headlines.URL, client, opts)
	}
	return headlines.NewHTMLSource(cfg.Headlines.URL, client, opts)
}

// ProvidePriceTable creates the static daily-move table.
func ProvidePriceTable(cfg *config.Config) repository.PriceTable {
	return internalrepo.NewStaticPriceTable(cfg.Signal.Indices, cfg.Signal.PriceChange, cfg.Signal.DefaultChange)
}

// ProvideJournal selects the signal journal backend.
func ProvideJournal(cfg *config.Config, producer *pkgkafka.Producer, ch *pkgch.Client, l *applogger.Logger) repository.SignalJournal {
	switch cfg.Journal.Backend {
	case "kafka":
		return internalrepo.NewKafkaJournal(producer, cfg.Kafka.Topic)
	case "clickhouse":
		return internalrepo.NewClickHouseJournal(ch.DB(), ch.Database(), l)
	default:
		return internalrepo.NopJournal{}
	}
}

// ProvideHistory returns the queryable journal, or nil without ClickHouse.
func ProvideHistory(ch *pkgch.Client, l *applogger.Logger) repository.SignalHistory {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseJournal(ch.DB(), ch.Database(), l)
}

// ProvideDashboard creates the dashboard use case.
func ProvideDashboard(
	cfg *config.Config,
	source repository.HeadlineSource,
	classifier domsvc.Classifier,
	prices repository.PriceTable,
	journal repository.SignalJournal,
	history repository.SignalHistory,
	m repository.Metrics,
	c cache.Service,
	l *applogger.Logger,
) *usecase.Dashboard {
	return usecase.NewDashboard(source, classifier, prices, journal, history, m, c, l, usecase.DashboardConfig{
		Thresholds: models.Thresholds{
			Price:     cfg.Signal.PriceThreshold,
			Sentiment: cfg.Signal.SentimentThreshold,
		},
		DefaultIndex: firstOr(cfg.Signal.Indices, "S&P 500"),
		HeadlineTTL:  cfg.Headlines.CacheTTL,
		Workers:      cfg.Classifier.Workers,
	})
}

func firstOr(xs []string, def string) string {
	if len(xs) > 0 {
		return xs[0]
	}
	return def
}

// ProvideLiveHub creates the WebSocket fan-out hub.
func ProvideLiveHub(l *applogger.Logger) *api.LiveHub {
	return api.NewLiveHub(l)
}

// ProvideRefreshScheduler creates the periodic headline refresh.
func ProvideRefreshScheduler(cfg *config.Config, dash *usecase.Dashboard, c cache.Service, out usecase.Broadcaster, l *applogger.Logger) *usecase.RefreshScheduler {
	return usecase.NewRefreshScheduler(cfg.Headlines.Refresh, dash, c, out, l)
}

// ProvideDashboardHandler creates the HTTP handler.
func ProvideDashboardHandler(l *applogger.Logger, dash *usecase.Dashboard, hub *api.LiveHub) xhttp.Handler {
	return api.NewDashboardHandler(l, dash, hub)
}

// ProvideHTTPServer creates the Echo server. Reachable backends are reported on /healthz.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger, reg *prometheus.Registry, ch *pkgch.Client, c cache.Service) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(true),
		xhttp.WithLogger(l),
		xhttp.WithRegistry(reg),
		xhttp.WithRateLimit(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst),
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	if p, ok := c.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, xhttp.WithHealthCheck("redis", p.Ping))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideKafkaConsumer creates the journal consumer. Returns nil unless enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideJournalHandler stores consumed signal events in ClickHouse. Returns nil unless the consumer is enabled.
func ProvideJournalHandler(cfg *config.Config, ch *pkgch.Client, m repository.Metrics, l *applogger.Logger) *usecase.JournalHandler {
	if !cfg.Kafka.Consumer.Enabled || ch == nil {
		return nil
	}
	return usecase.NewJournalHandler(cfg.Kafka.Topic, internalrepo.NewClickHouseJournal(ch.DB(), ch.Database(), l), m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *usecase.RefreshScheduler,
	hub *api.LiveHub,
	consumer *pkgkafka.Consumer,
	jh *usecase.JournalHandler,
) *server.App {
	app := server.New(cfg, l, httpServer, scheduler, hub)
	if consumer != nil && jh != nil {
		app.SetConsumer(consumer, jh)
	}
	return app
}
