package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/northbridge-data/analytics-join/internal/forwarder"
	"github.com/northbridge-data/analytics-join/internal/ingest"
	"github.com/northbridge-data/analytics-join/internal/join"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultMetricsAddr            = ":2112"
	defaultMetricsShutdownTimeout = 10 * time.Second
)

// BuildInfo is a Prometheus gauge for build metadata.
var BuildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: join.MetricsNamespace,
		Name:      "build_info",
		Help:      "Build information for analytics-join",
	},
	[]string{"version", "commit", "date"},
)

func init() {
	prometheus.MustRegister(BuildInfo)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start metrics server
	var metricsErrCh <-chan error
	if cfg.MetricsAddr != "" {
		BuildInfo.WithLabelValues(version, commit, date).Set(1)
		metricsErrCh = startMetricsServer(ctx, log, cfg.MetricsAddr, defaultMetricsShutdownTimeout)
	}

	// Create metrics
	joinerMetrics := join.NewJoinerMetrics(prometheus.DefaultRegisterer)
	workerMetrics := ingest.NewWorkerMetrics(prometheus.DefaultRegisterer)
	forwarderMetrics := forwarder.NewForwarderMetrics(prometheus.DefaultRegisterer)

	// One joiner shared by both streams
	joiner := join.NewJoiner(
		join.WithLogger(log),
		join.WithJoinerMetrics(joinerMetrics),
	)

	fwd, err := forwarder.New(
		forwarder.WithBaseURL(cfg.SinkBaseURL),
		forwarder.WithPath(cfg.SinkPath),
		forwarder.WithLogger(log),
		forwarder.WithForwarderMetrics(forwarderMetrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create forwarder: %w", err)
	}

	brokerURL := cfg.BrokerURL()

	customerWorker, err := newWorker(log, workerMetrics, brokerURL, cfg.Prefetch,
		cfg.CustomerQueue, "customer", ingest.CustomerHandler(joiner), fwd)
	if err != nil {
		return err
	}
	inventoryWorker, err := newWorker(log, workerMetrics, brokerURL, cfg.Prefetch,
		cfg.InventoryQueue, "product", ingest.ProductHandler(joiner), fwd)
	if err != nil {
		return err
	}

	log.Info("starting analytics-join",
		"customer_queue", cfg.CustomerQueue,
		"inventory_queue", cfg.InventoryQueue,
		"sink", cfg.SinkBaseURL+cfg.SinkPath,
		"prefetch", cfg.Prefetch,
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- customerWorker.Run(runCtx) }()
	go func() { errCh <- inventoryWorker.Run(runCtx) }()

	for running := 2; running > 0; {
		select {
		case err := <-errCh:
			running--
			if err != nil {
				stop()
				return fmt.Errorf("ingestion loop error: %w", err)
			}
		case err, ok := <-metricsErrCh:
			if ok && err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			metricsErrCh = nil
		}
	}

	log.Info("analytics-join stopped")
	return nil
}

func newWorker(log *slog.Logger, metrics *ingest.WorkerMetrics, brokerURL string, prefetch int,
	queue, stream string, handler ingest.HandleFunc, fwd *forwarder.Forwarder) (*ingest.Worker, error) {
	consumer, err := ingest.NewConsumer(
		ingest.WithBrokerURL(brokerURL),
		ingest.WithQueue(queue),
		ingest.WithPrefetch(prefetch),
		ingest.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for queue %q: %w", queue, err)
	}
	return ingest.NewWorker(
		ingest.WithStream(stream),
		ingest.WithSource(consumer),
		ingest.WithHandler(handler),
		ingest.WithForwarder(fwd),
		ingest.WithWorkerLogger(log),
		ingest.WithWorkerMetrics(metrics),
	), nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}

func startMetricsServer(ctx context.Context, log *slog.Logger, addr string, shutdownTimeout time.Duration) <-chan error {
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			errCh <- err
			return
		}
		defer listener.Close()

		log.Info("prometheus metrics server listening", "address", listener.Addr().String())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		httpSrv := &http.Server{Handler: mux}

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = httpSrv.Shutdown(sctx)
		}()

		err = httpSrv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		if err != nil {
			errCh <- err
		}
	}()

	return errCh
}
