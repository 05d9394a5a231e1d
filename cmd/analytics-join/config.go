package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"
)

// Config holds the application configuration. All options are supplied once
// at startup and immutable thereafter.
type Config struct {
	ShowVersion bool
	Verbose     bool
	MetricsAddr string

	// Broker configuration
	BrokerHost     string
	BrokerPort     int
	BrokerUser     string
	BrokerPassword string
	CustomerQueue  string
	InventoryQueue string
	Prefetch       int

	// Analytics sink configuration
	SinkBaseURL string
	SinkPath    string
}

// BrokerURL builds the AMQP URL from the broker host, port, and credentials.
// Credentials go through url.UserPassword so reserved characters in the
// password survive the round trip.
func (c Config) BrokerURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.BrokerUser, c.BrokerPassword),
		Host:   net.JoinHostPort(c.BrokerHost, strconv.Itoa(c.BrokerPort)),
		Path:   "/",
	}
	return u.String()
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func loadConfig(args []string) (Config, error) {
	var cfg Config

	brokerPort, err := getenvInt("AMQP_PORT", 5672)
	if err != nil {
		return Config{}, err
	}
	prefetch, err := getenvInt("PREFETCH_COUNT", 10)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("analytics-join", flag.ContinueOnError)

	fs.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("METRICS_ADDR", defaultMetricsAddr), "address for prometheus metrics (env: METRICS_ADDR)")

	// Broker configuration
	fs.StringVar(&cfg.BrokerHost, "amqp-host", getenv("AMQP_HOST", "localhost"), "broker host (env: AMQP_HOST)")
	fs.IntVar(&cfg.BrokerPort, "amqp-port", brokerPort, "broker port (env: AMQP_PORT)")
	fs.StringVar(&cfg.BrokerUser, "amqp-user", getenv("AMQP_USER", "guest"), "broker username (env: AMQP_USER)")
	fs.StringVar(&cfg.BrokerPassword, "amqp-password", getenv("AMQP_PASSWORD", "guest"), "broker password (env: AMQP_PASSWORD)")
	fs.StringVar(&cfg.CustomerQueue, "customer-queue", getenv("CUSTOMER_QUEUE", "customer_data"), "customer stream queue name (env: CUSTOMER_QUEUE)")
	fs.StringVar(&cfg.InventoryQueue, "inventory-queue", getenv("INVENTORY_QUEUE", "inventory_data"), "inventory stream queue name (env: INVENTORY_QUEUE)")
	fs.IntVar(&cfg.Prefetch, "prefetch", prefetch, "max unacknowledged messages in flight per consumer (env: PREFETCH_COUNT)")

	// Analytics sink configuration
	fs.StringVar(&cfg.SinkBaseURL, "sink-base-url", getenv("ANALYTICS_BASE_URL", "http://localhost:8000"), "analytics sink base URL (env: ANALYTICS_BASE_URL)")
	fs.StringVar(&cfg.SinkPath, "sink-path", getenv("ANALYTICS_ENDPOINT", "/analytics/data"), "analytics sink endpoint path (env: ANALYTICS_ENDPOINT)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.ShowVersion {
		return cfg, nil
	}

	if cfg.Prefetch <= 0 {
		return Config{}, fmt.Errorf("prefetch must be positive, got %d", cfg.Prefetch)
	}
	if cfg.CustomerQueue == cfg.InventoryQueue {
		return Config{}, fmt.Errorf("customer and inventory queues must differ, both are %q", cfg.CustomerQueue)
	}

	return cfg, nil
}
