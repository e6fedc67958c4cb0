// Command provisiond onboards IoT devices onto the local MQTT broker.
//
// It offers:
//   - HTTP endpoint (POST /provision) for JSON provisioning requests
//   - UDP listener for CBOR provisioning requests from constrained devices
//   - Short-lived signed MQTT credentials (HS256 JWT)
//   - SQLite device registry with a token issuance audit log
//   - mDNS advertising of the provisioning endpoint and the broker
//
// Usage:
//
//	provisiond [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-secret string     Token signing secret (overrides config)
//	-http-port int     HTTP server port (overrides config)
//	-udp-port int      UDP listener port (overrides config)
//	-db string         SQLite registry path (overrides config)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start with a configuration file
//	provisiond -config /etc/provisiond.yaml
//
//	# Start with only a signing secret, everything else defaulted
//	provisiond -secret super-secret
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cyd-home/provisiond/pkg/config"
	"github.com/cyd-home/provisiond/pkg/discovery"
	"github.com/cyd-home/provisiond/pkg/provision"
	"github.com/cyd-home/provisiond/pkg/registry"
	"github.com/cyd-home/provisiond/pkg/token"
	"github.com/cyd-home/provisiond/pkg/transport"
	"github.com/cyd-home/provisiond/pkg/validator"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	configPath  = flag.String("config", "", "Configuration file path (YAML)")
	secret      = flag.String("secret", "", "Token signing secret (overrides config)")
	httpPort    = flag.Int("http-port", 0, "HTTP server port (overrides config)")
	udpPort     = flag.Int("udp-port", 0, "UDP listener port (overrides config)")
	dbPath      = flag.String("db", "", "SQLite registry path (overrides config)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version information")
)

const httpShutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("provisiond %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	logger := newLogger(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return 1
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		return 1
	}
	return 0
}

// serve wires the service together and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := registry.NewSQLiteStore(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to open device registry: %w", err)
	}
	defer store.Close()

	issuer, err := token.NewIssuer(token.Config{
		Secret:   []byte(cfg.Token.Secret),
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		TTL:      cfg.Token.TTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	val := validator.New(validator.Config{
		AllowedDeviceTypes: cfg.Validation.AllowedDeviceTypes,
	}, store)

	broker := provision.BrokerInfo{
		Host:       cfg.Broker.Host,
		Port:       cfg.Broker.Port,
		SecurePort: cfg.Broker.SecurePort,
		UseTLS:     cfg.Broker.UseTLS,
	}
	svc := provision.NewService(val, issuer, store, broker, logger)

	// HTTP intake.
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: provision.Handler(svc, logger),
	}
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// UDP intake.
	udp := transport.NewUDPListener(transport.UDPConfig{
		Address: fmt.Sprintf(":%d", cfg.UDPPort),
		Logger:  logger,
	}, svc)
	if err := udp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start udp listener: %w", err)
	}
	defer udp.Stop()

	// mDNS advertising.
	var discoveryDone <-chan struct{}
	if cfg.Discovery.Enabled {
		adv, err := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: cfg.Discovery.Interface,
		})
		if err != nil {
			return fmt.Errorf("failed to create mdns advertiser: %w", err)
		}
		runner := discovery.NewRunner(adv,
			discovery.ProvisioningInfo{
				Port:       cfg.HTTPPort,
				Version:    Version,
				InstanceID: uuid.NewString(),
			},
			discovery.BrokerInfo{
				Port:        broker.EffectivePort(),
				Description: "CYD Home MQTT Broker",
			},
			logger)
		go func() {
			if err := runner.Run(ctx); err != nil {
				logger.Warn("mdns advertising failed", "error", err)
			}
		}()
		discoveryDone = runner.Stopped()
	}

	logger.Info("provisioning service started",
		"http_port", cfg.HTTPPort,
		"udp_port", cfg.UDPPort,
		"registry", cfg.RegistryPath,
		"broker", fmt.Sprintf("%s:%d", broker.Host, broker.EffectivePort()))

	select {
	case err := <-httpErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	// Retract the mDNS records before tearing down the listeners so
	// clients stop finding a service that no longer answers.
	if discoveryDone != nil {
		select {
		case <-discoveryDone:
		case <-time.After(httpShutdownTimeout):
			logger.Warn("timed out waiting for mdns retraction")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	return nil
}

// applyFlags overlays command-line overrides on the loaded configuration.
func applyFlags(cfg *config.Config) {
	if *secret != "" {
		cfg.Token.Secret = *secret
	}
	if *httpPort != 0 {
		cfg.HTTPPort = uint16(*httpPort)
	}
	if *udpPort != 0 {
		cfg.UDPPort = uint16(*udpPort)
	}
	if *dbPath != "" {
		cfg.RegistryPath = *dbPath
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
