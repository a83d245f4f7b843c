package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shaunagostinho/scoreboard-dash/internal/ingest"
	"github.com/shaunagostinho/scoreboard-dash/internal/logger"
	"github.com/shaunagostinho/scoreboard-dash/internal/metrics"
	"github.com/shaunagostinho/scoreboard-dash/internal/mqtt"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
	"github.com/shaunagostinho/scoreboard-dash/internal/server"
	"github.com/shaunagostinho/scoreboard-dash/web"
)

func main() {
	configPath := flag.String("config", "/etc/scoreboard-dash/config.yaml", "Path to config file")
	port := flag.String("port", "", "Serial port to connect at startup (e.g. /dev/ttyUSB0)")
	demo := flag.Bool("demo", false, "Run with a simulated scoreboard")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	debug := flag.Bool("debug", false, "Log every raw frame")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg := server.LoadConfig(*configPath)

	if cfg.Logging.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}))
	}
	log.Println("[main] scoreboard-dash starting")

	if *demo {
		cfg.Serial.Port = scoreboard.DemoPortName
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	settings, err := cfg.IngestSettings(*debug)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	var appMetrics *metrics.AppMetrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		appMetrics = metrics.NewAppMetrics(reg)
		metricsHandler = metrics.Handler(reg)
	}

	failures := logger.New(cfg.FailureLog)
	defer failures.Close()

	hub := server.NewHub()
	pubs := ingest.MultiPublisher{hub}
	if cfg.MQTT.Enabled {
		mp, err := mqtt.Connect(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Topic:       cfg.MQTT.Topic,
			QoS:         byte(cfg.MQTT.QoS),
			Retain:      cfg.MQTT.Retain,
			Diagnostics: cfg.MQTT.Diagnostics,
		})
		if err != nil {
			// The dashboard runs without the broker
			log.Printf("[mqtt] disabled: %v", err)
		} else {
			defer mp.Close()
			pubs = append(pubs, mp)
		}
	}

	store := scoreboard.NewStore()
	// The demo port follows the configured wire format at each connect
	opener := ingest.DemoOpener(serialport.SerialOpener, func() (scoreboard.Strategy, scoreboard.Framing) {
		s, err := cfg.IngestSettings(*debug)
		if err != nil {
			return settings.Strategy, settings.Framing
		}
		return s.Strategy, s.Framing
	})
	mgr := serialport.NewManager(opener, cfg.ReadTimeout())
	session := ingest.NewSession(mgr, store, pubs, failures, appMetrics, settings)
	defer session.Close()

	// Startup port is optional; otherwise the operator picks one in the UI
	if cfg.Serial.Port != "" {
		go connectWithRetry(ctx, session, cfg.Serial.Port, cfg.Serial.StartupAttempts)
	}

	srv := server.New(cfg, server.Options{
		Hub:      hub,
		Session:  session,
		Store:    store,
		WebFS:    web.FS,
		Metrics:  metricsHandler,
		ShowDemo: *demo || cfg.Serial.Port == scoreboard.DemoPortName,
		Debug:    *debug,
	})
	if err := srv.Run(ctx); err != nil && err != http.ErrServerClosed {
		log.Printf("[main] server exited: %v", err)
	}
}

type connector interface {
	Connect(port string) error
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, and gives up after
// maxAttempts. Later reconnects are up to the operator.
func connectWithRetry(ctx context.Context, c connector, port string, maxAttempts int) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := 1 * time.Second
	maxDelay := 60 * time.Second

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.Connect(port)
		if err == nil {
			log.Printf("[main] connected to %s (attempt %d)", port, attempt)
			return
		}
		if attempt >= maxAttempts {
			log.Printf("[main] connect attempt %d/%d failed: %v (waiting for operator)", attempt, maxAttempts, err)
			return
		}
		log.Printf("[main] connect attempt %d/%d failed: %v (retry in %v)", attempt, maxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
