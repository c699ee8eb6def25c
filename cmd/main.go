package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dream_incubator/internal/archive"
	"dream_incubator/internal/audio"
	"dream_incubator/internal/config"
	"dream_incubator/internal/handlers"
	"dream_incubator/internal/ingest/mqtt"
	"dream_incubator/internal/logger"
	"dream_incubator/internal/metrics"
	"dream_incubator/internal/notify"
	"dream_incubator/internal/observability"
	"dream_incubator/internal/rem"
	"dream_incubator/internal/repository"
	"dream_incubator/internal/repository/db"
	"dream_incubator/internal/server"
	"dream_incubator/internal/service"
)

const shutdownTimeout = 10 * time.Second

// closers are released in reverse order on shutdown.
type closer struct {
	name string
	fn   func() error
}

func main() {
	// load config.yml + DREAM_* overrides
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Init(cfg.LogLevel, cfg.LogEncoding)
	defer func() { _ = log.Sync() }()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Otel.Enabled,
		Exporter:    cfg.Otel.Exporter,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		ServiceName: cfg.Otel.ServiceName,
		SampleRatio: cfg.Otel.SampleRatio,
	}, log)
	if err != nil {
		log.Fatalw("failed to init tracing", "err", err)
	}

	policy, err := rem.ParsePolicy(cfg.Detection.Policy)
	if err != nil {
		log.Fatalw("invalid detection policy", "policy", cfg.Detection.Policy, "err", err)
	}

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "path", cfg.DB.Path, "err", err)
	}
	closers := []closer{{"sqlite", sqlDB.Close}}

	collectors := metrics.New()
	opts := service.Options{
		Log:           log,
		DefaultPolicy: policy,
		Recorder:      collectors,
		Dispatch: service.DispatcherOptions{
			Workers:   cfg.Dispatch.Workers,
			QueueSize: cfg.Dispatch.QueueSize,
			Timeout:   cfg.Dispatch.Timeout,
			History:   cfg.Dispatch.History,
		},
		Auth: service.AuthOptions{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
		Simulator: service.SimulatorOptions{DeviceID: cfg.Simulator.DeviceID},
	}

	// optional collaborators stay nil interfaces when disabled
	if cfg.Synth.TextAPIKey != "" {
		opts.Synthesizer = audio.New(audio.Options{
			TextEndpoint: cfg.Synth.TextEndpoint,
			TextAPIKey:   cfg.Synth.TextAPIKey,
			TextModel:    cfg.Synth.TextModel,
			TTSEndpoint:  cfg.Synth.TTSEndpoint,
			TTSAPIKey:    cfg.Synth.TTSAPIKey,
			Voice:        cfg.Synth.Voice,
			Timeout:      cfg.Synth.Timeout,
			Retries:      cfg.Synth.Retries,
			OutputDir:    cfg.Synth.OutputDir,
		}, log)
	} else {
		log.Warnw("synth.text_api_key not set; cues will be recorded as failed")
	}

	if cfg.Redis.Enabled {
		pub, err := notify.NewRedisPublisher(notify.Options{
			Addr:   cfg.Redis.Addr,
			Stream: cfg.Redis.Stream,
			MaxLen: cfg.Redis.MaxLen,
		}, log)
		if err != nil {
			log.Fatalw("failed to connect to redis", "addr", cfg.Redis.Addr, "err", err)
		}
		opts.Publisher = pub
		closers = append(closers, closer{"redis", pub.Close})
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path, log)
		if err != nil {
			log.Fatalw("failed to open sample archive", "path", cfg.Archive.Path, "err", err)
		}
		opts.Archive = store
		closers = append(closers, closer{"archive", store.Close})
	}

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, opts)
	if err := services.Start(ctx); err != nil {
		log.Fatalw("failed to start services", "err", err)
	}

	if cfg.Simulator.Enabled {
		go services.Simulator.Run(ctx, cfg.Simulator.Tick)
	}

	var consumer *mqtt.Consumer
	if cfg.MQTT.Enabled {
		consumer = mqtt.NewConsumer(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		}, services.Detection, log)
		if err := consumer.Start(ctx); err != nil {
			log.Fatalw("failed to start mqtt consumer", "broker", cfg.MQTT.Broker, "err", err)
		}
	}

	apiHandler := handlers.NewHandler(services, log, handlers.Options{
		AuthEnabled: cfg.Auth.Enabled,
		CORSOrigins: cfg.CORS.AllowOrigins,
		AudioDir:    cfg.Synth.OutputDir,
		ServiceName: cfg.Otel.ServiceName,
		Metrics:     collectors,
	})

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("dream incubator started", "port", cfg.Port, "policy", policy, "auth", cfg.Auth.Enabled)

	// graceful shutdown
	waitForShutdown(log)

	log.Infow("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// allow in-flight requests to complete
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	if consumer != nil {
		consumer.Stop()
	}

	// stop background goroutines, then drain cue workers
	cancel()
	services.Stop()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("tracing shutdown failed", "err", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			log.Warnw("close failed", "resource", closers[i].name, "err", err)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !server.IsClosed(err) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infow("signal received", "signal", sig.String())
}
