package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/api"
	"github.com/t77yq/macroflow/internal/executor"
	"github.com/t77yq/macroflow/internal/handler"
	"github.com/t77yq/macroflow/internal/model"
	"github.com/t77yq/macroflow/internal/monitor"
	"github.com/t77yq/macroflow/internal/queue"
	"github.com/t77yq/macroflow/internal/registry"
	"github.com/t77yq/macroflow/internal/scheduler"
	"github.com/t77yq/macroflow/internal/storage"
	"github.com/t77yq/macroflow/internal/translate"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Optionally run an embedded NATS server so a single binary works
	// without external infrastructure.
	var embedded *server.Server
	if viper.GetBool("nats.embedded") {
		embedded, err = server.NewServer(&server.Options{
			Host:      "127.0.0.1",
			Port:      viper.GetInt("nats.embedded_port"),
			NoSigs:    true,
			JetStream: true,
			StoreDir:  viper.GetString("nats.store_dir"),
		})
		if err != nil {
			logger.Fatal("Failed to create embedded NATS server", zap.Error(err))
		}
		go embedded.Start()
		if !embedded.ReadyForConnections(10 * time.Second) {
			logger.Fatal("Embedded NATS server did not become ready")
		}
		defer embedded.Shutdown()
		logger.Info("Embedded NATS server started", zap.String("url", embedded.ClientURL()))
	}

	natsURL := viper.GetString("nats.urls.0")
	if embedded != nil {
		natsURL = embedded.ClientURL()
	}

	opts := []nats.Option{
		nats.Name(viper.GetString("app.name")),
		nats.MaxReconnects(viper.GetInt("nats.max_reconnects")),
		nats.ReconnectWait(viper.GetDuration("nats.reconnect_wait")),
		nats.Timeout(viper.GetDuration("nats.connect_timeout")),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(natsURL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Open storage
	db, err := storage.Open(viper.GetString("storage.path"))
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	jobs, err := storage.NewJobStore(logger, db)
	if err != nil {
		logger.Fatal("Failed to create job store", zap.Error(err))
	}

	macros, err := storage.NewMacroStore(logger, db)
	if err != nil {
		logger.Fatal("Failed to create macro store", zap.Error(err))
	}

	history, err := storage.NewExecutionHistory(logger, db)
	if err != nil {
		logger.Fatal("Failed to create execution history", zap.Error(err))
	}

	// Macro registry: predefined table merged with persisted user macros
	reg := registry.New(logger, macros)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.Load(ctx); err != nil {
		logger.Fatal("Failed to load persisted macros", zap.Error(err))
	}

	// Translator
	translator := translate.NewGeminiTranslator(logger, translate.Config{
		BaseURL: viper.GetString("translator.base_url"),
		Model:   viper.GetString("translator.model"),
		APIKey:  viper.GetString("translator.api_key"),
		Timeout: viper.GetDuration("translator.timeout"),
	})

	// Executor with one handler per action
	exec := executor.New(logger, translator, history)
	exec.RegisterHandler(model.ActionSendEmail, handler.NewEmailHandler(logger, handler.EmailConfig{
		Host:     viper.GetString("email.host"),
		Port:     viper.GetInt("email.port"),
		Username: viper.GetString("email.username"),
		Password: viper.GetString("email.password"),
		From:     viper.GetString("email.from"),
	}))
	exec.RegisterHandler(model.ActionPostToSocial, handler.NewSocialPostHandler(logger, handler.SocialConfig{
		Platforms: viper.GetStringMapString("social.platforms"),
	}))
	exec.RegisterHandler(model.ActionCreateFile, handler.NewFileHandler(logger, viper.GetString("files.base_dir")))

	// Execution queue for immediate (fire-and-forget) work
	execQueue, err := queue.New(js, exec, logger)
	if err != nil {
		logger.Fatal("Failed to create execution queue", zap.Error(err))
	}

	// Scheduler loop draining due jobs
	loop := scheduler.NewLoop(logger, jobs, exec, viper.GetDuration("scheduler.interval"))
	if err := loop.Start(); err != nil {
		logger.Fatal("Failed to start scheduler loop", zap.Error(err))
	}
	defer loop.Stop()

	// Metrics for the health endpoint
	metrics := monitor.NewMetricsCollector(viper.GetDuration("monitor.interval"), logger)
	metrics.Start(ctx)
	defer metrics.Stop()

	// Cleanup old execution history once a day
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -30)
				if err := history.DeleteBefore(ctx, cutoff); err != nil {
					logger.Error("Failed to cleanup execution history", zap.Error(err))
				}
			}
		}
	}()

	// HTTP API
	apiServer := api.NewServer(logger, reg, execQueue, jobs, history, metrics)
	httpServer := &http.Server{
		Addr:    viper.GetString("app.http_addr"),
		Handler: apiServer.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown timed out", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}
