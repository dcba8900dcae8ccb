package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"racebeacon/internal/config"
	"racebeacon/internal/handlers"
	"racebeacon/internal/repositories/memory"
	"racebeacon/internal/repositories/mongodb"
	"racebeacon/internal/services"
	"racebeacon/pkg/cache"
	"racebeacon/pkg/database"
	"racebeacon/pkg/logger"
	"racebeacon/pkg/sms"
	"racebeacon/pkg/storage"
	"racebeacon/pkg/websocket"
	"racebeacon/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Caller:  cfg.Log.ReportCaller,
		Colors:  cfg.IsDevelopment(),
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Server exited with error")
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	routeConfig, err := services.LoadRoutes(ctx, cfg.Routes.Source, storage.Options{
		AWSRegion:          cfg.Routes.AWSRegion,
		GCPCredentialsFile: cfg.Routes.GCPCredentialsFile,
	}, log)
	if err != nil {
		return err
	}

	engine := services.NewEngine(memory.NewSessionRepository(), memory.NewEmergencyRepository(), log)
	hub := websocket.NewHub(log)

	statusHandler := handlers.NewStatusHandler(engine, hub, routeConfig, cfg.App.Version)

	var notifiers []services.EmergencyNotifier
	var reaperOpts []services.ReaperOption

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer redisCache.Close()

		mirror := services.NewRedisMirror(redisCache, cfg.Redis.StatusTTL)
		notifiers = append(notifiers, mirror)
		reaperOpts = append(reaperOpts, services.WithStatusMirror(mirror))
		statusHandler.AddHealthCheck("redis", redisCache.Ping)
		log.Info("Redis mirror enabled")
	}

	if cfg.Database.Enabled {
		mongo, err := database.NewMongoDB(ctx, &database.DatabaseConfig{
			URI:            cfg.Database.URI,
			Database:       cfg.Database.Database,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			MinPoolSize:    cfg.Database.MinPoolSize,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			SocketTimeout:  cfg.Database.SocketTimeout,
		})
		if err != nil {
			return err
		}
		defer mongo.Close()

		if cfg.Database.AutoMigrate {
			if err := database.NewMigrator(mongo.Database, log).Up(ctx); err != nil {
				return err
			}
		}

		reaperOpts = append(reaperOpts, services.WithArchive(mongodb.NewEmergencyArchiveRepository(mongo.Database)))
		statusHandler.AddHealthCheck("mongodb", mongo.Ping)
		log.Info("Emergency archive enabled")
	}

	if cfg.SMS.Enabled {
		provider, err := newSMSProvider(ctx, cfg.SMS)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, services.NewSMSNotifier(provider, cfg.SMS.Recipients))
		log.WithField("provider", cfg.SMS.Provider).Info("Coordinator SMS enabled")
	}

	notifications := services.NewNotificationService(log, cfg.SMS.QueueSize, cfg.SMS.SendTimeout, notifiers...)
	dispatcher := services.NewDispatcher(engine, hub, notifications, routeConfig, log)
	reaper := services.NewReaper(engine, dispatcher, hub, services.ReaperConfig{
		Interval:        cfg.Presence.SweepInterval,
		SessionTimeout:  cfg.Presence.SessionTimeout,
		EmergencyMaxAge: cfg.Presence.EmergencyMaxAge,
		Retention:       cfg.Presence.TerminalRetention,
		BroadcastStatus: cfg.Presence.BroadcastStatus,
	}, log, reaperOpts...)

	wsHandler := websocket.NewHandler(hub, dispatcher, websocket.Config{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		SendBufferSize:  cfg.WebSocket.SendBufferSize,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
		WriteWait:       cfg.WebSocket.WriteWait,
		PongWait:        cfg.WebSocket.PongTimeout,
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
	}, log)

	router := routes.SetupRoutes(statusHandler, wsHandler, log, routes.Options{
		AllowedOrigins: cfg.App.AllowedOrigins,
		WebSocketPath:  cfg.WebSocket.Path,
	})

	server := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	notifications.Start(ctx)
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("address", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	// Hijacked websocket connections are not tracked by Shutdown; the hub
	// closes those once ctx is cancelled.
	err = server.Shutdown(shutdownCtx)
	cancel()
	wg.Wait()
	notifications.Wait()
	return err
}

func newSMSProvider(ctx context.Context, cfg *config.SMSConfig) (sms.SMSProvider, error) {
	if cfg.Provider == config.SMSProviderSNS {
		provider, err := sms.NewAWSSNSProvider(ctx, cfg.AWS.Region, cfg.AWS.SenderID)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
}
