package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"chat-core/internal/auth"
	"chat-core/internal/config"
	"chat-core/internal/db"
	"chat-core/internal/handlers"
	"chat-core/internal/middleware"
	"chat-core/internal/observability"
	"chat-core/internal/pubsub"
	"chat-core/internal/rabbitmq"
	"chat-core/internal/repositories"
	"chat-core/internal/repositories/memory"
	"chat-core/internal/services"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

const shutdownTimeout = 30 * time.Second

type stores struct {
	messages repositories.MessageRepository
	rooms    repositories.RoomRepository
	users    repositories.UserRepository
	close    func() error
}

func openStores(cfg *config.Config) (stores, error) {
	if cfg.UsesMemoryStore() {
		log.Printf("store driver=memory: data is not persisted")
		s := memory.NewStore()
		return stores{messages: s, rooms: s, users: s, close: func() error { return nil }}, nil
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		return stores{}, err
	}
	return stores{
		messages: repositories.NewMessageRepo(database),
		rooms:    repositories.NewRoomRepo(database),
		users:    repositories.NewUserRepo(database),
		close:    database.Close,
	}, nil
}

func openBus(cfg *config.Config) pubsub.Bus {
	if cfg.RedisAddr == "" {
		log.Printf("delivery bus=local: single instance fan-out")
		return pubsub.NewLocalBus()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	log.Printf("delivery bus=redis addr=%s channel=%s", cfg.RedisAddr, cfg.RedisChannel)
	return pubsub.NewRedisBus(client, cfg.RedisChannel)
}

func main() {
	cfg := config.Load()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tracerProvider, err := telemetry.InitTracing(context.Background(), cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	store, err := openStores(cfg)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	eventPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	observability.SetPublisher(eventPublisher)
	if reason := rabbitmq.PublisherNoopReason(eventPublisher); reason != "" {
		log.Printf("event publisher mode=%s reason=%s", rabbitmq.PublisherMode(eventPublisher), reason)
	}
	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	bus := openBus(cfg)
	registry := ws.NewRegistry(cfg.RegistryShards)
	router := ws.NewRouter(bus, registry)

	membership := services.NewMembershipManager(store.rooms, store.users, store.messages, router)
	conversation := services.NewConversationService(store.messages, store.rooms, store.users, membership, router, cfg.DeliveryTimeout)

	validator := auth.NewValidator(cfg.JWTSecret)
	wsHandler := ws.NewHandler(registry, router, validator, store.users, conversation, membership, cfg.WSSendBuffer)

	engine := gin.Default()
	engine.Use(observability.RequestIDMiddleware())
	engine.Use(otelgin.Middleware(cfg.ServiceName))
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": registry.Count()})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(engine, handlers.DebugDeps{
		Audit:    audit,
		Sessions: registry.Count,
		Publishers: map[string]string{
			"events": rabbitmq.PublisherMode(eventPublisher),
			"audit":  rabbitmq.PublisherMode(auditPublisher),
		},
	}, cfg.DebugRoutes)

	api := engine.Group("/", middleware.AuthMiddleware(validator, store.users))
	handlers.NewRoomHandler(membership, audit).Register(api)
	handlers.NewMessageHandler(conversation, audit).Register(api)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: engine}

	runCtx, stopRun := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("chat-core listening port=%s env=%s", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	go func() {
		if err := g.Wait(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat-core": func(ctx context.Context) error {
				// Stop handshakes first, then drain background deliveries while the
				// bus and publishers are still up.
				err := srv.Shutdown(ctx)
				conversation.Shutdown()
				stopRun()
				return errors.Join(err, bus.Close(), eventPublisher.Close(), auditPublisher.Close(), store.close())
			},
			"tracer": func(ctx context.Context) error {
				return tracerProvider.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("chat-core exited code=%d", exitCode)
	os.Exit(exitCode)
}
