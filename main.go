package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"matchmaking-service/internal/config"
	"matchmaking-service/internal/db"
	"matchmaking-service/internal/fanout"
	grpcserver "matchmaking-service/internal/grpc"
	"matchmaking-service/internal/handlers"
	"matchmaking-service/internal/matchmaking"
	"matchmaking-service/internal/middleware"
	"matchmaking-service/internal/observability"
	"matchmaking-service/internal/rabbitmq"
	"matchmaking-service/internal/relay"
	"matchmaking-service/internal/repositories"
	"matchmaking-service/internal/telemetry"
	"matchmaking-service/internal/tracing"
	"matchmaking-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	var (
		store    repositories.Store
		chatRepo repositories.ChatRepository
		msgRepo  repositories.MessageRepository
		closeDB  func() error
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Printf("store driver=memory, chat routes disabled")
		store = repositories.NewMemoryStore()
	default:
		database, err := db.Connect(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		closeDB = database.Close
		store = repositories.NewPostgresStore(database)
		chatRepo = repositories.NewChatRepo(database)
		msgRepo = repositories.NewMessageRepo(database)
	}

	bus := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if mode := rabbitmq.PublisherMode(bus); mode == "noop" {
		log.Printf("rabbitmq mode=noop reason=%s", rabbitmq.PublisherNoopReason(bus))
	} else {
		log.Printf("rabbitmq mode=%s", mode)
	}
	audit := telemetry.NewAuditEmitter(bus, "audit."+cfg.ServiceName, cfg.ServiceName, cfg.Environment)

	hub := ws.NewHub(bus)

	// the local hub only reaches sockets on this replica; with redis every
	// replica receives the event and delivers it to its own sockets
	var (
		local      fanout.Publisher = hub
		redisRelay *relay.RedisRelay
		rdb        *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		redisRelay = relay.NewRedisRelay(rdb, cfg.RedisChannel, hub)
		local = redisRelay
	}
	events := fanout.Multi{local, fanout.NewAMQP(bus, "matchmaking")}

	svc := matchmaking.NewService(store, events,
		matchmaking.WithExclusionPolicy(matchmaking.PolicyFor(cfg.MatchCooldown)),
		matchmaking.WithMaxRetries(cfg.MatchMaxRetries),
	)

	validator := middleware.NewJWTValidator(cfg.JWTSecret)
	matchHandler := handlers.NewMatchHandler(svc, audit)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	matchHandler.RegisterPublicRoutes(router)

	authed := router.Group("/", middleware.AuthMiddleware(validator))
	matchHandler.RegisterRoutes(authed)

	router.GET("/ws/events", ws.NewEventsWebSocketHandler(hub, validator).Handle)
	if chatRepo != nil {
		handlers.NewChatHandler(chatRepo, msgRepo, svc, hub, audit).RegisterRoutes(authed)
		router.GET("/ws/chats/:chat_id", ws.NewChatWebSocketHandler(hub, chatRepo, validator).Handle)
	}
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("failed to listen for grpc: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("http listening addr=%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return grpcserver.NewServer().Serve(gctx, grpcLis)
	})
	if redisRelay != nil {
		g.Go(func() error { return redisRelay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Combine(runErr, bus.Close(), shutdownTracing(shutdownCtx))
	if rdb != nil {
		err = multierr.Append(err, rdb.Close())
	}
	if closeDB != nil {
		err = multierr.Append(err, closeDB())
	}
	if err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Printf("shutdown complete")
}
