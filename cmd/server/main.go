package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/onionparts/internal/broker"
	"github.com/vedran77/onionparts/internal/config"
	"github.com/vedran77/onionparts/internal/database"
	"github.com/vedran77/onionparts/internal/keepalive"
	"github.com/vedran77/onionparts/internal/repository"
	"github.com/vedran77/onionparts/internal/repository/memory"
	postgresrepo "github.com/vedran77/onionparts/internal/repository/postgres"
	"github.com/vedran77/onionparts/internal/service"
	"github.com/vedran77/onionparts/internal/storage"
	"github.com/vedran77/onionparts/internal/transport/http/handlers"
	"github.com/vedran77/onionparts/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

type repos struct {
	users    repository.UserRepository
	catalog  repository.CatalogRepository
	products repository.ProductRepository
	rooms    repository.RoomRepository
	messages repository.MessageRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Repositories
	var r repos
	switch cfg.DBDriver {
	case "memory":
		db := memory.New(cfg.AdminPassword)
		r = repos{db.Users(), db.Catalog(), db.Products(), db.Rooms(), db.Messages()}
		log.Println("Using in-memory database")
	default:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Println("Connected to database")

		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		if cfg.AdminPassword != "" {
			if err := database.SetAdminPassword(ctx, pool, cfg.AdminPassword); err != nil {
				return err
			}
		}
		r = repos{
			users:    postgresrepo.NewUserRepo(pool),
			catalog:  postgresrepo.NewCatalogRepo(pool),
			products: postgresrepo.NewProductRepo(pool),
			rooms:    postgresrepo.NewRoomRepo(pool),
			messages: postgresrepo.NewMessageRepo(pool),
		}
	}

	// Object storage
	store, err := storage.Open(cfg.StoragePath, cfg.PublicBaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	// Services
	authService := service.NewAuthService(r.users, cfg.JWTSecret)
	productService := service.NewProductService(r.products, r.catalog, r.users)
	roomService := service.NewRoomService(r.rooms, r.products, r.users, r.messages)
	messageService := service.NewMessageService(r.messages, roomService)
	uploadService := service.NewUploadService(store, roomService, productService, cfg.ChatImageMaxBytes, cfg.ProductImageMaxBytes)
	keepAliveService := service.NewKeepAliveService(r.users)

	// Live feed
	hub := ws.NewHub(roomService)
	hubNotifier := ws.NewHubNotifier(hub)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })

	if cfg.NatsURL != "" {
		nc, err := broker.Connect(cfg.NatsURL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		log.Printf("Connected to NATS at %s", cfg.NatsURL)

		messageService.SetNotifier(broker.NewPublisher(nc))
		relay := broker.NewRelay(nc, hubNotifier)
		g.Go(func() error { return relay.Run(ctx) })
	} else {
		messageService.SetNotifier(hubNotifier)
	}

	scheduler, err := keepalive.New(cfg.KeepAliveCron, func(ctx context.Context) error {
		_, err := keepAliveService.Ping(ctx)
		return err
	})
	if err != nil {
		return err
	}
	g.Go(func() error { return scheduler.Run(ctx) })

	// Routes
	router := &handlers.Router{
		Auth:           handlers.NewAuthHandler(authService),
		Products:       handlers.NewProductHandler(productService),
		Rooms:          handlers.NewRoomHandler(roomService),
		Messages:       handlers.NewMessageHandler(messageService),
		Storage:        handlers.NewStorageHandler(uploadService),
		KeepAlive:      handlers.NewKeepAliveHandler(keepAliveService),
		WS:             ws.ServeWS(hub, cfg.JWTSecret),
		Metrics:        promhttp.Handler(),
		JWTSecret:      cfg.JWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
