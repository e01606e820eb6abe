package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/config"
	"github.com/ariefcatur/go-petstore/internal/discounts"
	"github.com/ariefcatur/go-petstore/internal/httpx"
	kafkax "github.com/ariefcatur/go-petstore/internal/kafka"
	"github.com/ariefcatur/go-petstore/internal/notify"
	"github.com/ariefcatur/go-petstore/internal/orders"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/ariefcatur/go-petstore/internal/redisx"
	"github.com/ariefcatur/go-petstore/internal/reviews"
	"github.com/ariefcatur/go-petstore/internal/stock"
	"github.com/ariefcatur/go-petstore/internal/support"
	"github.com/ariefcatur/go-petstore/internal/telemetry"
	"github.com/ariefcatur/go-petstore/internal/wishlist"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for customer notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024)
	prod.Start(ctx)
	notifier := &notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}

	products := &catalog.Repo{DB: db}
	wl := &wishlist.Repo{DB: db}
	orderSvc := &orders.Service{Store: orders.NewRepo(db), Notifier: notifier, Redis: rdb}
	discountMgr := &discounts.Manager{
		Store:     discounts.NewPGStore(db),
		Notifier:  notifier,
		Redis:     rdb,
		Campaigns: &discounts.CampaignRepo{DB: db},
	}

	router := httpx.NewRouter(cfg.RequestTimeout)
	(&httpx.OrdersHandler{Service: orderSvc}).Register(router)
	(&httpx.DiscountsHandler{Service: discountMgr}).Register(router)
	(&httpx.CatalogHandler{Products: products, Stock: &stock.Ledger{DB: db}, Cache: discountMgr}).Register(router)
	(&httpx.EngagementHandler{Wishlist: wl, Reviews: &reviews.Repo{DB: db}}).Register(router)
	(&httpx.SupportHandler{Store: &support.Repo{DB: db}}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           telemetry.Middleware(cfg.ServiceName)(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // stop accepting notifications, flush what is buffered
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
	if err := shutdownTracing(ctx2); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
