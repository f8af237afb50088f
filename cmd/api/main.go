package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-pharmacy-pos.git/internal/config"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-pharmacy-pos.git/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/postgres"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/redisx"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/sales"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	prodSale := kafkax.NewProducer(cfg.KafkaBrokers, sales.TopicSaleCompleted, 1024)
	prodSale.Start(ctx)
	prodRestock := kafkax.NewProducer(cfg.KafkaBrokers, sales.TopicStockRestocked, 256)
	prodRestock.Start(ctx)

	// Store, orchestrator, handler
	repo := &sales.Repo{DB: db}
	svc := sales.NewService(repo, sales.YearSeq{Prefix: cfg.InvoicePrefix})

	router := httpx.NewRouter()
	sh := &httpx.SalesHandler{
		Svc:             svc,
		Repo:            repo,
		Redis:           rdb,
		Producer:        prodSale,
		RestockProducer: prodRestock,
		Validate:        validator.New(),
		Service:         cfg.ServiceName,
	}
	sh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prodSale.Close()
	prodRestock.Close()
	cancel()
	prodSale.WaitClosed()
	prodRestock.WaitClosed()
}
