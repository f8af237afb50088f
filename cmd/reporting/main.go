package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ariefcatur/go-pharmacy-pos.git/internal/config"
	kafkax "github.com/ariefcatur/go-pharmacy-pos.git/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/redisx"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/reporting"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/sales"
	"github.com/joho/godotenv"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &reporting.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-reporting",
	}

	group := getenv("REPORTING_GROUP", "reporting-svc")
	workers := mustAtoi(os.Getenv("REPORTING_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, sales.TopicSaleCompleted, workers)

	go func() {
		log.Printf("reporting consumer started: group=%s topic=%s workers=%d", group, sales.TopicSaleCompleted, workers)
		if err := cons.Start(ctx, svc.HandleSaleCompleted); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
