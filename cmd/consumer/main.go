package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/gymcore/internal/config"
	"example.com/gymcore/internal/consumer"
	"example.com/gymcore/internal/domain"
	persistence "example.com/gymcore/internal/persistence/postgres"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	service := domain.NewService(persistence.NewRepository(pool), domain.WithLocation(cfg.Location()))
	handler, err := consumer.NewRefreshHandler(service, nil)
	if err != nil {
		log.Fatalf("failed to build refresh handler: %v", err)
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ConsumerTopics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			consumeTopic(ctx, cfg, topic, handler)
		}(topic)
	}

	<-stop
	log.Println("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	wg.Wait()
}

// consumeTopic runs a processor for topic until ctx ends. When a message cannot be handled the
// reader is closed and rebuilt, so the group resumes from the last committed offset and the
// message is delivered again.
func consumeTopic(ctx context.Context, cfg config.Config, topic string, handler consumer.Handler) {
	pause := time.Second
	for {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  0,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		log.Printf("profile refresher started (topic=%s, group=%s)", topic, cfg.ConsumerGroupID)
		err := consumer.NewProcessor(reader, handler).Run(ctx)
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("reader close error (topic=%s): %v", topic, closeErr)
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("profile refresher restarting in %s (topic=%s): %v", pause, topic, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(pause):
		}
		pause = min(pause*2, time.Minute)
	}
}
