package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/orderboard/internal/display"
	"github.com/joao-fontenele/orderboard/internal/domain"
	"github.com/joao-fontenele/orderboard/internal/messaging"
)

// loadSnapshot pulls the active orders from the ordering service so the
// board does not start empty while the consumer catches up.
func loadSnapshot(ctx context.Context, serverURL string, board *display.Board) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/api/orders/active", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.New("snapshot request failed: " + resp.Status)
	}

	var orders []domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return err
	}

	board.Load(orders)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	board := display.NewBoard(logger)

	if serverURL := os.Getenv("ORDERBOARD_URL"); serverURL != "" {
		if err := loadSnapshot(ctx, serverURL, board); err != nil {
			logger.Warn("failed to load order snapshot, starting empty", "error", err)
		} else {
			logger.Info("loaded order snapshot", "tickets", len(board.Tickets()))
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /tickets", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(board.Tickets()); err != nil {
				logger.Error("failed to encode tickets", "error", err)
			}
		})

		go func() {
			logger.Info("serving display tickets", "port", port)
			if err := http.ListenAndServe(":"+port, mux); err != nil {
				logger.Error("display server error", "error", err)
			}
		}()
	}

	consumer := messaging.NewConsumer(
		strings.Split(kafkaBrokers, ","),
		"kitchen-display",
		messaging.WithStartOffset(kafka.LastOffset),
	)
	defer func() { _ = consumer.Close() }()

	logger.Info("kitchen display started", "topic", messaging.TopicOrderEvents)

	if err := consumer.Consume(ctx, board.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
