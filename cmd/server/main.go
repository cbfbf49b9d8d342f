package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/orderboard/internal/broadcast"
	"github.com/joao-fontenele/orderboard/internal/menu"
	"github.com/joao-fontenele/orderboard/internal/messaging"
	"github.com/joao-fontenele/orderboard/internal/orders"
	"github.com/joao-fontenele/orderboard/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orderboard", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orderboard", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var relay broadcast.Relay
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer := messaging.NewProducer(strings.Split(kafkaBrokers, ","))
		defer func() { _ = producer.Close() }()
		relay = producer
	}

	hub := broadcast.NewHub(relay, logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	orderRepo := orders.NewOrderRepository(db)
	orderService := orders.NewService(orderRepo, hub.Inbound(), logger)
	orderHandler := orders.NewHandler(orderService, logger)

	menuRepo := menu.NewMenuRepository(db)
	menuHandler := menu.NewHandler(menuRepo, logger)

	sseHandler := broadcast.NewSSEHandler(hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", telemetry.WithHTTPRoute(orderHandler.HandleCreate))
	mux.HandleFunc("GET /api/orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /api/orders/active", telemetry.WithHTTPRoute(orderHandler.HandleListActive))
	mux.HandleFunc("GET /api/orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /api/orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleChangeStatus))
	mux.HandleFunc("DELETE /api/orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleDelete))
	mux.HandleFunc("GET /api/menu", telemetry.WithHTTPRoute(menuHandler.HandleListAvailable))
	mux.HandleFunc("GET /api/menu/items", telemetry.WithHTTPRoute(menuHandler.HandleListAll))
	mux.HandleFunc("POST /api/menu/items", telemetry.WithHTTPRoute(menuHandler.HandleCreate))
	mux.HandleFunc("PUT /api/menu/items/{id}", telemetry.WithHTTPRoute(menuHandler.HandleUpdate))
	mux.HandleFunc("DELETE /api/menu/items/{id}", telemetry.WithHTTPRoute(menuHandler.HandleDelete))
	mux.Handle("GET /api/events", sseHandler)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "orderboard",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout: 10 * time.Second,
		// No write timeout: /api/events streams for the lifetime of the
		// client connection.
		WriteTimeout: 0,
	}

	go func() {
		logger.Info("starting orderboard server", "port", port, "kafka_relay", relay != nil)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
