package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"fleet-telemetry-cloud/internal/audit"
	"fleet-telemetry-cloud/internal/config"
	"fleet-telemetry-cloud/internal/db"
	"fleet-telemetry-cloud/internal/ingest"
	"fleet-telemetry-cloud/internal/live"
	maintenanceapp "fleet-telemetry-cloud/internal/maintenance/application"
	maintenancerepo "fleet-telemetry-cloud/internal/maintenance/infrastructure/postgres"
	maintenancehttp "fleet-telemetry-cloud/internal/maintenance/interfaces/http"
	"fleet-telemetry-cloud/internal/observability/metrics"
	"fleet-telemetry-cloud/internal/reports"
	"fleet-telemetry-cloud/internal/simulator"
	vehicleapp "fleet-telemetry-cloud/internal/vehicles/application"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
	vehiclerepo "fleet-telemetry-cloud/internal/vehicles/infrastructure/postgres"
	vehiclehttp "fleet-telemetry-cloud/internal/vehicles/interfaces/http"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fleet-telemetry-cloud",
		Short: "Fleet telemetry backend with sensor ingestion and live streaming",
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sensor ingest pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Publish synthetic sensor readings to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runSimulate(cfg)
		},
	}
}

func runServe(cfg config.Config) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.EnsureSchema(ctx, conn); err != nil {
		return err
	}

	metrics.Init()

	vehicleRepo := vehiclerepo.NewVehicleRepository(conn)
	vehicleService, err := vehicleapp.NewService(vehicleRepo, logger)
	if err != nil {
		return err
	}
	recordRepo := maintenancerepo.NewRecordRepository(conn)
	maintenanceService, err := maintenanceapp.NewService(recordRepo, vehicleRepo, logger)
	if err != nil {
		return err
	}
	auditRepo := audit.NewRepository(conn)

	hub := live.NewHub[string, vehicles.SensorSnapshot](logger)

	vehicleHandler, err := vehiclehttp.NewHandler(vehicleService, auditRepo, logger)
	if err != nil {
		return err
	}
	maintenanceHandler, err := maintenancehttp.NewHandler(maintenanceService, auditRepo, logger)
	if err != nil {
		return err
	}
	reportsHandler, err := reports.NewHandler(vehicleService, logger)
	if err != nil {
		return err
	}
	streamHandler, err := live.NewStreamHandler(vehicleService, hub, logger)
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	vehicleHandler.Register(router)
	maintenanceHandler.Register(router)
	reportsHandler.Register(router)
	router.Handle("/api/v1/vehicles/{vehicleId}/status", streamHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	consumer, err := ingest.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, vehicleService, hub, logger)
	if err != nil {
		return err
	}
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: loggingMiddleware(router, logger),
	}
	serverDone := make(chan error, 1)
	go func() {
		logger.Printf("http server listening on %s", cfg.HTTPAddr)
		serverDone <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http server: %v", err)
		}
	case err := <-consumerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("ingest consumer: %v", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	if err := consumer.Close(); err != nil {
		logger.Printf("consumer close: %v", err)
	}
	logger.Print("shutdown complete")
	return nil
}

func runSimulate(cfg config.Config) error {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	devices := cfg.Simulator.Devices
	if len(devices) == 0 {
		return errors.New("simulate: FLEET_SIMULATOR_DEVICES required")
	}

	sim, err := simulator.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Simulator.Interval, devices, logger)
	if err != nil {
		return err
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		metrics.IncHTTPRequest(r.Method, strconv.Itoa(resp.status))
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush passes through so event streams keep working behind the
// middleware.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
