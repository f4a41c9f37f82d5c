package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ZondaOne/rhivo-app-sub003/api"
	"github.com/ZondaOne/rhivo-app-sub003/config"
	"github.com/ZondaOne/rhivo-app-sub003/docs"
	"github.com/ZondaOne/rhivo-app-sub003/internal/service/cleanup"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// CleanupService is the gRPC health service name that tracks the reservation sweeper.
const CleanupService = "booking.cleanup"

const healthPollInterval = 15 * time.Second

type HealthReporter interface {
	Health(ctx context.Context) (cleanup.Health, error)
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	conn       *grpc.ClientConn
	reporter   HealthReporter
	logger     *zap.Logger
}

// Run starts the gRPC health server and the HTTP server (REST API, gateway health
// endpoints, API docs) and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, apiHandler http.Handler, reporter HealthReporter) error {
	s, err := NewServers(cfg, logger, apiHandler, reporter)
	if err != nil {
		return err
	}
	defer s.conn.Close()

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.watchHealth(ctx)

	logger.Info("servers started",
		zap.String("http", cfg.HTTP.Address),
		zap.String("grpc", cfg.GRPC.Address))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		s.health.Shutdown()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.grpcServer.GracefulStop()
		return nil
	}
}

func NewServers(cfg *config.Config, logger *zap.Logger, apiHandler http.Handler, reporter HealthReporter) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(CleanupService, healthpb.HealthCheckResponse_UNKNOWN)

	conn, err := grpc.NewClient(cfg.GRPC.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial gRPC %s: %w", cfg.GRPC.Address, err)
	}

	s := &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		conn:       conn,
		reporter:   reporter,
		logger:     logger,
	}

	gw := runtime.NewServeMux(
		runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)),
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions: protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true},
		}),
	)
	if err := gw.HandlePath(http.MethodGet, "/healthz/cleanup", s.cleanupHealth); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register cleanup health: %w", err)
	}

	handler := http.NewServeMux()
	handler.Handle("/api/", apiHandler)
	handler.Handle("/healthz", gw)
	handler.Handle("/healthz/", gw)
	handler.HandleFunc(docs.SwaggerPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.Swagger)
	})
	handler.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL(docs.SwaggerPath)))

	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the HTTP routing tree.
func (s *Servers) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Servers) cleanupHealth(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h, err := s.reporter.Health(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.Unavailable(err))
		return
	}
	if !h.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}

// watchHealth mirrors the sweeper health into the gRPC health service, so /healthz?service=booking.cleanup
// and gRPC health probes agree with /healthz/cleanup.
func (s *Servers) watchHealth(ctx context.Context) {
	s.refreshHealth(ctx)

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refreshHealth(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Servers) refreshHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	h, err := s.reporter.Health(ctx)
	switch {
	case err != nil:
		s.logger.Warn("sweeper health unavailable", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	case !h.Healthy:
		s.logger.Warn("sweeper unhealthy", zap.Strings("reasons", h.Reasons))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(CleanupService, status)
}
