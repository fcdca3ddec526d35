// Package api provides the operations endpoints of the tool server: HTTP
// liveness, Prometheus metrics and a journal view, plus the standard gRPC
// health service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"trademcp/internal/config"
	"trademcp/internal/engine"
	"trademcp/internal/telemetry"
)

// ServiceName is the name reported by the gRPC health service.
const ServiceName = "trademcp"

// Server hosts the HTTP operations listener and the gRPC health listener.
type Server struct {
	cfg     config.Server
	engine  *engine.Engine
	metrics *telemetry.Metrics
	health  *health.Server
	serving atomic.Bool
	log     *slog.Logger

	httpServer *http.Server
	grpcServer *grpc.Server
}

// NewServer creates a Server for the given listener configuration. The
// engine backs the journal endpoint; metrics may be nil.
func NewServer(cfg config.Server, eng *engine.Engine, metrics *telemetry.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		metrics: metrics,
		health:  health.NewServer(),
		log:     slog.Default().With("component", "api"),
	}
	s.SetServing(true)
	return s
}

// SetServing flips both health surfaces between serving and not serving.
func (s *Server) SetServing(ok bool) {
	s.serving.Store(ok)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// ListenAndServe binds the HTTP listener on OpsPort and the gRPC listener
// on GRPCPort (a zero port disables that listener), then serves until the
// context is cancelled or a listener fails. Both listeners are bound before
// either serves, and every exit path shuts down whatever is running.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var httpLis, grpcLis net.Listener
	if s.cfg.OpsPort > 0 {
		lis, err := s.listen("ops", s.cfg.OpsPort)
		if err != nil {
			return err
		}
		httpLis = lis
	}
	if s.cfg.GRPCPort > 0 {
		lis, err := s.listen("grpc", s.cfg.GRPCPort)
		if err != nil {
			if httpLis != nil {
				httpLis.Close()
			}
			return err
		}
		grpcLis = lis
	}

	errc := make(chan error, 2)
	if httpLis != nil {
		s.httpServer = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			s.log.Info("ops server listening", "addr", httpLis.Addr().String())
			if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("ops server: %w", err)
			}
		}()
	}
	if grpcLis != nil {
		s.grpcServer = s.newGRPCServer()
		go func() {
			s.log.Info("grpc health listening", "addr", grpcLis.Addr().String())
			if err := s.grpcServer.Serve(grpcLis); err != nil {
				errc <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		s.log.Error("listener failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := s.Shutdown(shutdownCtx); err == nil {
		err = serr
	}
	return err
}

func (s *Server) listen(name string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s listen %s: %w", name, addr, err)
	}
	return lis, nil
}

// Shutdown marks the service not serving, then stops both listeners,
// waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetServing(false)
	s.health.Shutdown()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.stopGRPC(ctx)
	return err
}
