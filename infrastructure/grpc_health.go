package infrastructure

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service name reported alongside the overall status
const HealthServiceName = "raffle"

// HealthCheck reports whether one dependency is usable
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// GRPCHealthServer serves grpc.health.v1 from periodic dependency checks
type GRPCHealthServer struct {
	addr     string
	checks   []HealthCheck
	interval time.Duration

	server   *grpc.Server
	health   *health.Server
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewGRPCHealthServer creates a health server; every check must pass for SERVING
func NewGRPCHealthServer(addr string, interval time.Duration, checks ...HealthCheck) *GRPCHealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCHealthServer{
		addr:     addr,
		checks:   checks,
		interval: interval,
		health:   h,
		stopChan: make(chan struct{}),
	}
}

// Start listens on the configured address and begins polling the checks
func (s *GRPCHealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.server = grpc.NewServer()
	healthpb.RegisterHealthServer(s.server, s.health)

	go func() {
		if err := s.server.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC health server stopped")
		}
	}()

	s.UpdateStatus(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-time.After(s.interval):
				s.UpdateStatus(ctx)
			}
		}
	}()

	log.WithField("addr", s.addr).Info("gRPC health server started")
	return nil
}

// UpdateStatus runs every check once and publishes the result
func (s *GRPCHealthServer) UpdateStatus(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check.Check(checkCtx)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"check": check.Name,
				"error": err,
			}).Warn("Health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthServiceName, status)
	return status
}

// Health exposes the underlying health service
func (s *GRPCHealthServer) Health() healthpb.HealthServer {
	return s.health
}

// Stop shuts the server down
func (s *GRPCHealthServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.health.Shutdown()
		if s.server != nil {
			s.server.GracefulStop()
		}
	})
}
