package admin

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"handoff/signal/internal/health"
)

// ServiceName is the gRPC health service name reported for signaling.
const ServiceName = "handoff.signal"

// GRPC wraps the standard gRPC health service with a readiness watcher.
type GRPC struct {
	Server *grpc.Server
	Health *grpchealth.Server
}

func NewGRPC() *GRPC {
	kap := keepalive.ServerParameters{
		MaxConnectionIdle: 2 * time.Minute,
		Time:              30 * time.Second,
		Timeout:           10 * time.Second,
	}
	kasp := keepalive.EnforcementPolicy{
		MinTime:             10 * time.Second,
		PermitWithoutStream: true,
	}
	s := grpc.NewServer(grpc.KeepaliveParams(kap), grpc.KeepaliveEnforcementPolicy(kasp))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &GRPC{Server: s, Health: hs}
}

func (g *GRPC) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	g.Health.SetServingStatus("", st)
	g.Health.SetServingStatus(ServiceName, st)
}

// WatchReadiness mirrors the checker's readiness into the health service
// every interval until ctx is done.
func (g *GRPC) WatchReadiness(ctx context.Context, c *health.Checker, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	prev := false
	check := func() {
		res := c.Ready(ctx)
		if res.OK != prev {
			log.Info().Str("module", "admin").Bool("serving", res.OK).Str("error", res.Error).Msg("readiness changed")
			prev = res.OK
		}
		g.SetServing(res.OK)
	}
	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Shutdown marks the service NOT_SERVING and stops accepting RPCs.
func (g *GRPC) Shutdown() {
	g.Health.Shutdown()
	g.Server.GracefulStop()
}
