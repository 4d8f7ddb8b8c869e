package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	ws "nhooyr.io/websocket"

	"handoff/signal/internal/admin"
	"handoff/signal/internal/logging"
	"handoff/signal/internal/signaling"
)

func main() {
	base := pflag.String("url", "ws://localhost:8080/api/ws/file-share-session", "signaling WebSocket URL")
	grpcAddr := pflag.String("grpc", "localhost:9090", "admin gRPC health address (empty to skip)")
	code := pflag.String("code", "E2E-"+uuid.NewString()[:8], "session code")
	timeout := pflag.Duration("timeout", 10*time.Second, "overall timeout")
	pflag.Parse()
	_ = logging.Setup("info", "console")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("=== Signaling E2E ===\n")
	fmt.Printf("Code: %s\n\n", *code)

	if *grpcAddr != "" {
		fmt.Println("[0] gRPC health check...")
		if err := checkHealth(ctx, *grpcAddr); err != nil {
			log.Fatal().Err(err).Msg("health")
		}
	}

	fmt.Println("[1] Creator connects and sends offer...")
	creator := dial(ctx, *base, *code, signaling.RoleCreator)
	defer creator.Close(ws.StatusNormalClosure, "e2e done")
	write(ctx, creator, signaling.Message{Type: signaling.TypeOffer, Offer: json.RawMessage(`{"type":"offer","sdp":"v=0 e2e"}`)})
	expect(ctx, creator, signaling.TypeOfferStored)

	fmt.Println("[2] Joiner connects and receives offer...")
	joiner := dial(ctx, *base, *code, signaling.RoleJoiner)
	defer joiner.Close(ws.StatusNormalClosure, "e2e done")
	expect(ctx, joiner, signaling.TypeOffer)

	fmt.Println("[3] Joiner answers...")
	write(ctx, joiner, signaling.Message{Type: signaling.TypeAnswer, Answer: json.RawMessage(`{"type":"answer","sdp":"v=0 e2e"}`)})
	expect(ctx, joiner, signaling.TypeAnswerStored)
	expect(ctx, creator, signaling.TypeAnswer)

	fmt.Println("[4] Ping...")
	write(ctx, joiner, signaling.Message{Type: signaling.TypePing})
	expect(ctx, joiner, signaling.TypePong)

	fmt.Println("\n=== PASS ===")
}

func checkHealth(ctx context.Context, addr string) error {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer cc.Close()
	resp, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{Service: admin.ServiceName})
	if err != nil {
		return err
	}
	fmt.Printf("    status: %s\n", resp.GetStatus())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("not serving: %s", resp.GetStatus())
	}
	return nil
}

func dial(ctx context.Context, base, code string, role signaling.Role) *ws.Conn {
	u, err := url.Parse(base)
	if err != nil {
		log.Fatal().Err(err).Msg("parse url")
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("role", string(role))
	u.RawQuery = q.Encode()
	c, _, err := ws.Dial(ctx, u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Str("role", string(role)).Msg("dial")
	}
	return c
}

func write(ctx context.Context, c *ws.Conn, m signaling.Message) {
	b, _ := json.Marshal(m)
	if err := c.Write(ctx, ws.MessageText, b); err != nil {
		log.Fatal().Err(err).Msg("write")
	}
}

func expect(ctx context.Context, c *ws.Conn, typ string) signaling.Message {
	_, data, err := c.Read(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("want", typ).Msg("read")
	}
	var m signaling.Message
	if err := json.Unmarshal(data, &m); err != nil {
		log.Fatal().Err(err).Msg("decode")
	}
	fmt.Printf("    <- %s\n", data)
	if m.Type != typ {
		fmt.Printf("\n=== FAIL: expected %s, got %s ===\n", typ, m.Type)
		os.Exit(1)
	}
	return m
}
