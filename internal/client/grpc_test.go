package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/server"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthClient_Check(t *testing.T) {
	hs := health.NewServer()
	reporter := server.NewHealthReporter(hs)
	srv := server.NewGRPCServer(hs)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	c, err := NewHealthClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := c.Check(ctx, server.ServiceName)
	if err != nil || status != "SERVING" {
		t.Fatalf("Check = %q, %v", status, err)
	}

	_ = reporter.Close()
	status, err = c.Check(ctx, "")
	if err != nil || status != "NOT_SERVING" {
		t.Fatalf("Check after close = %q, %v", status, err)
	}

	if _, err := c.Check(ctx, "unknown.Service"); err == nil {
		t.Fatal("expected NotFound for an unknown service")
	}
}
