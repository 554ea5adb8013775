package server

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"

	platformgrpc "github.com/louisbranch/arkomp/internal/platform/grpc"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage/sqlite"
)

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("expected error for empty HTTP address")
	}
}

func TestNewServerFailsWhenAddressInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	if _, err := NewServer(Config{HTTPAddr: busy.Addr().String()}); err == nil {
		t.Fatal("expected bind failure for busy HTTP address")
	}
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0", GRPCAddr: busy.Addr().String()}); err == nil {
		t.Fatal("expected bind failure for busy gRPC address")
	}
}

func TestServeNilServer(t *testing.T) {
	var s *Server
	if err := s.Serve(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestServeReportsHealth(t *testing.T) {
	s := newTestServer(t, Config{GRPCAddr: "127.0.0.1:0", FrameRate: 30})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	conn, err := grpc.NewClient(s.GRPCAddr(), platformgrpc.ClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial gRPC: %v", err)
	}
	defer conn.Close()
	waitCtx, waitCancel := context.WithTimeout(ctx, 3*time.Second)
	defer waitCancel()
	if err := platformgrpc.WaitForHealth(waitCtx, conn, HealthService, nil); err != nil {
		t.Fatalf("health: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}

func TestEndToEndWithJournal(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	s := newTestServer(t, Config{JournalPath: journalPath, FrameRate: 60})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	conn := dialWS(t, "http://"+s.Addr(), "/ws")
	steps := []struct {
		raw  string
		want string
	}{
		{fmt.Sprintf(`{"command":"LoadPlugin","name":"crow","path":%q}`, writeCrowScript(t)), "Loaded plugin: crow"},
		{`{"command":"SpawnOperator","name":"crow","position":[0,0]}`, "spawned operator crow at (0, 0)"},
		{`{"command":"ScheduleEvent","event":{"MoveTo":{"op_id":"crow","pos":[5.0,5.0]}}}`, `Scheduled event {"MoveTo":{"op_id":"crow","pos":[5,5]}}`},
		{`{"command":"ScheduleEvent","event":{"Sleep":{"op_id":"ghost"}}}`, `Scheduled event {"Sleep":{"op_id":"ghost"}}`},
	}
	for _, step := range steps {
		resp := sendCommand(t, conn, step.raw)
		if !resp.OK() || resp.Message != step.want {
			t.Fatalf("%s: response = %v, want Success(%s)", step.raw, resp, step.want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	journal, err := sqlite.Open(journalPath)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer journal.Close()
	records, err := journal.ListDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	outcomes := map[string]storage.Outcome{}
	for _, r := range records {
		outcomes[r.OperatorID] = r.Outcome
	}
	if len(records) != 2 || outcomes["crow"] != storage.OutcomeDelivered || outcomes["ghost"] != storage.OutcomeDropped {
		t.Fatalf("unexpected deliveries %+v", records)
	}
}
