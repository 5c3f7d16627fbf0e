package wire

import (
	"net"
	"testing"

	"github.com/SimonWaldherr/bongodb/internal/concurrency"
	"github.com/SimonWaldherr/bongodb/internal/engine"
	"github.com/SimonWaldherr/bongodb/internal/storage"
)

func newTestExecutor(t *testing.T) *engine.Executor {
	t.Helper()
	cat, err := storage.OpenOrCreate(t.TempDir(), true)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return engine.New(cat, concurrency.New(), false)
}

func roundTrip(t *testing.T, conn net.Conn, sql string) Response {
	t.Helper()
	if err := writeFrame(conn, Request{SQL: sql}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	var resp Response
	if err := readFrame(conn, &resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func TestServeHandlesRequestsOverConnection(t *testing.T) {
	ex := newTestExecutor(t)
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		Serve(server, ex)
		close(done)
	}()

	resp := roundTrip(t, client, "CREATE TABLE Person (id INT, name VARCHAR(16))")
	if resp.Successful != 0 {
		t.Fatalf("expected success, got %+v", resp)
	}

	resp = roundTrip(t, client, "INSERT INTO Person (id,name) VALUES (1,'Ana')")
	if resp.Successful != 0 {
		t.Fatalf("expected success, got %+v", resp)
	}

	resp = roundTrip(t, client, "SELECT * FROM Person")
	if resp.Successful != 0 || len(resp.Data) != 1 {
		t.Fatalf("expected one row, got %+v", resp)
	}

	resp = roundTrip(t, client, "SELEC bad syntax")
	if resp.Successful != 1 {
		t.Fatalf("expected successful=1 for parse error, got %+v", resp)
	}

	resp = roundTrip(t, client, "SELECT * FROM Ghost")
	if resp.Successful != 2 {
		t.Fatalf("expected successful=2 for schema error, got %+v", resp)
	}

	client.Close()
	<-done
}
