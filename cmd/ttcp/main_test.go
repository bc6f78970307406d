package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ttcp/internal/config"
	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/testutil/testlog"
	"github.com/danmuck/ttcp/internal/transport"
)

func loopbackOptions(t *testing.T, ln net.Listener) config.Options {
	t.Helper()
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	opts := config.Default()
	opts.Host = "127.0.0.1"
	opts.Bind = "127.0.0.1"
	opts.Once = true
	opts.Length = 4096
	opts.Number = 25
	if opts.Port, err = strconv.Atoi(port); err != nil {
		t.Fatalf("port: %v", err)
	}
	return opts
}

func TestTransmitReceiveLoopback(t *testing.T) {
	testlog.Start(t)
	ln, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	opts := loopbackOptions(t, ln)

	var rxOut bytes.Buffer
	done := make(chan error, 1)
	go func() {
		rx := opts
		rx.Role = config.RoleReceive
		done <- runReceive(context.Background(), rx, ln, &rxOut)
	}()

	tx := opts
	tx.Role = config.RoleTransmit
	var txOut bytes.Buffer
	stats, err := runTransmit(context.Background(), tx, &txOut)
	if err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if stats.Frames != 25 || stats.PayloadBytes != 25*4096 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("receiver did not finish")
	}
	if !strings.Contains(txOut.String(), "transmit: 25 x 4096 bytes") {
		t.Fatalf("unexpected transmit summary %q", txOut.String())
	}
	if !strings.Contains(rxOut.String(), "receive: 25 x 4096 bytes") {
		t.Fatalf("unexpected receive summary %q", rxOut.String())
	}
}

func TestReceiveOnceReportsSessionError(t *testing.T) {
	testlog.Start(t)
	ln, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	opts := loopbackOptions(t, ln)
	opts.Role = config.RoleReceive

	done := make(chan error, 1)
	go func() {
		done <- runReceive(context.Background(), opts, ln, &bytes.Buffer{})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	// half a descriptor, then close
	_, _ = conn.Write([]byte{0, 0, 0, 1})
	_ = conn.Close()

	select {
	case err := <-done:
		if !errors.Is(err, protocol.ErrProtocol) {
			t.Fatalf("expected protocol error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("receiver did not finish")
	}
}

func TestTransmitWithoutReceiverIsConnectionError(t *testing.T) {
	testlog.Start(t)
	ln, err := transport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	opts := loopbackOptions(t, ln)
	_ = ln.Close()
	opts.Role = config.RoleTransmit

	_, err = runTransmit(context.Background(), opts, &bytes.Buffer{})
	if !errors.Is(err, protocol.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestRootValidatesFlags(t *testing.T) {
	testlog.Start(t)
	root := newRootCmd()
	root.SetArgs([]string{"transmit", "--length", "0"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected invalid options, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ttcp.toml")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", path})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "--config", path, "--port", "5001"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "port = 5001") {
		t.Fatalf("flag override missing from output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "length = 1000") {
		t.Fatalf("file value missing from output:\n%s", out.String())
	}
}

func TestTransmitLengthAboveReceiveLimit(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"transmit", "--host", "127.0.0.1", "--port", port, "--length", "70000000"})
	err = root.ExecuteContext(context.Background())
	// validation passes, so the run gets as far as dialing
	if errors.Is(err, config.ErrInvalid) || !errors.Is(err, protocol.ErrConnection) {
		t.Fatalf("expected connection error after validation, got %v", err)
	}
}

func TestReceiveRejectsNegativeMaxPayload(t *testing.T) {
	testlog.Start(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"receive", "--max-payload=-1"})
	if err := root.ExecuteContext(context.Background()); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected invalid options, got %v", err)
	}
}
