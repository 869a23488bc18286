package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/radiusd/internal/config"
	"github.com/vitalvas/radiusd/pkg/client"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// lockedBuffer is written by server goroutines and read by the test
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *lockedBuffer) String() string {
	return string(b.Bytes())
}

const testPolicy = `
users:
  - name: "ec:30:b3:6d:24:6a"
    session_timeout: 3600
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPolicy), 0o600))

	return &config.Config{
		AuthAddr:     "127.0.0.1:0",
		AcctAddr:     "127.0.0.1:0",
		Secret:       "test123",
		Policy:       path,
		DuplicateTTL: time.Minute,
		Workers:      2,
	}
}

// serve runs srv on a loopback socket and returns its address
func serve(t *testing.T, run func(context.Context, net.PacketConn) error) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, conn) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	return conn.LocalAddr().String()
}

func TestNewAppEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()

	var audit lockedBuffer
	a, err := newApp(context.Background(), cfg, log.Discard(), &audit)
	require.NoError(t, err)
	t.Cleanup(a.close)

	require.NotNil(t, a.auth)
	require.NotNil(t, a.acct)

	authAddr := serve(t, a.auth.Serve)
	acctAddr := serve(t, a.acct.Serve)

	authClient, err := client.New(client.Config{Addr: authAddr, Secret: []byte(cfg.Secret), Timeout: time.Second})
	require.NoError(t, err)

	resp, err := authClient.AccessRequest(context.Background(), packet.UserName("ec:30:b3:6d:24:6a"))
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccessAccept, resp.Code)

	resp, err = authClient.AccessRequest(context.Background(), packet.UserName("someone"))
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccessReject, resp.Code)

	lines := bytes.Split(bytes.TrimSpace(audit.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry auditLog
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "Access-Request", entry.Request.Code)
	assert.Equal(t, []string{"ec:30:b3:6d:24:6a"}, entry.Request.Attributes["User-Name"])
	require.NotNil(t, entry.Response)
	assert.Equal(t, "Access-Accept", entry.Response.Code)
	assert.Equal(t, []string{"3600"}, entry.Response.Attributes["Session-Timeout"])

	acctClient, err := client.New(client.Config{Addr: acctAddr, Secret: []byte(cfg.Secret), Timeout: time.Second})
	require.NoError(t, err)

	resp, err = acctClient.AccountingRequest(context.Background(),
		packet.NewIntegerAttribute(packet.AttrAcctStatusType, packet.AcctStatusStart),
		packet.NewStringAttribute(packet.AttrAcctSessionID, "sess-1"),
	)
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccountingResponse, resp.Code)

	active, err := mr.Members("radiusd:acct:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, active)
}

func TestNewAppWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Policy = ""

	var buf lockedBuffer
	logger := log.New(log.Options{Output: &buf})

	a, err := newApp(context.Background(), cfg, logger, nil)
	require.NoError(t, err)
	t.Cleanup(a.close)

	assert.Contains(t, buf.String(), "every Access-Request will be rejected")
	assert.Contains(t, buf.String(), "accounting is only logged")

	acctAddr := serve(t, a.acct.Serve)

	c, err := client.New(client.Config{Addr: acctAddr, Secret: []byte(cfg.Secret), Timeout: time.Second})
	require.NoError(t, err)

	resp, err := c.AccountingRequest(context.Background(), packet.NewStringAttribute(packet.AttrAcctSessionID, "sess-9"))
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccountingResponse, resp.Code)
	assert.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("sess-9"))
	}, time.Second, 10*time.Millisecond)
}

func TestNewAppSingleEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.AcctAddr = ""

	a, err := newApp(context.Background(), cfg, log.Discard(), nil)
	require.NoError(t, err)

	assert.NotNil(t, a.auth)
	assert.Nil(t, a.acct)
}

func TestNewAppErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing dictionary", mutate: func(c *config.Config) { c.Dictionary = "/nonexistent/dictionary" }},
		{name: "missing policy", mutate: func(c *config.Config) { c.Policy = "/nonexistent/policy.yaml" }},
		{name: "redis down", mutate: func(c *config.Config) { c.RedisAddr = "127.0.0.1:1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err := newApp(context.Background(), cfg, log.Discard(), nil)
			assert.Error(t, err)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), log.Discard(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	assert.Eventually(t, func() bool {
		return a.auth.Addr() != nil && a.acct.Addr() != nil
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunListenFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.AcctAddr = "256.0.0.1:1813"

	a, err := newApp(context.Background(), cfg, log.Discard(), nil)
	require.NoError(t, err)

	assert.Error(t, a.run(context.Background()))
}
