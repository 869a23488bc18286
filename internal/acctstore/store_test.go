package acctstore

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/radiusd/pkg/packet"
	"github.com/vitalvas/radiusd/pkg/server"
)

var nasAddr = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 40000}

func setupStore(t *testing.T, opts Options) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := New(rdb, opts)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return mr, s
}

func accountingRequest(id uint8, status uint32, sessionID string, extra ...*packet.Attribute) *packet.Packet {
	req := packet.New(packet.CodeAccountingRequest, id)
	req.Authenticator = [16]byte{id, 1, 2, 3}
	req.AddAttribute(packet.NewIntegerAttribute(packet.AttrAcctStatusType, status))
	if sessionID != "" {
		req.AddAttribute(packet.NewStringAttribute(packet.AttrAcctSessionID, sessionID))
	}
	for _, attr := range extra {
		req.AddAttribute(attr)
	}
	return req
}

func nasContext() context.Context {
	return server.WithRemoteAddr(context.Background(), nasAddr)
}

func TestNewDefaults(t *testing.T) {
	_, s := setupStore(t, Options{})

	assert.Equal(t, DefaultPrefix, s.prefix)
	assert.Equal(t, DefaultDuplicateTTL, s.duplicateTTL)
	assert.NotNil(t, s.logger)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	rdb, err := Connect(context.Background(), addr, "", 0)
	require.NoError(t, err)
	rdb.Close()

	mr.Close()
	_, err = Connect(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func TestRecordEvent(t *testing.T) {
	_, s := setupStore(t, Options{})
	ctx := nasContext()

	req := accountingRequest(1, packet.AcctStatusStart, "sess-1",
		packet.UserName("ec:30:b3:6d:24:6a"),
		packet.NewAttribute(packet.AttrNASIPAddress, []byte{10, 0, 0, 1}),
		packet.NewStringAttribute(packet.AttrCallingStationID, "EC-30-B3-6D-24-6A"),
	)
	require.NoError(t, s.ServeAccounting(ctx, req))

	ids, err := s.SessionEvents(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	event, err := s.Event(context.Background(), ids[0])
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"source":      "192.0.2.10:40000",
		"received_at": "2026-01-02T03:04:05Z",
		"status":      "Start",
		"session_id":  "sess-1",
		"user_name":   "ec:30:b3:6d:24:6a",
		"nas_address": "10.0.0.1",
		"calling_id":  "EC-30-B3-6D-24-6A",
	}, event)

	active, err := s.ActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, active)
}

func TestSessionLifecycle(t *testing.T) {
	_, s := setupStore(t, Options{})
	ctx := nasContext()

	require.NoError(t, s.ServeAccounting(ctx, accountingRequest(1, packet.AcctStatusStart, "sess-1")))
	require.NoError(t, s.ServeAccounting(ctx, accountingRequest(2, packet.AcctStatusInterimUpdate, "sess-1",
		packet.NewIntegerAttribute(packet.AttrAcctInputOctets, 1024),
		packet.NewIntegerAttribute(packet.AttrAcctOutputOctets, 2048),
		packet.NewIntegerAttribute(packet.AttrAcctSessionTime, 60),
	)))
	require.NoError(t, s.ServeAccounting(ctx, accountingRequest(3, packet.AcctStatusStop, "sess-1")))

	ids, err := s.SessionEvents(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, ids, 3)

	interim, err := s.Event(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, "Interim-Update", interim["status"])
	assert.Equal(t, "1024", interim["input_octets"])
	assert.Equal(t, "2048", interim["output_octets"])
	assert.Equal(t, "60", interim["session_time"])

	stop, err := s.Event(context.Background(), ids[2])
	require.NoError(t, err)
	assert.Equal(t, "Stop", stop["status"])

	active, err := s.ActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDuplicateSuppression(t *testing.T) {
	mr, s := setupStore(t, Options{DuplicateTTL: 10 * time.Second})
	ctx := nasContext()

	req := accountingRequest(5, packet.AcctStatusStart, "sess-dup")

	require.NoError(t, s.ServeAccounting(ctx, req))
	require.NoError(t, s.ServeAccounting(ctx, req))

	ids, err := s.SessionEvents(context.Background(), "sess-dup")
	require.NoError(t, err)
	assert.Len(t, ids, 1, "retransmission must not be recorded twice")

	// same identifier and authenticator from another source is a different request
	other := server.WithRemoteAddr(context.Background(), &net.UDPAddr{IP: net.IPv4(192, 0, 2, 11), Port: 40000})
	require.NoError(t, s.ServeAccounting(other, req))

	// a new authenticator is a new request
	next := accountingRequest(5, packet.AcctStatusStart, "sess-dup")
	next.Authenticator[15] = 0xff
	require.NoError(t, s.ServeAccounting(ctx, next))

	ids, err = s.SessionEvents(context.Background(), "sess-dup")
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	mr.FastForward(11 * time.Second)
	require.NoError(t, s.ServeAccounting(ctx, req))

	ids, err = s.SessionEvents(context.Background(), "sess-dup")
	require.NoError(t, err)
	assert.Len(t, ids, 4, "marker expired")
}

func TestEventTTL(t *testing.T) {
	mr, s := setupStore(t, Options{EventTTL: time.Minute, Prefix: "test:"})

	require.NoError(t, s.ServeAccounting(nasContext(), accountingRequest(1, packet.AcctStatusAccountingOn, "")))

	const eventPrefix = "test:acct:event:"

	keys := mr.Keys()
	var eventKey string
	for _, k := range keys {
		if strings.HasPrefix(k, eventPrefix) {
			eventKey = k
		}
	}
	require.NotEmpty(t, eventKey, "keys: %v", keys)
	assert.Equal(t, time.Minute, mr.TTL(eventKey))

	event, err := s.Event(context.Background(), strings.TrimPrefix(eventKey, eventPrefix))
	require.NoError(t, err)
	assert.Equal(t, "Accounting-On", event["status"])
	assert.NotContains(t, event, "session_id")

	active, err := s.ActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestUnknownSource(t *testing.T) {
	_, s := setupStore(t, Options{})

	require.NoError(t, s.ServeAccounting(context.Background(), accountingRequest(1, 0, "sess-x")))

	ids, err := s.SessionEvents(context.Background(), "sess-x")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	event, err := s.Event(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "unknown", event["source"])
	assert.Equal(t, "Unknown", event["status"])
}

func TestEventNotFound(t *testing.T) {
	_, s := setupStore(t, Options{})

	_, err := s.Event(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisUnavailable(t *testing.T) {
	mr, s := setupStore(t, Options{})
	mr.Close()

	err := s.ServeAccounting(nasContext(), accountingRequest(1, packet.AcctStatusStart, "sess-1"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStatusName(t *testing.T) {
	tests := []struct {
		status   uint32
		expected string
	}{
		{packet.AcctStatusStart, "Start"},
		{packet.AcctStatusStop, "Stop"},
		{packet.AcctStatusInterimUpdate, "Interim-Update"},
		{packet.AcctStatusAccountingOn, "Accounting-On"},
		{packet.AcctStatusAccountingOff, "Accounting-Off"},
		{0, "Unknown"},
		{15, "Status(15)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusName(tt.status))
		})
	}
}
