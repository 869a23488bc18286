// Package acctstore records Accounting-Request packets in Redis.
//
// Retransmissions are recognised by the tuple identifier, source address and
// request authenticator and recorded once. Each recorded packet becomes an
// event hash keyed by a random UUID; events are indexed per Acct-Session-Id
// and sessions between Start and Stop are kept in an active set.
package acctstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
	"github.com/vitalvas/radiusd/pkg/server"
)

const (
	// DefaultPrefix namespaces every key written by the store
	DefaultPrefix = "radiusd:"
	// DefaultDuplicateTTL is how long a request tuple is remembered
	DefaultDuplicateTTL = 30 * time.Second

	connectTimeout = 5 * time.Second
)

// Key suffixes below the prefix
const (
	keySeen    = "acct:seen:"
	keyEvent   = "acct:event:"
	keySession = "acct:session:"
	keyActive  = "acct:active"
)

var (
	// ErrUnavailable wraps Redis failures
	ErrUnavailable = errors.New("accounting store unavailable")
	// ErrNotFound is returned for unknown events
	ErrNotFound = errors.New("not found")
)

// Options configures a Store
type Options struct {
	Prefix       string
	DuplicateTTL time.Duration
	// EventTTL expires event hashes; zero keeps them
	EventTTL time.Duration
	Logger   log.Logger
}

// Store is a server.AccountingHandler backed by Redis
type Store struct {
	rdb          redis.Cmdable
	prefix       string
	duplicateTTL time.Duration
	eventTTL     time.Duration
	logger       log.Logger
	now          func() time.Time
}

var _ server.AccountingHandler = (*Store)(nil)

// Connect opens a Redis client and checks it with PING
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return rdb, nil
}

// New creates a Store on top of rdb
func New(rdb redis.Cmdable, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.DuplicateTTL <= 0 {
		opts.DuplicateTTL = DefaultDuplicateTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	return &Store{
		rdb:          rdb,
		prefix:       opts.Prefix,
		duplicateTTL: opts.DuplicateTTL,
		eventTTL:     opts.EventTTL,
		logger:       opts.Logger,
		now:          time.Now,
	}
}

// ServeAccounting records req unless the same request was already recorded
func (s *Store) ServeAccounting(ctx context.Context, req *packet.Packet) error {
	source := "unknown"
	if addr, ok := server.RemoteAddr(ctx); ok {
		source = addr.String()
	}

	eventID := uuid.NewString()
	seenKey := s.prefix + keySeen + requestKey(source, req)

	fresh, err := s.rdb.SetNX(ctx, seenKey, eventID, s.duplicateTTL).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !fresh {
		s.logger.Debugf("duplicate Accounting-Request id=%d from %s", req.Identifier, source)
		return nil
	}

	event := newEvent(eventID, source, req, s.now())
	if err := s.record(ctx, event); err != nil {
		// let a retransmission try again
		if delErr := s.rdb.Del(ctx, seenKey).Err(); delErr != nil {
			s.logger.Warnf("failed to clear duplicate marker %s: %v", seenKey, delErr)
		}
		return err
	}

	s.logger.Debugf("recorded %s event %s for session %q", event.Status, event.ID, event.SessionID)
	return nil
}

func (s *Store) record(ctx context.Context, event *Event) error {
	eventKey := s.prefix + keyEvent + event.ID

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, eventKey, event.fields())
		if s.eventTTL > 0 {
			pipe.Expire(ctx, eventKey, s.eventTTL)
		}

		if event.SessionID == "" {
			return nil
		}

		pipe.RPush(ctx, s.prefix+keySession+event.SessionID, event.ID)

		switch event.StatusType {
		case packet.AcctStatusStart, packet.AcctStatusInterimUpdate:
			pipe.SAdd(ctx, s.prefix+keyActive, event.SessionID)
		case packet.AcctStatusStop:
			pipe.SRem(ctx, s.prefix+keyActive, event.SessionID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Event returns a recorded event
func (s *Store) Event(ctx context.Context, id string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, s.prefix+keyEvent+id).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return fields, nil
}

// SessionEvents returns the event IDs of a session in arrival order
func (s *Store) SessionEvents(ctx context.Context, sessionID string) ([]string, error) {
	ids, err := s.rdb.LRange(ctx, s.prefix+keySession+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// ActiveSessions returns the sessions that started and have not stopped
func (s *Store) ActiveSessions(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.prefix+keyActive).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

func requestKey(source string, req *packet.Packet) string {
	return fmt.Sprintf("%s:%d:%x", source, req.Identifier, req.Authenticator)
}

// Event is the recorded form of an Accounting-Request
type Event struct {
	ID           string
	Source       string
	ReceivedAt   time.Time
	StatusType   uint32
	Status       string
	SessionID    string
	UserName     string
	NASAddress   string
	NASID        string
	CallingID    string
	FramedIP     string
	InputOctets  uint32
	OutputOctets uint32
	SessionTime  uint32
}

func newEvent(id, source string, req *packet.Packet, now time.Time) *Event {
	e := &Event{
		ID:         id,
		Source:     source,
		ReceivedAt: now.UTC(),
	}

	if attr, ok := req.GetAttribute(packet.AttrAcctStatusType); ok {
		e.StatusType, _ = attr.Uint32()
	}
	e.Status = statusName(e.StatusType)

	e.SessionID = stringValue(req, packet.AttrAcctSessionID)
	e.UserName = stringValue(req, packet.AttrUserName)
	e.NASID = stringValue(req, packet.AttrNASIdentifier)
	e.CallingID = stringValue(req, packet.AttrCallingStationID)
	e.NASAddress = ipValue(req, packet.AttrNASIPAddress)
	e.FramedIP = ipValue(req, packet.AttrFramedIPAddress)
	e.InputOctets = intValue(req, packet.AttrAcctInputOctets)
	e.OutputOctets = intValue(req, packet.AttrAcctOutputOctets)
	e.SessionTime = intValue(req, packet.AttrAcctSessionTime)

	return e
}

func (e *Event) fields() map[string]any {
	fields := map[string]any{
		"source":      e.Source,
		"received_at": e.ReceivedAt.Format(time.RFC3339Nano),
		"status":      e.Status,
	}

	optional := map[string]string{
		"session_id":    e.SessionID,
		"user_name":     e.UserName,
		"nas_address":   e.NASAddress,
		"nas_id":        e.NASID,
		"calling_id":    e.CallingID,
		"framed_ip":     e.FramedIP,
		"input_octets":  counter(e.InputOctets),
		"output_octets": counter(e.OutputOctets),
		"session_time":  counter(e.SessionTime),
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}

	return fields
}

func counter(v uint32) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(v), 10)
}

func statusName(status uint32) string {
	switch status {
	case packet.AcctStatusStart:
		return "Start"
	case packet.AcctStatusStop:
		return "Stop"
	case packet.AcctStatusInterimUpdate:
		return "Interim-Update"
	case packet.AcctStatusAccountingOn:
		return "Accounting-On"
	case packet.AcctStatusAccountingOff:
		return "Accounting-Off"
	case 0:
		return "Unknown"
	default:
		return "Status(" + strconv.FormatUint(uint64(status), 10) + ")"
	}
}

func stringValue(req *packet.Packet, attrType uint8) string {
	attr, ok := req.GetAttribute(attrType)
	if !ok {
		return ""
	}
	return string(attr.Value)
}

func intValue(req *packet.Packet, attrType uint8) uint32 {
	attr, ok := req.GetAttribute(attrType)
	if !ok {
		return 0
	}
	v, _ := attr.Uint32()
	return v
}

func ipValue(req *packet.Packet, attrType uint8) string {
	attr, ok := req.GetAttribute(attrType)
	if !ok || len(attr.Value) != net.IPv4len {
		return ""
	}
	return net.IP(attr.Value).String()
}
