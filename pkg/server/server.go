package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vitalvas/radiusd/pkg/crypto"
	"github.com/vitalvas/radiusd/pkg/dictionaries"
	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// InternalErrorMessage is the Reply-Message sent when the access handler fails
const InternalErrorMessage = "Internal Error"

var (
	// ErrNoSecret is returned by New when the shared secret is empty
	ErrNoSecret = errors.New("shared secret is required")
	// ErrNoHandler is returned by New when the handler for the mode is missing
	ErrNoHandler = errors.New("handler is required")
)

// Mode selects which request code an endpoint serves
type Mode int

const (
	// ModeAuthentication serves Access-Request packets
	ModeAuthentication Mode = iota
	// ModeAccounting serves Accounting-Request packets
	ModeAccounting
)

func (m Mode) String() string {
	switch m {
	case ModeAuthentication:
		return "authentication"
	case ModeAccounting:
		return "accounting"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) requestCode() packet.Code {
	if m == ModeAccounting {
		return packet.CodeAccountingRequest
	}
	return packet.CodeAccessRequest
}

// Config configures a Server
type Config struct {
	Addr   string
	Secret []byte

	// Dictionary is used for request logging; nil loads the bundled default
	Dictionary *dictionary.Dictionary

	Mode Mode

	// AccessHandler is required in ModeAuthentication
	AccessHandler AccessHandler
	// AccountingHandler is required in ModeAccounting
	AccountingHandler AccountingHandler

	// Logger defaults to a text logger at info level
	Logger log.Logger

	// Workers bounds how many datagrams are handled at once; values below 1 mean 1
	Workers int
}

// Stats holds datagram counters
type Stats struct {
	Received  uint64
	Dropped   uint64
	Responses uint64
}

// Server is a RADIUS UDP endpoint running one receive loop
type Server struct {
	addr        string
	secret      []byte
	dict        *dictionary.Dictionary
	mode        Mode
	access      AccessHandler
	accounting  AccountingHandler
	middlewares []Middleware
	logger      log.Logger
	workers     int

	mu   sync.RWMutex
	conn net.PacketConn

	received  atomic.Uint64
	dropped   atomic.Uint64
	responses atomic.Uint64
}

// New creates a Server from cfg
func New(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}

	switch cfg.Mode {
	case ModeAuthentication:
		if cfg.AccessHandler == nil {
			return nil, fmt.Errorf("%w: access handler for %s mode", ErrNoHandler, cfg.Mode)
		}
	case ModeAccounting:
		if cfg.AccountingHandler == nil {
			return nil, fmt.Errorf("%w: accounting handler for %s mode", ErrNoHandler, cfg.Mode)
		}
	default:
		return nil, fmt.Errorf("unknown mode: %s", cfg.Mode)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewDefault()
	}

	dict := cfg.Dictionary
	if dict == nil {
		var err error
		dict, err = dictionaries.NewDefault(dictionary.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to load default dictionary: %w", err)
		}
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Server{
		addr:       cfg.Addr,
		secret:     cfg.Secret,
		dict:       dict,
		mode:       cfg.Mode,
		access:     cfg.AccessHandler,
		accounting: cfg.AccountingHandler,
		logger:     logger.WithField("mode", cfg.Mode.String()),
		workers:    workers,
	}, nil
}

// Serve runs an authentication endpoint on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, dict *dictionary.Dictionary, secret []byte, h AccessHandler) error {
	srv, err := New(Config{
		Addr:          addr,
		Secret:        secret,
		Dictionary:    dict,
		Mode:          ModeAuthentication,
		AccessHandler: h,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// ServeAccounting runs an accounting endpoint on addr until ctx is cancelled
func ServeAccounting(ctx context.Context, addr string, dict *dictionary.Dictionary, secret []byte, h AccountingHandler) error {
	srv, err := New(Config{
		Addr:              addr,
		Secret:            secret,
		Dictionary:        dict,
		Mode:              ModeAccounting,
		AccountingHandler: h,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

// Use adds middleware around the access handler.
// Middlewares are applied in the order they are added and must be registered before serving.
func (s *Server) Use(middleware Middleware) {
	s.middlewares = append(s.middlewares, middleware)
}

// Addr returns the bound address, or nil when the server is not serving
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stats returns a snapshot of the datagram counters
func (s *Server) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Dropped:   s.dropped.Load(),
		Responses: s.responses.Load(),
	}
}

// ListenAndServe binds the configured UDP address and calls Serve
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, conn)
}

// Serve receives datagrams from conn until ctx is cancelled or the
// connection fails. Cancellation returns nil; a receive or send failure is
// returned. conn is closed on return.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	s.logger.Infof("listening on %s", conn.LocalAddr())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	// unblock ReadFrom once the loop should stop
	stop := context.AfterFunc(gctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	handler := Chain(s.access, s.middlewares...)

	var readErr error
	buffer := make([]byte, packet.MaxPacketLength)

	for {
		n, addr, err := conn.ReadFrom(buffer)
		if err != nil {
			if gctx.Err() == nil {
				readErr = fmt.Errorf("failed to receive: %w", err)
			}
			break
		}

		s.received.Add(1)
		data := append([]byte(nil), buffer[:n]...)

		g.Go(func() error {
			return s.handleDatagram(gctx, conn, handler, data, addr)
		})
	}

	werr := g.Wait()

	s.logger.Infof("stopped listening on %s", conn.LocalAddr())

	if readErr != nil {
		return readErr
	}
	return werr
}

func (s *Server) handleDatagram(ctx context.Context, conn net.PacketConn, handler AccessHandler, data []byte, addr net.Addr) error {
	logger := s.logger.WithField("client", addr.String())

	req, err := packet.Decode(data)
	if err != nil {
		logger.Warnf("dropping malformed packet: %v", err)
		s.dropped.Add(1)
		return nil
	}

	if req.Code != s.mode.requestCode() {
		logger.Warnf("dropping unexpected %s id=%d", req.Code, req.Identifier)
		s.dropped.Add(1)
		return nil
	}

	s.logRequest(logger, req)

	ctx = WithRemoteAddr(ctx, addr)

	var reply []byte
	switch s.mode {
	case ModeAccounting:
		reply = s.serveAccounting(ctx, logger, data, req)
	default:
		reply = s.serveAccess(ctx, logger, handler, data, req)
	}

	if reply == nil {
		s.dropped.Add(1)
		return nil
	}

	if _, err := conn.WriteTo(reply, addr); err != nil {
		return fmt.Errorf("failed to send to %s: %w", addr, err)
	}

	s.responses.Add(1)
	return nil
}

func (s *Server) serveAccess(ctx context.Context, logger log.Logger, handler AccessHandler, data []byte, req *packet.Packet) []byte {
	if present, valid := crypto.VerifyMessageAuthenticator(data, s.secret); present && !valid {
		logger.Warnf("dropping Access-Request id=%d with invalid Message-Authenticator", req.Identifier)
		return nil
	}

	resp, err := callAccess(ctx, handler, req)
	switch {
	case err != nil:
		logger.Errorf("access handler failed for id=%d: %v", req.Identifier, err)
		resp = nil
	case resp == nil:
		logger.Errorf("access handler returned no response for id=%d", req.Identifier)
	case !isAccessResponse(resp.Code):
		logger.Errorf("access handler returned %s for id=%d", resp.Code, req.Identifier)
		resp = nil
	case resp.EncodedLength() > packet.MaxPacketLength:
		logger.Errorf("access handler reply for id=%d is %d bytes, limit is %d", req.Identifier, resp.EncodedLength(), packet.MaxPacketLength)
		resp = nil
	}

	if resp == nil {
		resp = req.ReplyReject(InternalErrorMessage)
	}

	resp.Identifier = req.Identifier

	logger.Debugf("sending %s id=%d", resp.Code, resp.Identifier)
	return crypto.Authenticate(resp, req.Authenticator, s.secret)
}

func (s *Server) serveAccounting(ctx context.Context, logger log.Logger, data []byte, req *packet.Packet) []byte {
	if !crypto.VerifyRequestAuthenticator(data, s.secret) {
		logger.Warnf("dropping Accounting-Request id=%d with invalid authenticator", req.Identifier)
		return nil
	}

	if err := callAccounting(ctx, s.accounting, req); err != nil {
		logger.Errorf("accounting handler failed for id=%d: %v", req.Identifier, err)
	}

	return crypto.BuildAccountingResponse(req.Identifier, req.Authenticator, s.secret)
}

func isAccessResponse(code packet.Code) bool {
	switch code {
	case packet.CodeAccessAccept, packet.CodeAccessReject, packet.CodeAccessChallenge:
		return true
	default:
		return false
	}
}

func callAccess(ctx context.Context, h AccessHandler, req *packet.Packet) (resp *packet.Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.ServeAccess(ctx, req)
}

func callAccounting(ctx context.Context, h AccountingHandler, req *packet.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.ServeAccounting(ctx, req)
}

// logRequest writes the decoded request at debug level; password values are masked
func (s *Server) logRequest(logger log.Logger, req *packet.Packet) {
	logger.Debugf("received %s id=%d length=%d", req.Code, req.Identifier, req.Length)

	for i, view := range req.Describe(s.dict) {
		if req.Attributes[i].Type == packet.AttrUserPassword {
			view.Value = "******"
		}
		logger.Debugf("  %s: %s", view.Name, view.Value)
	}
}
