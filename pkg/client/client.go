// Package client sends RADIUS requests over UDP and verifies the replies.
package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/vitalvas/radiusd/pkg/crypto"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

var (
	// ErrUnsupportedCode is returned for packets that are not requests
	ErrUnsupportedCode = errors.New("unsupported request code")
	// ErrBadResponseAuthenticator is returned when a reply fails verification
	ErrBadResponseAuthenticator = errors.New("response authenticator verification failed")
	// ErrTimeout is returned when no reply arrives after all attempts
	ErrTimeout = errors.New("no response from server")
)

// DefaultTimeout is the per-attempt wait used when Config.Timeout is zero
const DefaultTimeout = 3 * time.Second

// Config configures a Client
type Config struct {
	Addr   string
	Secret []byte

	// Timeout bounds each attempt
	Timeout time.Duration
	// Retries is the number of resends after the first attempt
	Retries int

	// UseMessageAuthenticator adds a Message-Authenticator to Access-Request packets; default true
	UseMessageAuthenticator *bool

	Logger log.Logger
}

// Client is a minimal RADIUS UDP client. It is safe for concurrent use:
// every exchange dials its own socket.
type Client struct {
	addr           string
	secret         []byte
	timeout        time.Duration
	retries        int
	useMessageAuth bool
	logger         log.Logger
}

// New creates a Client from cfg
func New(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("server address is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("shared secret is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	useMessageAuth := true
	if cfg.UseMessageAuthenticator != nil {
		useMessageAuth = *cfg.UseMessageAuthenticator
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	return &Client{
		addr:           cfg.Addr,
		secret:         cfg.Secret,
		timeout:        cfg.Timeout,
		retries:        cfg.Retries,
		useMessageAuth: useMessageAuth,
		logger:         logger,
	}, nil
}

// NewIdentifier returns a random packet identifier
func NewIdentifier() (uint8, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to generate identifier: %w", err)
	}
	return b[0], nil
}

// AccessRequest sends an Access-Request carrying attrs with a random identifier
func (c *Client) AccessRequest(ctx context.Context, attrs ...*packet.Attribute) (*packet.Packet, error) {
	return c.request(ctx, packet.CodeAccessRequest, attrs)
}

// AccountingRequest sends an Accounting-Request carrying attrs with a random identifier
func (c *Client) AccountingRequest(ctx context.Context, attrs ...*packet.Attribute) (*packet.Packet, error) {
	return c.request(ctx, packet.CodeAccountingRequest, attrs)
}

func (c *Client) request(ctx context.Context, code packet.Code, attrs []*packet.Attribute) (*packet.Packet, error) {
	id, err := NewIdentifier()
	if err != nil {
		return nil, err
	}

	pkt := packet.New(code, id)
	for _, attr := range attrs {
		pkt.AddAttribute(attr)
	}
	return c.Exchange(ctx, pkt)
}

// Exchange signs pkt, sends it and waits for the verified reply.
// Access-Request packets get a random authenticator when theirs is zero;
// Accounting-Request packets get their Request Authenticator computed.
func (c *Client) Exchange(ctx context.Context, pkt *packet.Packet) (*packet.Packet, error) {
	raw, err := c.sign(pkt)
	if err != nil {
		return nil, err
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debugf("retrying %s id=%d (attempt %d)", pkt.Code, pkt.Identifier, attempt+1)
		}

		if _, err := conn.Write(raw); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to write packet: %w", err)
		}

		resp, err := c.awaitReply(conn, pkt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, c.retries+1)
}

func (c *Client) sign(pkt *packet.Packet) ([]byte, error) {
	switch pkt.Code {
	case packet.CodeAccessRequest:
		if crypto.Authenticator(pkt.Authenticator).IsZero() {
			auth, err := crypto.GenerateRequestAuthenticator()
			if err != nil {
				return nil, err
			}
			pkt.Authenticator = auth
		}

		raw := pkt.Encode()
		if !c.useMessageAuth {
			return raw, nil
		}

		signed, err := crypto.AddMessageAuthenticator(raw, c.secret)
		if err != nil {
			return nil, fmt.Errorf("failed to add Message-Authenticator: %w", err)
		}
		return signed, nil

	case packet.CodeAccountingRequest:
		raw := pkt.Encode()
		if err := crypto.SignRequest(raw, c.secret); err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
		copy(pkt.Authenticator[:], raw[4:packet.PacketHeaderLength])
		return raw, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCode, pkt.Code)
	}
}

// awaitReply reads until a reply with the request identifier arrives or the attempt times out.
// Undecodable datagrams and foreign identifiers are skipped.
func (c *Client) awaitReply(conn net.Conn, req *packet.Packet) (*packet.Packet, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	buffer := make([]byte, packet.MaxPacketLength)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			return nil, err
		}

		resp, err := packet.Decode(buffer[:n])
		if err != nil {
			c.logger.Warnf("ignoring malformed reply: %v", err)
			continue
		}

		if resp.Identifier != req.Identifier {
			c.logger.Debugf("ignoring reply id=%d, waiting for id=%d", resp.Identifier, req.Identifier)
			continue
		}

		if !crypto.VerifyResponse(buffer[:n], req.Authenticator, c.secret) {
			return nil, ErrBadResponseAuthenticator
		}

		return resp, nil
	}
}
