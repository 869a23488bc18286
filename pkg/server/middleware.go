package server

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// Middleware wraps an AccessHandler and returns a new AccessHandler
type Middleware func(AccessHandler) AccessHandler

// Chain applies middlewares to h; the first middleware is the outermost
func Chain(h AccessHandler, middlewares ...Middleware) AccessHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// LoggingMiddleware logs every decision with its duration
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next AccessHandler) AccessHandler {
		return AccessHandlerFunc(func(ctx context.Context, req *packet.Packet) (*packet.Packet, error) {
			start := time.Now()

			l := logger
			if addr, ok := RemoteAddr(ctx); ok {
				l = l.WithField("client", addr.String())
			}

			resp, err := next.ServeAccess(ctx, req)
			duration := time.Since(start)

			switch {
			case err != nil:
				l.Errorf("request id=%d failed after %v: %v", req.Identifier, duration, err)
			case resp != nil:
				l.Infof("request id=%d answered with %s after %v", req.Identifier, resp.Code, duration)
			default:
				l.Debugf("request id=%d completed after %v: no response", req.Identifier, duration)
			}

			return resp, err
		})
	}
}

// RecoverMiddleware turns a panic in the wrapped handler into an error
func RecoverMiddleware(logger log.Logger) Middleware {
	return func(next AccessHandler) AccessHandler {
		return AccessHandlerFunc(func(ctx context.Context, req *packet.Packet) (resp *packet.Packet, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("panic in access handler for request id=%d: %v", req.Identifier, r)
					resp, err = nil, fmt.Errorf("handler panic: %v", r)
				}
			}()

			return next.ServeAccess(ctx, req)
		})
	}
}
