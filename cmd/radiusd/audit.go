package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
	"github.com/vitalvas/radiusd/pkg/server"
)

type auditLog struct {
	Timestamp string       `json:"timestamp"`
	Remote    string       `json:"remote,omitempty"`
	Request   auditPacket  `json:"request"`
	Response  *auditPacket `json:"response,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type auditPacket struct {
	Code       string              `json:"code"`
	Identifier uint8               `json:"id"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// auditMiddleware writes every access decision to w as a JSON line.
// It must sit outside RecoverMiddleware so that panics reach it as errors.
func auditMiddleware(w io.Writer, dict *dictionary.Dictionary, logger log.Logger) server.Middleware {
	var mu sync.Mutex

	return func(next server.AccessHandler) server.AccessHandler {
		return server.AccessHandlerFunc(func(ctx context.Context, req *packet.Packet) (*packet.Packet, error) {
			resp, err := next.ServeAccess(ctx, req)

			entry := auditLog{
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Request:   collectPacket(req, dict),
			}
			if addr, ok := server.RemoteAddr(ctx); ok {
				entry.Remote = addr.String()
			}
			if resp != nil {
				p := collectPacket(resp, dict)
				entry.Response = &p
			}
			if err != nil {
				entry.Error = err.Error()
			}

			data, marshalErr := json.Marshal(entry)
			if marshalErr != nil {
				logger.Errorf("failed to encode audit entry for request id=%d: %v", req.Identifier, marshalErr)
				return resp, err
			}

			mu.Lock()
			_, writeErr := w.Write(append(data, '\n'))
			mu.Unlock()
			if writeErr != nil {
				logger.Errorf("failed to write audit entry for request id=%d: %v", req.Identifier, writeErr)
			}

			return resp, err
		})
	}
}

func collectPacket(p *packet.Packet, dict *dictionary.Dictionary) auditPacket {
	attrs := make(map[string][]string)

	for i, view := range p.Describe(dict) {
		if p.Attributes[i].Type == packet.AttrUserPassword {
			view.Value = "******"
		}
		attrs[view.Name] = append(attrs[view.Name], view.Value)
	}

	return auditPacket{
		Code:       p.Code.String(),
		Identifier: p.Identifier,
		Attributes: attrs,
	}
}
