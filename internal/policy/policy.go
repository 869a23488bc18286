// Package policy implements a static allowlist that decides Access-Requests.
package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vitalvas/radiusd/pkg/packet"
)

// DefaultRejectMessage is used when the policy file does not set one
const DefaultRejectMessage = "User not allowed"

// User is one allowlist entry. Zero values omit the attribute from the accept.
type User struct {
	Name             string `yaml:"name"`
	SessionTimeout   uint32 `yaml:"session_timeout"`
	IdleTimeout      uint32 `yaml:"idle_timeout"`
	BandwidthMaxUp   uint32 `yaml:"bandwidth_max_up"`
	BandwidthMaxDown uint32 `yaml:"bandwidth_max_down"`
	ReplyMessage     string `yaml:"reply_message"`
}

type file struct {
	RejectMessage string `yaml:"reject_message"`
	Users         []User `yaml:"users"`
}

// Policy accepts listed users and rejects everyone else.
// User names are matched case-insensitively so MAC addresses may be written in either case.
type Policy struct {
	rejectMessage string
	users         map[string]User
}

// New builds a policy from users
func New(rejectMessage string, users []User) (*Policy, error) {
	if rejectMessage == "" {
		rejectMessage = DefaultRejectMessage
	}

	p := &Policy{
		rejectMessage: rejectMessage,
		users:         make(map[string]User, len(users)),
	}

	for i, u := range users {
		if u.Name == "" {
			return nil, fmt.Errorf("user %d: name is required", i)
		}
		key := strings.ToLower(u.Name)
		if _, ok := p.users[key]; ok {
			return nil, fmt.Errorf("user %q is listed twice", u.Name)
		}
		p.users[key] = u
	}

	return p, nil
}

// Parse reads a YAML policy document
func Parse(r io.Reader) (*Policy, error) {
	var f file

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	return New(f.RejectMessage, f.Users)
}

// Load reads a YAML policy file
func Load(path string) (*Policy, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy: %w", err)
	}
	defer fh.Close()

	return Parse(fh)
}

// Len returns the number of allowed users
func (p *Policy) Len() int {
	return len(p.users)
}

// Lookup returns the entry for name
func (p *Policy) Lookup(name string) (User, bool) {
	u, ok := p.users[strings.ToLower(name)]
	return u, ok
}

// ServeAccess decides an Access-Request by its User-Name
func (p *Policy) ServeAccess(_ context.Context, req *packet.Packet) (*packet.Packet, error) {
	name, ok := req.Username()
	if !ok {
		return req.ReplyReject(p.rejectMessage), nil
	}

	u, ok := p.Lookup(name)
	if !ok {
		return req.ReplyReject(p.rejectMessage), nil
	}

	return req.ReplyAccept(u.attributes(name)), nil
}

func (u User) attributes(name string) []*packet.Attribute {
	var attrs []*packet.Attribute

	if u.SessionTimeout > 0 {
		attrs = append(attrs, packet.SessionTimeout(u.SessionTimeout))
	}
	if u.IdleTimeout > 0 {
		attrs = append(attrs, packet.IdleTimeout(u.IdleTimeout))
	}
	if u.BandwidthMaxUp > 0 {
		attrs = append(attrs, packet.WISPrBandwidthMaxUp(u.BandwidthMaxUp))
	}
	if u.BandwidthMaxDown > 0 {
		attrs = append(attrs, packet.WISPrBandwidthMaxDown(u.BandwidthMaxDown))
	}

	msg := u.ReplyMessage
	if msg == "" {
		msg = "Welcome, " + name
	}
	attrs = append(attrs, packet.ReplyMessage(msg))

	return attrs
}
