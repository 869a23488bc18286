package packet

import (
	"fmt"
	"unicode/utf8"
)

// Packet represents a RADIUS packet as defined in RFC 2865
type Packet struct {
	Code          Code
	Identifier    uint8
	Length        uint16
	Authenticator [AuthenticatorLength]byte
	Attributes    []*Attribute
}

// New creates a new RADIUS packet with the specified code and identifier
func New(code Code, identifier uint8) *Packet {
	return &Packet{
		Code:       code,
		Identifier: identifier,
		Length:     PacketHeaderLength,
		Attributes: make([]*Attribute, 0),
	}
}

// newResponse builds a response with a zero authenticator, meaning "not yet computed"
func newResponse(code Code, identifier uint8, attrs []*Attribute) *Packet {
	p := New(code, identifier)
	for _, attr := range attrs {
		p.AddAttribute(attr)
	}
	return p
}

// AccessAccept builds an Access-Accept carrying attrs verbatim
func AccessAccept(identifier uint8, attrs []*Attribute) *Packet {
	return newResponse(CodeAccessAccept, identifier, attrs)
}

// AccessReject builds an Access-Reject carrying a single Reply-Message
func AccessReject(identifier uint8, msg string) *Packet {
	return newResponse(CodeAccessReject, identifier, []*Attribute{ReplyMessage(msg)})
}

// AccessChallenge builds an Access-Challenge carrying a single Reply-Message
func AccessChallenge(identifier uint8, msg string) *Packet {
	return newResponse(CodeAccessChallenge, identifier, []*Attribute{ReplyMessage(msg)})
}

// AccountingResponse builds an attribute-less Accounting-Response
func AccountingResponse(identifier uint8) *Packet {
	return newResponse(CodeAccountingResponse, identifier, nil)
}

// ReplyAccept builds an Access-Accept answering p
func (p *Packet) ReplyAccept(attrs []*Attribute) *Packet {
	return AccessAccept(p.Identifier, attrs)
}

// ReplyReject builds an Access-Reject answering p
func (p *Packet) ReplyReject(msg string) *Packet {
	return AccessReject(p.Identifier, msg)
}

// ReplyChallenge builds an Access-Challenge answering p
func (p *Packet) ReplyChallenge(msg string) *Packet {
	return AccessChallenge(p.Identifier, msg)
}

// AddAttribute adds an attribute to the packet
func (p *Packet) AddAttribute(attr *Attribute) {
	p.Attributes = append(p.Attributes, attr)
	p.Length += uint16(attr.Length)
}

// GetAttribute returns the first attribute with the specified type
func (p *Packet) GetAttribute(attrType uint8) (*Attribute, bool) {
	for _, attr := range p.Attributes {
		if attr.Type == attrType {
			return attr, true
		}
	}
	return nil, false
}

// GetAttributes returns all attributes with the specified type
func (p *Packet) GetAttributes(attrType uint8) []*Attribute {
	var attrs []*Attribute
	for _, attr := range p.Attributes {
		if attr.Type == attrType {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// Username returns the first User-Name value.
// A missing attribute or one that is not valid UTF-8 both report false.
func (p *Packet) Username() (string, bool) {
	attr, ok := p.GetAttribute(AttrUserName)
	if !ok || !utf8.Valid(attr.Value) {
		return "", false
	}
	return string(attr.Value), true
}

// String returns a string representation of the packet
func (p *Packet) String() string {
	return fmt.Sprintf("Code=%s(%d), ID=%d, Length=%d, Attributes=%d",
		p.Code.String(), p.Code, p.Identifier, p.Length, len(p.Attributes))
}
