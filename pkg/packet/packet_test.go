package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacket(t *testing.T) {
	tests := []struct {
		name       string
		code       Code
		identifier uint8
	}{
		{"Access-Request", CodeAccessRequest, 1},
		{"Access-Accept", CodeAccessAccept, 2},
		{"Accounting-Request", CodeAccountingRequest, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := New(tt.code, tt.identifier)
			assert.Equal(t, tt.code, pkt.Code)
			assert.Equal(t, tt.identifier, pkt.Identifier)
			assert.Equal(t, uint16(PacketHeaderLength), pkt.Length)
			assert.Empty(t, pkt.Attributes)
		})
	}
}

func TestPacketAddAttribute(t *testing.T) {
	pkt := New(CodeAccessRequest, 1)

	attr := UserName("testuser")
	pkt.AddAttribute(attr)

	assert.Len(t, pkt.Attributes, 1)
	assert.Equal(t, []byte("testuser"), pkt.Attributes[0].Value)
	assert.Equal(t, uint16(PacketHeaderLength)+uint16(attr.Length), pkt.Length)
}

func TestPacketGetAttributes(t *testing.T) {
	pkt := New(CodeAccessRequest, 1)

	pkt.AddAttribute(UserName("user1"))
	pkt.AddAttribute(UserName("user2"))
	pkt.AddAttribute(ReplyMessage("other"))

	attrs := pkt.GetAttributes(AttrUserName)
	assert.Len(t, attrs, 2)

	first, ok := pkt.GetAttribute(AttrUserName)
	require.True(t, ok)
	assert.Equal(t, []byte("user1"), first.Value)

	_, ok = pkt.GetAttribute(99)
	assert.False(t, ok)
	assert.Empty(t, pkt.GetAttributes(99))
}

func TestPacketUsername(t *testing.T) {
	tests := []struct {
		name     string
		attrs    []*Attribute
		expected string
		ok       bool
	}{
		{"present", []*Attribute{UserName("ec:30:b3:6d:24:6a")}, "ec:30:b3:6d:24:6a", true},
		{"first wins", []*Attribute{UserName("alice"), UserName("bob")}, "alice", true},
		{"missing", []*Attribute{ReplyMessage("x")}, "", false},
		{"invalid utf8", []*Attribute{NewAttribute(AttrUserName, []byte{0xff, 0xfe})}, "", false},
		{"empty value", []*Attribute{NewAttribute(AttrUserName, nil)}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := New(CodeAccessRequest, 1)
			for _, attr := range tt.attrs {
				pkt.AddAttribute(attr)
			}

			name, ok := pkt.Username()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestResponseBuilders(t *testing.T) {
	req := New(CodeAccessRequest, 77)
	req.Authenticator = [AuthenticatorLength]byte{1, 2, 3}

	t.Run("accept", func(t *testing.T) {
		attrs := []*Attribute{SessionTimeout(3600), ReplyMessage("Welcome")}
		resp := req.ReplyAccept(attrs)

		assert.Equal(t, CodeAccessAccept, resp.Code)
		assert.Equal(t, uint8(77), resp.Identifier)
		assert.Equal(t, [AuthenticatorLength]byte{}, resp.Authenticator)
		assert.Equal(t, attrs, resp.Attributes)
		assert.Equal(t, uint16(20+6+9), resp.Length)
	})

	t.Run("reject", func(t *testing.T) {
		resp := req.ReplyReject("User not allowed")

		assert.Equal(t, CodeAccessReject, resp.Code)
		assert.Equal(t, uint8(77), resp.Identifier)
		require.Len(t, resp.Attributes, 1)
		assert.Equal(t, AttrReplyMessage, resp.Attributes[0].Type)
		assert.Equal(t, []byte("User not allowed"), resp.Attributes[0].Value)
	})

	t.Run("challenge", func(t *testing.T) {
		resp := req.ReplyChallenge("Enter code")

		assert.Equal(t, CodeAccessChallenge, resp.Code)
		assert.Equal(t, uint8(77), resp.Identifier)
		require.Len(t, resp.Attributes, 1)
		assert.Equal(t, []byte("Enter code"), resp.Attributes[0].Value)
	})

	t.Run("accounting response", func(t *testing.T) {
		resp := AccountingResponse(9)

		assert.Equal(t, CodeAccountingResponse, resp.Code)
		assert.Equal(t, uint8(9), resp.Identifier)
		assert.Empty(t, resp.Attributes)
		assert.Len(t, resp.Encode(), PacketHeaderLength)
	})

	t.Run("empty accept", func(t *testing.T) {
		resp := AccessAccept(5, nil)
		assert.Empty(t, resp.Attributes)
		assert.Equal(t, uint16(PacketHeaderLength), resp.Length)
	})
}

func TestPacketString(t *testing.T) {
	pkt := New(CodeAccessRequest, 5)
	pkt.AddAttribute(UserName("bob"))

	assert.Equal(t, "Code=Access-Request(1), ID=5, Length=25, Attributes=1", pkt.String())
}
