package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vitalvas/radiusd/pkg/packet"
)

// AuthenticatorLength is the length of RADIUS authenticators in bytes
const AuthenticatorLength = packet.AuthenticatorLength

// Authenticator represents a 16-byte RADIUS authenticator
type Authenticator [AuthenticatorLength]byte

var (
	// ErrInvalidAuthenticatorLength indicates an invalid authenticator length
	ErrInvalidAuthenticatorLength = errors.New("invalid authenticator length")
	// ErrMalformedPacket indicates raw bytes that cannot carry an authenticator
	ErrMalformedPacket = errors.New("malformed packet")
)

// GenerateRequestAuthenticator generates a random Request Authenticator
func GenerateRequestAuthenticator() (Authenticator, error) {
	var auth Authenticator
	_, err := rand.Read(auth[:])
	if err != nil {
		return auth, fmt.Errorf("failed to generate random authenticator: %w", err)
	}
	return auth, nil
}

// ResponseAuthenticator calculates the Response Authenticator as defined in RFC 2865
// Response Authenticator = MD5(Code + ID + Length + Request Authenticator + Response Attributes + Secret)
func ResponseAuthenticator(code packet.Code, identifier uint8, length uint16, requestAuth Authenticator, attrs []byte, secret []byte) Authenticator {
	hash := md5.New()

	hash.Write([]byte{byte(code), identifier})
	hash.Write(binary.BigEndian.AppendUint16(nil, length))
	hash.Write(requestAuth[:])
	hash.Write(attrs)
	hash.Write(secret)

	var result Authenticator
	copy(result[:], hash.Sum(nil))
	return result
}

// Authenticate encodes resp, computes its Response Authenticator against the
// request authenticator and returns the wire bytes. resp.Length and
// resp.Authenticator are updated in place.
func Authenticate(resp *packet.Packet, requestAuth Authenticator, secret []byte) []byte {
	data := resp.Encode()

	auth := ResponseAuthenticator(resp.Code, resp.Identifier, resp.Length, requestAuth, data[packet.PacketHeaderLength:], secret)

	copy(data[4:packet.PacketHeaderLength], auth[:])
	resp.Authenticator = auth

	return data
}

// declaredLength returns the header length of raw if raw can hold it
func declaredLength(raw []byte) (int, bool) {
	if len(raw) < packet.PacketHeaderLength {
		return 0, false
	}

	length := int(binary.BigEndian.Uint16(raw[2:4]))
	if length < packet.PacketHeaderLength || length > len(raw) {
		return 0, false
	}
	return length, true
}

// RequestAuthenticator calculates the Request Authenticator for Accounting packets (RFC 2866)
// Request Authenticator = MD5(Code + ID + Length + 16 zero octets + Request Attributes + Secret)
// Bytes past the declared length are not covered.
func RequestAuthenticator(raw []byte, secret []byte) (Authenticator, error) {
	length, ok := declaredLength(raw)
	if !ok {
		return Authenticator{}, ErrMalformedPacket
	}

	var zero Authenticator

	hash := md5.New()
	hash.Write(raw[:4])
	hash.Write(zero[:])
	hash.Write(raw[packet.PacketHeaderLength:length])
	hash.Write(secret)

	var result Authenticator
	copy(result[:], hash.Sum(nil))
	return result, nil
}

// SignRequest stamps the accounting Request Authenticator into raw
func SignRequest(raw []byte, secret []byte) error {
	auth, err := RequestAuthenticator(raw, secret)
	if err != nil {
		return err
	}
	copy(raw[4:packet.PacketHeaderLength], auth[:])
	return nil
}

// VerifyRequestAuthenticator validates the Request Authenticator of an Accounting-Request.
// The comparison runs in constant time.
func VerifyRequestAuthenticator(raw []byte, secret []byte) bool {
	expected, err := RequestAuthenticator(raw, secret)
	if err != nil {
		return false
	}
	return hmac.Equal(expected[:], raw[4:packet.PacketHeaderLength])
}

// BuildAccountingResponse builds the 20-byte Accounting-Response answering a request
func BuildAccountingResponse(identifier uint8, requestAuth Authenticator, secret []byte) []byte {
	return Authenticate(packet.AccountingResponse(identifier), requestAuth, secret)
}

// VerifyResponse validates the Response Authenticator of a reply to a request
// sent with requestAuth.
func VerifyResponse(raw []byte, requestAuth Authenticator, secret []byte) bool {
	length, ok := declaredLength(raw)
	if !ok {
		return false
	}

	expected := ResponseAuthenticator(packet.Code(raw[0]), raw[1], uint16(length), requestAuth, raw[packet.PacketHeaderLength:length], secret)
	return hmac.Equal(expected[:], raw[4:packet.PacketHeaderLength])
}

// String returns a hex representation of the authenticator
func (a Authenticator) String() string {
	return fmt.Sprintf("%x", a[:])
}

// Equal compares two authenticators in constant time
func (a Authenticator) Equal(other Authenticator) bool {
	return hmac.Equal(a[:], other[:])
}

// IsZero returns true if the authenticator is all zeros
func (a Authenticator) IsZero() bool {
	return a.Equal(Authenticator{})
}

// FromBytes creates an authenticator from a byte slice
func FromBytes(data []byte) (Authenticator, error) {
	var auth Authenticator
	if len(data) != AuthenticatorLength {
		return auth, fmt.Errorf("%w: must be exactly %d bytes, got %d", ErrInvalidAuthenticatorLength, AuthenticatorLength, len(data))
	}
	copy(auth[:], data)
	return auth, nil
}
