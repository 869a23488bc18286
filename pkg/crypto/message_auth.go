package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"errors"
	"fmt"

	"github.com/vitalvas/radiusd/pkg/packet"
)

// Message-Authenticator implementation as defined in RFC 3579 Section 3.2

const (
	// MessageAuthenticatorLength is the length of the Message-Authenticator value
	MessageAuthenticatorLength = 16

	messageAuthenticatorAttrLength = packet.AttributeHeaderLength + MessageAuthenticatorLength
)

// ErrMessageAuthenticatorExists is returned when adding a second Message-Authenticator
var ErrMessageAuthenticatorExists = errors.New("Message-Authenticator already exists in packet")

// MessageAuthenticator calculates HMAC-MD5(secret, packet) with the value of
// any Message-Authenticator attribute treated as 16 zero octets.
// Only the bytes within the declared packet length are covered.
func MessageAuthenticator(raw []byte, secret []byte) ([MessageAuthenticatorLength]byte, error) {
	var result [MessageAuthenticatorLength]byte

	length, ok := declaredLength(raw)
	if !ok {
		return result, ErrMalformedPacket
	}

	calcData := make([]byte, length)
	copy(calcData, raw[:length])

	if start := findMessageAuthenticator(calcData); start != -1 && wellFormed(calcData, start) {
		clear(calcData[start+packet.AttributeHeaderLength : start+messageAuthenticatorAttrLength])
	}

	mac := hmac.New(md5.New, secret)
	mac.Write(calcData)

	copy(result[:], mac.Sum(nil))
	return result, nil
}

// VerifyMessageAuthenticator reports whether raw carries a Message-Authenticator
// and, if so, whether it is valid
func VerifyMessageAuthenticator(raw []byte, secret []byte) (present bool, valid bool) {
	length, ok := declaredLength(raw)
	if !ok {
		return false, false
	}

	start := findMessageAuthenticator(raw[:length])
	if start == -1 {
		return false, false
	}
	if !wellFormed(raw, start) {
		return true, false
	}

	expected, err := MessageAuthenticator(raw, secret)
	if err != nil {
		return true, false
	}

	received := raw[start+packet.AttributeHeaderLength : start+messageAuthenticatorAttrLength]
	return true, hmac.Equal(expected[:], received)
}

// AddMessageAuthenticator appends a signed Message-Authenticator attribute to raw
// and updates the header length. raw must already carry its final authenticator.
func AddMessageAuthenticator(raw []byte, secret []byte) ([]byte, error) {
	length, ok := declaredLength(raw)
	if !ok {
		return nil, ErrMalformedPacket
	}

	if findMessageAuthenticator(raw[:length]) != -1 {
		return nil, ErrMessageAuthenticatorExists
	}

	newLength := length + messageAuthenticatorAttrLength
	if newLength > packet.MaxPacketLength {
		return nil, fmt.Errorf("packet too long for Message-Authenticator: %d bytes", newLength)
	}

	data := make([]byte, length, newLength)
	copy(data, raw[:length])
	data = append(data, packet.AttrMessageAuthenticator, messageAuthenticatorAttrLength)
	data = append(data, make([]byte, MessageAuthenticatorLength)...)

	data[2] = byte(newLength >> 8)
	data[3] = byte(newLength)

	msgAuth, err := MessageAuthenticator(data, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate Message-Authenticator: %w", err)
	}
	copy(data[length+packet.AttributeHeaderLength:], msgAuth[:])

	return data, nil
}

// findMessageAuthenticator returns the offset of the first Message-Authenticator attribute, or -1.
// The attribute length is not checked; see wellFormed.
func findMessageAuthenticator(data []byte) int {
	for offset := packet.PacketHeaderLength; offset+packet.AttributeHeaderLength <= len(data); {
		attrType := data[offset]
		attrLength := int(data[offset+1])

		if attrLength < packet.AttributeHeaderLength || offset+attrLength > len(data) {
			return -1
		}

		if attrType == packet.AttrMessageAuthenticator {
			return offset
		}

		offset += attrLength
	}

	return -1
}

func wellFormed(data []byte, start int) bool {
	return int(data[start+1]) == messageAuthenticatorAttrLength
}
