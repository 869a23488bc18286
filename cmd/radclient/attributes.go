package main

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// parseAttributes reads "Name = value" lines and encodes them with dict.
// Blank lines and lines starting with # are skipped.
func parseAttributes(scanner *bufio.Scanner, dict *dictionary.Dictionary) ([]*packet.Attribute, error) {
	var attrs []*packet.Attribute

	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, valueStr, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid attribute format: %q (expected 'Name = value')", lineno, line)
		}

		attr, err := buildAttribute(dict, strings.TrimSpace(name), strings.Trim(strings.TrimSpace(valueStr), `"`))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		attrs = append(attrs, attr)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return attrs, nil
}

func buildAttribute(dict *dictionary.Dictionary, name, value string) (*packet.Attribute, error) {
	def, ok := dict.AttributeByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown attribute %q", name)
	}
	// hiding needs the request authenticator and is not implemented, so the
	// password would leave in plaintext
	if !def.IsVendor() && def.Code == uint32(packet.AttrUserPassword) {
		return nil, fmt.Errorf("attribute %q must be hidden with the shared secret and is not supported", name)
	}
	if def.Code > 255 {
		return nil, fmt.Errorf("attribute %q has code %d which does not fit one octet", name, def.Code)
	}

	data, err := encodeValue(def.DataType, value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}

	if def.IsVendor() {
		if len(data) > packet.MaxAttributeValueLength-packet.VendorIDLength-packet.VendorSubAttributeHeaderLength {
			return nil, fmt.Errorf("attribute %q: value too long", name)
		}
		return packet.VendorAttribute(def.Vendor, uint8(def.Code), data), nil
	}

	if len(data) > packet.MaxAttributeValueLength {
		return nil, fmt.Errorf("attribute %q: value too long", name)
	}
	return packet.NewAttribute(uint8(def.Code), data), nil
}

func encodeValue(dataType dictionary.DataType, value string) ([]byte, error) {
	switch dataType {
	case dictionary.DataTypeInteger, dictionary.DataTypeDate:
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", dataType, value)
		}
		return binary.BigEndian.AppendUint32(nil, uint32(n)), nil

	case dictionary.DataTypeIPAddr:
		ip := net.ParseIP(value).To4()
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", value)
		}
		return ip, nil

	case dictionary.DataTypeIPv6:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() != nil {
			return nil, fmt.Errorf("invalid IPv6 address %q", value)
		}
		return ip.To16(), nil

	case dictionary.DataTypeOctets:
		if rest, ok := strings.CutPrefix(value, "0x"); ok {
			data, err := hex.DecodeString(rest)
			if err != nil {
				return nil, fmt.Errorf("invalid hex %q", value)
			}
			return data, nil
		}
		return []byte(value), nil

	default:
		return []byte(value), nil
	}
}
