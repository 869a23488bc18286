package packet

import (
	"encoding/binary"
	"fmt"
)

// Attribute represents a RADIUS attribute (RFC 2865 Section 5).
// Length covers the 2-byte header, so Length == 2 + len(Value).
type Attribute struct {
	Type   uint8
	Length uint8
	Value  []byte
}

// NewAttribute creates a new RADIUS attribute.
// Values longer than MaxAttributeValueLength are truncated.
func NewAttribute(attrType uint8, value []byte) *Attribute {
	if len(value) > MaxAttributeValueLength {
		value = value[:MaxAttributeValueLength]
	}

	return &Attribute{
		Type:   attrType,
		Length: uint8(len(value) + AttributeHeaderLength),
		Value:  value,
	}
}

// NewStringAttribute creates an attribute carrying text
func NewStringAttribute(attrType uint8, value string) *Attribute {
	return NewAttribute(attrType, []byte(value))
}

// NewIntegerAttribute creates an attribute carrying a 32-bit big-endian integer
func NewIntegerAttribute(attrType uint8, value uint32) *Attribute {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, value)
	return NewAttribute(attrType, buf)
}

// ReplyMessage creates a Reply-Message attribute
func ReplyMessage(msg string) *Attribute {
	return NewStringAttribute(AttrReplyMessage, msg)
}

// UserName creates a User-Name attribute
func UserName(name string) *Attribute {
	return NewStringAttribute(AttrUserName, name)
}

// SessionTimeout creates a Session-Timeout attribute
func SessionTimeout(seconds uint32) *Attribute {
	return NewIntegerAttribute(AttrSessionTimeout, seconds)
}

// IdleTimeout creates an Idle-Timeout attribute
func IdleTimeout(seconds uint32) *Attribute {
	return NewIntegerAttribute(AttrIdleTimeout, seconds)
}

// VendorSpecific creates a Vendor-Specific attribute (type 26) whose value is
// the 4-byte vendor ID followed by payload. The payload is not interpreted.
func VendorSpecific(vendorID uint32, payload []byte) *Attribute {
	if len(payload) > MaxAttributeValueLength-VendorIDLength {
		payload = payload[:MaxAttributeValueLength-VendorIDLength]
	}

	value := make([]byte, VendorIDLength+len(payload))
	binary.BigEndian.PutUint32(value, vendorID)
	copy(value[VendorIDLength:], payload)

	return NewAttribute(AttrVendorSpecific, value)
}

// VendorAttribute creates a Vendor-Specific attribute holding one
// Vendor-Type/Vendor-Length/Vendor-Data sub-attribute.
func VendorAttribute(vendorID uint32, vendorType uint8, data []byte) *Attribute {
	maxData := MaxAttributeValueLength - VendorIDLength - VendorSubAttributeHeaderLength
	if len(data) > maxData {
		data = data[:maxData]
	}

	payload := make([]byte, VendorSubAttributeHeaderLength+len(data))
	payload[0] = vendorType
	payload[1] = uint8(len(payload))
	copy(payload[VendorSubAttributeHeaderLength:], data)

	return VendorSpecific(vendorID, payload)
}

// WISPrBandwidthMaxUp creates a WISPr-Bandwidth-Max-Up vendor attribute (bits per second)
func WISPrBandwidthMaxUp(bps uint32) *Attribute {
	return VendorAttribute(VendorWISPr, WISPrBandwidthMaxUpType, binary.BigEndian.AppendUint32(nil, bps))
}

// WISPrBandwidthMaxDown creates a WISPr-Bandwidth-Max-Down vendor attribute (bits per second)
func WISPrBandwidthMaxDown(bps uint32) *Attribute {
	return VendorAttribute(VendorWISPr, WISPrBandwidthMaxDownType, binary.BigEndian.AppendUint32(nil, bps))
}

// Encode returns the wire form of the attribute.
// The caller is responsible for Length matching 2 + len(Value); constructors guarantee it.
func (a *Attribute) Encode() []byte {
	return a.AppendTo(make([]byte, 0, int(a.Length)))
}

// AppendTo appends the wire form of the attribute to dst
func (a *Attribute) AppendTo(dst []byte) []byte {
	dst = append(dst, a.Type, a.Length)
	return append(dst, a.Value...)
}

// DecodeAttribute reads one attribute starting at offset, never reading at or past end.
// It returns the attribute and the number of bytes consumed.
func DecodeAttribute(data []byte, offset, end int) (*Attribute, int, error) {
	if end > len(data) {
		end = len(data)
	}

	if offset+AttributeHeaderLength > end {
		return nil, 0, &ProtocolError{Kind: KindTruncatedHeader, Offset: offset}
	}

	attrType := data[offset]
	attrLength := int(data[offset+1])

	if attrLength < AttributeHeaderLength || offset+attrLength > end {
		return nil, 0, &ProtocolError{Kind: KindInvalidAttributeLength, Offset: offset, Length: attrLength}
	}

	value := make([]byte, attrLength-AttributeHeaderLength)
	copy(value, data[offset+AttributeHeaderLength:offset+attrLength])

	return &Attribute{
		Type:   attrType,
		Length: uint8(attrLength),
		Value:  value,
	}, attrLength, nil
}

// Uint32 decodes a 4-byte integer value
func (a *Attribute) Uint32() (uint32, bool) {
	if len(a.Value) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(a.Value), true
}

// String returns a string representation of the attribute
func (a *Attribute) String() string {
	return fmt.Sprintf("Type=%d, Length=%d, Value=%x", a.Type, a.Length, a.Value)
}

// ParseVendorSpecific splits a Vendor-Specific attribute into its vendor ID and payload
func ParseVendorSpecific(attr *Attribute) (uint32, []byte, error) {
	if attr.Type != AttrVendorSpecific {
		return 0, nil, fmt.Errorf("not a vendor-specific attribute (type %d)", attr.Type)
	}

	if len(attr.Value) < VendorIDLength {
		return 0, nil, fmt.Errorf("invalid VSA length: %d", len(attr.Value))
	}

	return binary.BigEndian.Uint32(attr.Value[:VendorIDLength]), attr.Value[VendorIDLength:], nil
}

// VendorSubAttribute is one Vendor-Type/Vendor-Length/Vendor-Data triplet
type VendorSubAttribute struct {
	Type  uint8
	Value []byte
}

// ParseVendorSubAttributes splits a vendor payload into RFC 2865 style sub-attributes.
// Parsing stops with an error at the first malformed sub-attribute.
func ParseVendorSubAttributes(payload []byte) ([]VendorSubAttribute, error) {
	var subs []VendorSubAttribute

	for offset := 0; offset < len(payload); {
		if offset+VendorSubAttributeHeaderLength > len(payload) {
			return subs, fmt.Errorf("truncated vendor sub-attribute at offset %d", offset)
		}

		subLength := int(payload[offset+1])
		if subLength < VendorSubAttributeHeaderLength || offset+subLength > len(payload) {
			return subs, fmt.Errorf("invalid vendor sub-attribute length at offset %d: %d", offset, subLength)
		}

		subs = append(subs, VendorSubAttribute{
			Type:  payload[offset],
			Value: payload[offset+VendorSubAttributeHeaderLength : offset+subLength],
		})
		offset += subLength
	}

	return subs, nil
}
