package packet

import "encoding/binary"

// Encode converts a Packet into its binary representation per RFC 2865 Section 3.
// The length field is computed from the serialized attributes and p.Length is updated to match.
func (p *Packet) Encode() []byte {
	data := make([]byte, PacketHeaderLength, p.EncodedLength())

	// Header, length back-patched below
	data[0] = byte(p.Code)
	data[1] = p.Identifier
	copy(data[4:PacketHeaderLength], p.Authenticator[:])

	for _, attr := range p.Attributes {
		data = attr.AppendTo(data)
	}

	p.Length = uint16(len(data))
	binary.BigEndian.PutUint16(data[2:4], p.Length)

	return data
}

// EncodedLength returns the size Encode would produce. It may exceed MaxPacketLength.
func (p *Packet) EncodedLength() int {
	size := PacketHeaderLength
	for _, attr := range p.Attributes {
		size += int(attr.Length)
	}
	return size
}

// Decode parses binary data into a Packet per RFC 2865 Section 3.
// Bytes past the length declared in the header are ignored.
func Decode(data []byte) (*Packet, error) {
	if len(data) < PacketHeaderLength {
		return nil, &ProtocolError{Kind: KindTooShort, Got: len(data)}
	}

	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length < PacketHeaderLength || len(data) < length {
		return nil, &ProtocolError{Kind: KindLengthMismatch, Length: length, Got: len(data)}
	}

	pkt := &Packet{
		Code:       Code(data[0]),
		Identifier: data[1],
		Length:     uint16(length),
		Attributes: make([]*Attribute, 0),
	}
	copy(pkt.Authenticator[:], data[4:PacketHeaderLength])

	for offset := PacketHeaderLength; offset < length; {
		attr, n, err := DecodeAttribute(data, offset, length)
		if err != nil {
			if perr, ok := err.(*ProtocolError); ok && perr.Kind == KindTruncatedHeader {
				return nil, &ProtocolError{Kind: KindTruncatedAttribute, Offset: offset}
			}
			return nil, err
		}

		pkt.Attributes = append(pkt.Attributes, attr)
		offset += n
	}

	return pkt, nil
}
