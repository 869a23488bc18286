package packet

// RADIUS packet structure constants per RFC 2865 Section 3
const (
	// PacketHeaderLength is the length of the RADIUS packet header (Code + ID + Length + Authenticator)
	PacketHeaderLength = 20
	// MaxPacketLength is the maximum allowed RADIUS packet length
	MaxPacketLength = 4096
	// AuthenticatorLength is the length of the authenticator field
	AuthenticatorLength = 16
	// AttributeHeaderLength is the length of attribute header (Type + Length)
	AttributeHeaderLength = 2
	// MaxAttributeValueLength is the maximum value length for a single attribute (255 - 2 for header)
	MaxAttributeValueLength = 253
	// VendorIDLength is the length of the Vendor-Id prefix inside a Vendor-Specific value
	VendorIDLength = 4
	// VendorSubAttributeHeaderLength is the length of a vendor sub-attribute header (Vendor-Type + Vendor-Length)
	VendorSubAttributeHeaderLength = 2
)

// Attribute types used by the codec and the response builders (RFC 2865 Section 5)
const (
	AttrUserName             uint8 = 1
	AttrUserPassword         uint8 = 2
	AttrCHAPPassword         uint8 = 3
	AttrNASIPAddress         uint8 = 4
	AttrNASPort              uint8 = 5
	AttrServiceType          uint8 = 6
	AttrFramedIPAddress      uint8 = 8
	AttrReplyMessage         uint8 = 18
	AttrState                uint8 = 24
	AttrClass                uint8 = 25
	AttrVendorSpecific       uint8 = 26
	AttrSessionTimeout       uint8 = 27
	AttrIdleTimeout          uint8 = 28
	AttrCalledStationID      uint8 = 30
	AttrCallingStationID     uint8 = 31
	AttrNASIdentifier        uint8 = 32
	AttrAcctStatusType       uint8 = 40
	AttrAcctInputOctets      uint8 = 42
	AttrAcctOutputOctets     uint8 = 43
	AttrAcctSessionID        uint8 = 44
	AttrAcctSessionTime      uint8 = 46
	AttrAcctTerminateCause   uint8 = 49
	AttrMessageAuthenticator uint8 = 80
)

// WISPr vendor constants (Wi-Fi Alliance, PEN 14122)
const (
	VendorWISPr               uint32 = 14122
	WISPrBandwidthMaxUpType   uint8  = 7
	WISPrBandwidthMaxDownType uint8  = 8
)

// Acct-Status-Type values (RFC 2866 Section 5.1)
const (
	AcctStatusStart         uint32 = 1
	AcctStatusStop          uint32 = 2
	AcctStatusInterimUpdate uint32 = 3
	AcctStatusAccountingOn  uint32 = 7
	AcctStatusAccountingOff uint32 = 8
)
