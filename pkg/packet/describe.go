package packet

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vitalvas/radiusd/pkg/dictionary"
)

// AttributeView is a human readable rendering of one attribute
type AttributeView struct {
	Name  string
	Value string
}

// fallbackNames is used when no dictionary is available or it lacks a code
var fallbackNames = map[uint8]string{
	AttrUserName:             "User-Name",
	AttrUserPassword:         "User-Password",
	AttrCHAPPassword:         "CHAP-Password",
	AttrNASIPAddress:         "NAS-IP-Address",
	AttrNASPort:              "NAS-Port",
	AttrServiceType:          "Service-Type",
	AttrFramedIPAddress:      "Framed-IP-Address",
	AttrReplyMessage:         "Reply-Message",
	AttrState:                "State",
	AttrClass:                "Class",
	AttrVendorSpecific:       "Vendor-Specific",
	AttrSessionTimeout:       "Session-Timeout",
	AttrIdleTimeout:          "Idle-Timeout",
	AttrCalledStationID:      "Called-Station-Id",
	AttrCallingStationID:     "Calling-Station-Id",
	AttrNASIdentifier:        "NAS-Identifier",
	AttrAcctStatusType:       "Acct-Status-Type",
	AttrAcctInputOctets:      "Acct-Input-Octets",
	AttrAcctOutputOctets:     "Acct-Output-Octets",
	AttrAcctSessionID:        "Acct-Session-Id",
	AttrAcctSessionTime:      "Acct-Session-Time",
	AttrAcctTerminateCause:   "Acct-Terminate-Cause",
	AttrMessageAuthenticator: "Message-Authenticator",
}

// AttributeName resolves a display name for an attribute type; dict may be nil
func AttributeName(dict *dictionary.Dictionary, attrType uint8) string {
	if dict != nil {
		if def, ok := dict.Attribute(uint32(attrType)); ok {
			return def.Name
		}
	}
	if name, ok := fallbackNames[attrType]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(attrType)) + ")"
}

// Describe renders every attribute of the packet in order. dict may be nil.
// User-Password is rendered like any other octet value; callers decide whether to log it.
func (p *Packet) Describe(dict *dictionary.Dictionary) []AttributeView {
	views := make([]AttributeView, 0, len(p.Attributes))
	for _, attr := range p.Attributes {
		views = append(views, AttributeView{
			Name:  AttributeName(dict, attr.Type),
			Value: describeValue(dict, attr),
		})
	}
	return views
}

func describeValue(dict *dictionary.Dictionary, attr *Attribute) string {
	switch attr.Type {
	case AttrUserName, AttrReplyMessage, AttrMessageAuthenticator:
		return describeText(attr.Value)
	case AttrVendorSpecific:
		return describeVendorSpecific(attr.Value)
	}

	if dict == nil {
		return fmt.Sprintf("%x", attr.Value)
	}

	def, ok := dict.Attribute(uint32(attr.Type))
	if !ok {
		return fmt.Sprintf("%x", attr.Value)
	}

	switch def.DataType {
	case dictionary.DataTypeString:
		return describeText(attr.Value)
	case dictionary.DataTypeInteger, dictionary.DataTypeDate:
		if len(attr.Value) == 4 {
			return strconv.FormatUint(uint64(binary.BigEndian.Uint32(attr.Value)), 10)
		}
	case dictionary.DataTypeIPAddr:
		if len(attr.Value) == net.IPv4len {
			return net.IP(attr.Value).String()
		}
	case dictionary.DataTypeIPv6:
		if len(attr.Value) == net.IPv6len {
			return net.IP(attr.Value).String()
		}
	}

	return fmt.Sprintf("%x", attr.Value)
}

func describeText(value []byte) string {
	if !utf8.Valid(value) {
		return fmt.Sprintf("%x", value)
	}
	return strings.TrimSpace(string(value))
}

// describeVendorSpecific renders the first vendor sub-attribute.
// A sub-attribute length that overruns the value yields empty data.
func describeVendorSpecific(value []byte) string {
	if len(value) < VendorIDLength+VendorSubAttributeHeaderLength {
		return "Invalid VSA"
	}

	vendorID := binary.BigEndian.Uint32(value[:VendorIDLength])
	vendorType := value[4]
	vendorLen := int(value[5])

	var data []byte
	if vendorLen > VendorSubAttributeHeaderLength {
		end := VendorIDLength + vendorLen
		if end <= len(value) {
			data = value[VendorIDLength+VendorSubAttributeHeaderLength : end]
		}
	}

	return fmt.Sprintf("VendorID=%d, Type=%d, Data=%x", vendorID, vendorType, data)
}
