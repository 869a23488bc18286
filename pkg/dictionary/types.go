package dictionary

// DataType is the dictionary type name of an attribute (string, integer, ipaddr, ...).
// It informs display only; values are never type-checked while decoding.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeOctets  DataType = "octets"
	DataTypeInteger DataType = "integer"
	DataTypeIPAddr  DataType = "ipaddr"
	DataTypeDate    DataType = "date"
	DataTypeIPv6    DataType = "ipv6addr"
)

// IsText reports whether values of this type render as text
func (t DataType) IsText() bool {
	return t == DataTypeString
}

// AttributeDef defines a RADIUS attribute
type AttributeDef struct {
	Name     string   `yaml:"name" json:"name"`
	Code     uint32   `yaml:"code" json:"code"`
	DataType DataType `yaml:"type" json:"type"`
	// Vendor is the vendor ID for vendor-scoped attributes, zero otherwise.
	Vendor uint32 `yaml:"vendor_id,omitempty" json:"vendor_id,omitempty"`
}

// IsVendor reports whether the attribute belongs to a vendor
func (a *AttributeDef) IsVendor() bool {
	return a.Vendor != 0
}
