package dictionary

import "sort"

// Dictionary maps attribute codes to definitions and vendor names to IDs.
// It is never modified once a loader returns it, so concurrent readers need no locking.
type Dictionary struct {
	// standard attributes keyed by code, last definition wins
	attributes map[uint32]*AttributeDef
	byName     map[string]*AttributeDef

	// vendor attributes keyed by vendor ID then code
	vendorAttrs map[uint32]map[uint32]*AttributeDef

	vendors     map[string]uint32
	vendorNames map[uint32]string
}

func newDictionary() *Dictionary {
	return &Dictionary{
		attributes:  make(map[uint32]*AttributeDef),
		byName:      make(map[string]*AttributeDef),
		vendorAttrs: make(map[uint32]map[uint32]*AttributeDef),
		vendors:     make(map[string]uint32),
		vendorNames: make(map[uint32]string),
	}
}

// New builds a dictionary from explicit definitions.
// Later entries overwrite earlier ones with the same key.
func New(attrs []*AttributeDef, vendors map[string]uint32) *Dictionary {
	d := newDictionary()
	for name, id := range vendors {
		d.addVendor(name, id)
	}
	for _, attr := range attrs {
		d.addAttribute(attr)
	}
	return d
}

func (d *Dictionary) addAttribute(attr *AttributeDef) {
	if attr.IsVendor() {
		if d.vendorAttrs[attr.Vendor] == nil {
			d.vendorAttrs[attr.Vendor] = make(map[uint32]*AttributeDef)
		}
		d.vendorAttrs[attr.Vendor][attr.Code] = attr
	} else {
		if prev, ok := d.attributes[attr.Code]; ok && d.byName[prev.Name] == prev {
			delete(d.byName, prev.Name)
		}
		d.attributes[attr.Code] = attr
	}
	d.byName[attr.Name] = attr
}

func (d *Dictionary) addVendor(name string, id uint32) {
	d.vendors[name] = id
	d.vendorNames[id] = name
}

// Attribute finds a standard attribute by code
func (d *Dictionary) Attribute(code uint32) (*AttributeDef, bool) {
	attr, ok := d.attributes[code]
	return attr, ok
}

// VendorAttribute finds a vendor attribute by vendor ID and code
func (d *Dictionary) VendorAttribute(vendorID, code uint32) (*AttributeDef, bool) {
	attr, ok := d.vendorAttrs[vendorID][code]
	return attr, ok
}

// AttributeByName finds a standard or vendor attribute by name
func (d *Dictionary) AttributeByName(name string) (*AttributeDef, bool) {
	attr, ok := d.byName[name]
	return attr, ok
}

// VendorID finds a vendor ID by name
func (d *Dictionary) VendorID(name string) (uint32, bool) {
	id, ok := d.vendors[name]
	return id, ok
}

// VendorName finds a vendor name by ID
func (d *Dictionary) VendorName(id uint32) (string, bool) {
	name, ok := d.vendorNames[id]
	return name, ok
}

// Len returns the number of standard attribute definitions
func (d *Dictionary) Len() int {
	return len(d.attributes)
}

// Attributes returns the standard attribute definitions ordered by code
func (d *Dictionary) Attributes() []*AttributeDef {
	attrs := make([]*AttributeDef, 0, len(d.attributes))
	for _, attr := range d.attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Code < attrs[j].Code })
	return attrs
}

// Vendors returns a copy of the vendor name to ID table
func (d *Dictionary) Vendors() map[string]uint32 {
	vendors := make(map[string]uint32, len(d.vendors))
	for name, id := range d.vendors {
		vendors[name] = id
	}
	return vendors
}
