package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported dictionary file formats
const (
	FormatAuto       = "auto"
	FormatFreeRADIUS = "freeradius"
	FormatYAML       = "yaml"
	FormatJSON       = "json"
)

// FileSource loads dictionaries from local files.
// Files are applied in order, so later definitions replace earlier ones.
type FileSource struct {
	// Path specifies a single file path to load
	Path string

	// Paths specifies additional file paths to load and merge
	Paths []string

	// Format is one of the Format constants; auto detects from the extension
	Format string

	Options []Option
}

// structuredFile is the YAML/JSON layout:
//
//	vendors:
//	  - name: WISPr
//	    id: 14122
//	attributes:
//	  - name: WISPr-Bandwidth-Max-Up
//	    code: 7
//	    type: integer
//	    vendor: WISPr
type structuredFile struct {
	Vendors    []structuredVendor    `yaml:"vendors" json:"vendors"`
	Attributes []structuredAttribute `yaml:"attributes" json:"attributes"`
}

type structuredVendor struct {
	Name string `yaml:"name" json:"name"`
	ID   uint32 `yaml:"id" json:"id"`
}

type structuredAttribute struct {
	Name   string   `yaml:"name" json:"name"`
	Code   uint32   `yaml:"code" json:"code"`
	Type   DataType `yaml:"type" json:"type"`
	Vendor string   `yaml:"vendor,omitempty" json:"vendor,omitempty"`
}

// LoadFile loads a single dictionary file, detecting the format from its extension
func LoadFile(path string, opts ...Option) (*Dictionary, error) {
	src := &FileSource{Path: path, Options: opts}
	return src.Load()
}

// Load loads and merges every configured file
func (fs *FileSource) Load() (*Dictionary, error) {
	var paths []string
	if fs.Path != "" {
		paths = append(paths, fs.Path)
	}
	paths = append(paths, fs.Paths...)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no files specified to load")
	}

	merged := newDictionary()
	for _, path := range paths {
		dict, err := fs.loadSingleFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load file %s: %w", path, err)
		}
		merged.merge(dict)
	}

	return merged, nil
}

func (fs *FileSource) loadSingleFile(path string) (*Dictionary, error) {
	format := fs.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(path)
	}

	if format == FormatFreeRADIUS {
		return Load(path, fs.Options...)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file structuredFile
	switch format {
	case FormatYAML, "yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	return file.build()
}

func (f *structuredFile) build() (*Dictionary, error) {
	dict := newDictionary()

	for _, v := range f.Vendors {
		if v.Name == "" || v.ID == 0 {
			return nil, fmt.Errorf("vendor %q: name and non-zero id are required", v.Name)
		}
		dict.addVendor(v.Name, v.ID)
	}

	for _, a := range f.Attributes {
		if a.Name == "" {
			return nil, fmt.Errorf("attribute with code %d has no name", a.Code)
		}

		def := &AttributeDef{Name: a.Name, Code: a.Code, DataType: a.Type}
		if a.Vendor != "" {
			id, ok := dict.vendors[a.Vendor]
			if !ok {
				return nil, fmt.Errorf("attribute %s: unknown vendor %q", a.Name, a.Vendor)
			}
			def.Vendor = id
		}
		dict.addAttribute(def)
	}

	return dict, nil
}

// merge copies src into d; entries from src win
func (d *Dictionary) merge(src *Dictionary) {
	for name, id := range src.vendors {
		d.addVendor(name, id)
	}
	for _, attr := range src.Attributes() {
		d.addAttribute(attr)
	}
	for _, attrs := range src.vendorAttrs {
		for _, attr := range attrs {
			d.addAttribute(attr)
		}
	}
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatFreeRADIUS
	}
}
