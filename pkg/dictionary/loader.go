package dictionary

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vitalvas/radiusd/pkg/log"
)

// Option configures dictionary loading
type Option func(*loader)

// WithLogger sets the logger that receives warnings about skipped lines
func WithLogger(logger log.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// loader parses FreeRADIUS style dictionary text into a Dictionary.
// visited holds every file already parsed so each one is read at most once,
// which makes include cycles and diamonds harmless.
type loader struct {
	dict    *Dictionary
	visited map[string]struct{}
	logger  log.Logger

	read func(name string) ([]byte, error)
	dir  func(name string) string
	join func(dir, name string) string
	key  func(name string) string
}

func newLoader(opts []Option) *loader {
	l := &loader{
		dict:    newDictionary(),
		visited: make(map[string]struct{}),
		logger:  log.NewDefault(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads a dictionary file from disk, following $INCLUDE directives
// relative to the including file's directory.
// An unreadable file is an error; a malformed line is logged and skipped.
func Load(name string, opts ...Option) (*Dictionary, error) {
	l := newLoader(opts)
	l.read = os.ReadFile
	l.dir = filepath.Dir
	l.join = func(dir, name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(dir, name)
	}
	l.key = func(name string) string {
		if abs, err := filepath.Abs(name); err == nil {
			return abs
		}
		return filepath.Clean(name)
	}

	if err := l.parseFile(name); err != nil {
		return nil, err
	}
	return l.dict, nil
}

// LoadFS is Load over an fs.FS; include paths use forward slashes.
func LoadFS(fsys fs.FS, name string, opts ...Option) (*Dictionary, error) {
	l := newLoader(opts)
	l.read = func(name string) ([]byte, error) {
		return fs.ReadFile(fsys, name)
	}
	l.dir = path.Dir
	l.join = func(dir, name string) string {
		return path.Join(dir, name)
	}
	l.key = path.Clean

	if err := l.parseFile(name); err != nil {
		return nil, err
	}
	return l.dict, nil
}

func (l *loader) parseFile(name string) error {
	key := l.key(name)
	if _, seen := l.visited[key]; seen {
		return nil
	}
	l.visited[key] = struct{}{}

	data, err := l.read(name)
	if err != nil {
		return fmt.Errorf("failed to read dictionary %s: %w", name, err)
	}

	// vendor selected by BEGIN-VENDOR, zero outside a block
	var blockVendor uint32
	// set inside a block naming an undeclared vendor
	var unknownBlock bool

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineno := 0
	for scanner.Scan() {
		lineno++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "$INCLUDE":
			if len(fields) != 2 {
				l.logger.Warnf("dictionary %s:%d: malformed $INCLUDE", name, lineno)
				continue
			}
			if err := l.parseFile(l.join(l.dir(name), fields[1])); err != nil {
				return err
			}
		case "ATTRIBUTE":
			if unknownBlock {
				l.logger.Warnf("dictionary %s:%d: skipping %s inside unknown vendor block", name, lineno, fields[0])
				continue
			}
			l.parseAttribute(fields, blockVendor, name, lineno)
		case "VENDOR":
			l.parseVendor(fields, name, lineno)
		case "BEGIN-VENDOR":
			if len(fields) < 2 {
				continue
			}
			id, ok := l.dict.vendors[fields[1]]
			if !ok {
				l.logger.Warnf("dictionary %s:%d: unknown vendor %q in BEGIN-VENDOR", name, lineno, fields[1])
			}
			blockVendor = id
			unknownBlock = !ok
		case "END-VENDOR":
			blockVendor = 0
			unknownBlock = false
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan dictionary %s: %w", name, err)
	}
	return nil
}

// parseAttribute handles "ATTRIBUTE <name> <code> <type> [vendor|flags]"
func (l *loader) parseAttribute(fields []string, blockVendor uint32, name string, lineno int) {
	if len(fields) < 4 {
		return
	}

	// nested numbering such as 26.9.1 is not modelled
	if strings.Contains(fields[2], ".") {
		return
	}

	code, err := parseNumber(fields[2])
	if err != nil {
		l.logger.Warnf("dictionary %s:%d: %v", name, lineno, err)
		return
	}

	vendor := blockVendor
	if len(fields) >= 5 {
		if id, ok := l.dict.vendors[fields[4]]; ok {
			vendor = id
		}
	}

	l.dict.addAttribute(&AttributeDef{
		Name:     fields[1],
		Code:     code,
		DataType: DataType(fields[3]),
		Vendor:   vendor,
	})
}

// parseVendor handles "VENDOR <name> <id> [format]"
func (l *loader) parseVendor(fields []string, name string, lineno int) {
	if len(fields) < 3 {
		return
	}

	if strings.Contains(fields[2], ".") {
		return
	}

	id, err := parseNumber(fields[2])
	if err != nil {
		l.logger.Warnf("dictionary %s:%d: %v", name, lineno, err)
		return
	}

	l.dict.addVendor(fields[1], id)
}

// parseNumber accepts decimal or 0x-prefixed hexadecimal
func parseNumber(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid hex %q: %w", s, err)
		}
		return uint32(v), nil
	}

	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}
