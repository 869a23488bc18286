// Package dictionaries bundles the default FreeRADIUS-format dictionary
// used when no dictionary path is configured.
package dictionaries

import (
	"embed"
	"io/fs"

	"github.com/vitalvas/radiusd/pkg/dictionary"
)

// Root is the entry file inside FS
const Root = "dictionary"

//go:embed files
var files embed.FS

// FS returns the bundled dictionary files
func FS() fs.FS {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewDefault loads the bundled dictionary: RFC 2865/2866/2869 attributes
// plus the WISPr and Mikrotik vendor dictionaries.
//
// Example usage:
//
//	dict, err := dictionaries.NewDefault()
//	if err != nil {
//		return err
//	}
//	err = server.Serve(ctx, ":1812", dict, secret, handler)
func NewDefault(opts ...dictionary.Option) (*dictionary.Dictionary, error) {
	return dictionary.LoadFS(FS(), Root, opts...)
}
