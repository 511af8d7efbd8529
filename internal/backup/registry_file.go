package backup

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"
)

// registryFile is the YAML layout accepted by LoadRegistry:
//
//	tables:
//	  - name: category_definitions
//	    primary_key: [id]
//	    surrogate: true
//	  - name: transactions
//	    primary_key: [identifier, vendor]
type registryFile struct {
	Tables []TableConfig `yaml:"tables"`
}

// LoadRegistry reads a registry from a YAML file. Tables must be listed in
// foreign-key order.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	reg, err := ParseRegistry(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry decodes a YAML registry document. Unknown fields are
// rejected so a typo cannot silently drop a key column.
func ParseRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f registryFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("registry: empty document")
		}
		return nil, fmt.Errorf("registry: %w", err)
	}
	return NewRegistry(f.Tables...)
}
