package facts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

// File is the YAML layout of a fact file.
//
//	facts:
//	  - set: crm
//	    type: CustomerId
//	    value: "123"
//	  - type: Customer
//	    value:
//	      id: "456"
//	      name: Grace
//
// Entries without a set go to Default.
type File struct {
	Facts []FileEntry `yaml:"facts"`
}

// FileEntry is one fact of a File.
type FileEntry struct {
	Set   FactSetID `yaml:"set"`
	Type  string    `yaml:"type"`
	Value any       `yaml:"value"`
}

// LoadFile reads facts from a YAML file and types them against s.
func LoadFile(path string, s *schema.Schema) (*FactSetMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "facts", "LoadFile", "read "+path)
	}
	return ParseFile(data, s)
}

// ParseFile builds a fact set map from YAML. Values are tagged "provided".
func ParseFile(data []byte, s *schema.Schema) (*FactSetMap, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapInvalid(err, "facts", "ParseFile", "yaml decode")
	}

	m := NewFactSetMap()
	for i, entry := range file.Facts {
		if entry.Type == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("fact %d has no type: %w", i, errors.ErrInvalidData),
				"facts", "ParseFile", "entry check")
		}
		value, err := FromValue(s, schema.QualifiedName(entry.Type), entry.Value)
		if err != nil {
			return nil, errors.WrapInvalid(err, "facts", "ParseFile", fmt.Sprintf("fact %d", i))
		}
		set := entry.Set
		if set == "" {
			set = Default
		}
		m.Add(set, value.WithSource("provided"))
	}
	return m, nil
}
