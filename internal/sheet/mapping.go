package sheet

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/jobmap/internal/model"
)

// mappingFile is the YAML layout of a column-mapping file:
//
//	columns:
//	  name: Customer Name
//	  price: Total ($)
type mappingFile struct {
	Columns map[string]string `yaml:"columns"`
}

// LoadMapping reads a YAML column-mapping file.
func LoadMapping(path string) (model.ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read mapping file")
	}
	return ParseMapping(data)
}

// ParseMapping decodes a YAML column mapping and rejects unknown fields.
func ParseMapping(data []byte) (model.ColumnMapping, error) {
	var mf mappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, eris.Wrap(err, "sheet: parse mapping")
	}
	return MappingFromStrings(mf.Columns)
}

// MappingFromStrings converts a field-name keyed map into a ColumnMapping.
func MappingFromStrings(m map[string]string) (model.ColumnMapping, error) {
	known := make(map[model.Field]bool, len(model.Fields))
	for _, f := range model.Fields {
		known[f] = true
	}

	out := make(model.ColumnMapping, len(m))
	for k, v := range m {
		f := model.Field(strings.ToLower(strings.TrimSpace(k)))
		if !known[f] {
			return nil, eris.Errorf("sheet: unknown mapping field %q", k)
		}
		out[f] = strings.TrimSpace(v)
	}
	return out, nil
}
