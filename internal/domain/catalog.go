package domain

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// TableInfo describes one exposed table.
type TableInfo struct {
	TableName   Table  `json:"table_name" yaml:"table_name"`
	Description string `json:"description" yaml:"description"`
}

// Catalog holds the static descriptive content served by the API.
type Catalog struct {
	Tables         []TableInfo `yaml:"tables"`
	Theory         string      `yaml:"theory"`
	PreviewMessage string      `yaml:"preview_message"`
}

// LoadCatalog parses the embedded catalog and checks that it describes
// exactly the exposed tables.
func LoadCatalog() (Catalog, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[Table]bool, len(c.Tables))
	for _, info := range c.Tables {
		if !info.TableName.Valid() {
			return Catalog{}, fmt.Errorf("catalog: %w: %q", ErrUnknownTable, info.TableName)
		}
		if seen[info.TableName] {
			return Catalog{}, fmt.Errorf("catalog: duplicate table %q", info.TableName)
		}
		seen[info.TableName] = true
	}
	for _, t := range tables {
		if !seen[t] {
			return Catalog{}, fmt.Errorf("catalog: missing description for %q", t)
		}
	}
	return c, nil
}
