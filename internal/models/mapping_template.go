package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Import targets a mapping template can bind. Barcode and price are
// mandatory for a template to be applicable; ref overrides the synonym
// scan; anything else is a free-form target resolvable by name.
const (
	MappingTargetBarcode = "barcode"
	MappingTargetPrice   = "price"
	MappingTargetRef     = "ref"
)

// MappingColumns maps import targets to source column names. Stored as
// JSONB.
type MappingColumns map[string]string

func (m MappingColumns) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *MappingColumns) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = nil
		return nil
	}
	return fmt.Errorf("unsupported type %T for MappingColumns", src)
}

// MappingTemplate is a persisted free-form column mapping. A template
// bound to a provider replaces the provider's flat barcode/price column
// configuration for every file of that provider.
type MappingTemplate struct {
	ID         int            `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	ProviderID *int           `db:"provider_id" json:"providerId,omitempty"`
	Columns    MappingColumns `db:"columns" json:"columns"`
	CreatedAt  time.Time      `db:"created_at" json:"-"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
}
