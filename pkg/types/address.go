package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Address captures the shipping address snapshot stored on orders.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Value serializes the address as JSONB for storage.
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan deserializes the JSONB column back into the struct.
func (a *Address) Scan(value any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported address column type %T", value)
	}
}
