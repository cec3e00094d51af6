package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CustomerInfo is the cadastral data forwarded to the payment provider.
// Document (CPF/CNPJ) is only mandatory for boleto charges.
type CustomerInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Value serializes the customer info as JSONB for audit storage.
func (c CustomerInfo) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan deserializes the JSONB column back into the struct.
func (c *CustomerInfo) Scan(value any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported customer info column type %T", value)
	}
}
