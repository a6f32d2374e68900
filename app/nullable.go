package app

import (
	"bytes"
	"catalog/domain"

	"github.com/shopspring/decimal"
)

// NullableDecimal is a JSON field that tells an explicit null apart from an
// omitted one. Set is true whenever the key was present in the body.
type NullableDecimal struct {
	Set   bool
	Value *decimal.Decimal
}

func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}

	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	n.Value = &d
	return nil
}

// discountColumn stores a present discount. null and 0 both clear it.
func (n NullableDecimal) discountColumn(f domain.Fields, col string) {
	if !n.Set {
		return
	}
	if n.Value == nil || n.Value.IsZero() {
		f[col] = nil
		return
	}
	f[col] = *n.Value
}
