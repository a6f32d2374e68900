package querycache

import (
	"fmt"
	"net/url"
	"strings"
)

const keyPrefix = "catalog:query:"

// Key identifies a cached query: the entity it reads and every parameter that
// shapes the result (filters, page, page size).
type Key struct {
	Entity string
	Params url.Values
}

func NewKey(entity string, kv ...string) Key {
	params := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		params.Set(kv[i], kv[i+1])
	}
	return Key{Entity: entity, Params: params}
}

func (k Key) String() string {
	return EntityPrefix(k.Entity) + k.Params.Encode()
}

func EntityPrefix(entity string) string {
	return keyPrefix + entity + ":"
}

func ParseKey(raw string) (Key, error) {
	rest, ok := strings.CutPrefix(raw, keyPrefix)
	if !ok {
		return Key{}, fmt.Errorf("querycache: %q is not a query key", raw)
	}

	entity, encoded, ok := strings.Cut(rest, ":")
	if !ok {
		return Key{}, fmt.Errorf("querycache: %q has no entity", raw)
	}

	params, err := url.ParseQuery(encoded)
	if err != nil {
		return Key{}, fmt.Errorf("querycache: %q: %w", raw, err)
	}

	return Key{Entity: entity, Params: params}, nil
}
