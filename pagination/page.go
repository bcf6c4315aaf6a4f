package pagination

import (
	"bytes"
	"encoding/json"
)

// Page is one page of a paginated list:
// {"count": N, "next": url|null, "previous": url|null, "results": [...]}.
//
// Endpoints that answer a bare JSON array decode into a single page holding
// every element, with no cursor.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type pageWire[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (p *Page[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*p = Page[T]{Count: len(items), Results: items}
		return nil
	}

	var w pageWire[T]
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = Page[T](w)
	return nil
}

// NextURL returns the next cursor, or "" on the last page.
func (p Page[T]) NextURL() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}
