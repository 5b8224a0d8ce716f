package layout

import (
	"fmt"
	"strings"
)

// PageSize holds page dimensions in points.
type PageSize struct {
	Width  float64
	Height float64
}

// Standard page sizes in points.
var (
	Letter = PageSize{612, 792}
	Legal  = PageSize{612, 1008}
	A4     = PageSize{595, 842}
	A5     = PageSize{420, 595}
)

var pageSizes = map[string]PageSize{
	"letter": Letter,
	"legal":  Legal,
	"a4":     A4,
	"a5":     A5,
}

// ParsePageSize resolves a page size preset by name (case-insensitive).
func ParsePageSize(name string) (PageSize, error) {
	if s, ok := pageSizes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return PageSize{}, fmt.Errorf("unknown page size %q (supported: letter, legal, a4, a5)", name)
}
