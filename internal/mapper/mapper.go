package mapper

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Virtual column names resolvable in any mapping regardless of the file
// headers. Their values come from the file context, not from row data.
const (
	VirtualRefClean   = "ref_clean"
	VirtualDateDuJour = "date_du_jour"
)

// Context supplies the values behind virtual columns for one file.
type Context struct {
	FileName string
	Today    time.Time
}

// VirtualValue resolves a virtual column name against the file context.
func (c Context) VirtualValue(name string) (string, bool) {
	switch strings.ToLower(name) {
	case VirtualRefClean:
		return RefClean(c.FileName), true
	case VirtualDateDuJour:
		return c.Today.Format("2006-01-02"), true
	}
	return "", false
}

// RefClean derives a normalized reference from a file name: extension
// stripped, uppercased, anything outside A-Z0-9 removed.
func RefClean(fileName string) string {
	base := path.Base(fileName)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Source points at one resolved value origin: a file column by index, or
// a virtual column evaluated from the Context.
type Source struct {
	Index   int
	Virtual string
}

// Value extracts the source's value from one row.
func (s Source) Value(values []string, ctx Context) (string, bool) {
	if s.Virtual != "" {
		return ctx.VirtualValue(s.Virtual)
	}
	if s.Index < 0 || s.Index >= len(values) {
		return "", false
	}
	v := strings.TrimSpace(values[s.Index])
	return v, v != ""
}

// Mapping binds a provider's configured columns to positions in one
// file's header row. Resolution is case-insensitive.
type Mapping struct {
	Barcodes []Source
	Price    Source
	index    map[string]int
	targets  map[string]Source
}

// Resolve builds a mapping for one file. At least one barcode candidate
// and the price column must resolve; otherwise the whole file is
// unusable and an error names what is missing.
func Resolve(headers, barcodeColumns []string, priceColumn string) (*Mapping, error) {
	m := &Mapping{index: make(map[string]int, len(headers))}
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := m.index[key]; !dup {
			m.index[key] = i
		}
	}

	for _, col := range barcodeColumns {
		if src, ok := m.ResolveTarget(col); ok {
			m.Barcodes = append(m.Barcodes, src)
		}
	}
	if len(m.Barcodes) == 0 {
		return nil, fmt.Errorf("none of the barcode columns %v found in headers %v", barcodeColumns, headers)
	}

	priceColumn = strings.TrimSpace(priceColumn)
	if priceColumn == "" {
		return nil, fmt.Errorf("no price column configured")
	}
	src, ok := m.ResolveTarget(priceColumn)
	if !ok {
		return nil, fmt.Errorf("price column %q not found in headers %v", priceColumn, headers)
	}
	m.Price = src
	return m, nil
}

// ResolveTemplate builds a mapping from persisted target to column
// pairs. The barcode and price targets are mandatory; every named
// column must exist in the headers or be a virtual column. Remaining
// pairs become free-form targets resolvable through BoundTarget.
func ResolveTemplate(headers []string, columns map[string]string) (*Mapping, error) {
	m := &Mapping{
		index:   make(map[string]int, len(headers)),
		targets: make(map[string]Source, len(columns)),
	}
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := m.index[key]; !dup {
			m.index[key] = i
		}
	}

	hasPrice := false
	for target, col := range columns {
		key := strings.ToLower(strings.TrimSpace(target))
		if key == "" {
			continue
		}
		src, ok := m.ResolveTarget(col)
		if !ok {
			return nil, fmt.Errorf("mapped column %q for target %q not found in headers %v", col, target, headers)
		}
		m.targets[key] = src
		switch key {
		case "barcode":
			m.Barcodes = append(m.Barcodes, src)
		case "price":
			m.Price = src
			hasPrice = true
		}
	}
	if len(m.Barcodes) == 0 {
		return nil, fmt.Errorf("mapping template binds no barcode target")
	}
	if !hasPrice {
		return nil, fmt.Errorf("mapping template binds no price target")
	}
	return m, nil
}

// BoundTarget resolves a target explicitly bound by a template. Unlike
// ResolveTarget it never falls back to header names, so template
// bindings keep their priority over synonym scans.
func (m *Mapping) BoundTarget(name string) (Source, bool) {
	src, ok := m.targets[strings.ToLower(strings.TrimSpace(name))]
	return src, ok
}

// ResolveTarget resolves a single target name, checking file headers
// first and virtual columns second. Used directly by free-form mapping.
func (m *Mapping) ResolveTarget(name string) (Source, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Source{}, false
	}
	if i, ok := m.index[key]; ok {
		return Source{Index: i}, true
	}
	if key == VirtualRefClean || key == VirtualDateDuJour {
		return Source{Index: -1, Virtual: key}, true
	}
	return Source{}, false
}

// BarcodeValue returns the first non-empty value among the resolved
// barcode candidates, in configured priority order.
func (m *Mapping) BarcodeValue(values []string, ctx Context) (string, bool) {
	for _, src := range m.Barcodes {
		if v, ok := src.Value(values, ctx); ok {
			return v, true
		}
	}
	return "", false
}

// PriceValue returns the raw price cell for one row.
func (m *Mapping) PriceValue(values []string, ctx Context) (string, bool) {
	return m.Price.Value(values, ctx)
}
