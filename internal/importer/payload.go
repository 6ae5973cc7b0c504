package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"catalog-admin/internal/domain"
)

// Payload is a parsed import document:
//
//	{"categories": [{"title": "Tools", "packages": ["com.a.b", ...]}, ...]}
type Payload struct {
	Categories []CategoryEntry
}

type CategoryEntry struct {
	Line     int
	Title    string
	TitleRaw string // JSON text of a title that was not a string
	Packages []PackageEntry
}

type PackageEntry struct {
	Line    int
	Package string
	Raw     string // JSON text of an entry that was not a string
}

func (p Payload) packageCount() int {
	n := 0
	for _, c := range p.Categories {
		n += len(c.Packages)
	}
	return n
}

// MarshalJSON writes the document back in its upload shape. Entries that were not strings
// are kept verbatim.
func (p Payload) MarshalJSON() ([]byte, error) {
	type doc struct {
		Title    json.RawMessage   `json:"title"`
		Packages []json.RawMessage `json:"packages"`
	}
	out := struct {
		Categories []doc `json:"categories"`
	}{Categories: make([]doc, 0, len(p.Categories))}
	for _, c := range p.Categories {
		d := doc{Title: rawOrString(c.TitleRaw, c.Title), Packages: make([]json.RawMessage, 0, len(c.Packages))}
		for _, pkg := range c.Packages {
			d.Packages = append(d.Packages, rawOrString(pkg.Raw, pkg.Package))
		}
		out.Categories = append(out.Categories, d)
	}
	return json.Marshal(out)
}

func rawOrString(raw, s string) json.RawMessage {
	if raw != "" {
		return json.RawMessage(raw)
	}
	b, _ := json.Marshal(s)
	return b
}

// ParsePayload reads an import document, remembering the source line of every category
// and package entry. Entries of the wrong JSON type are kept so they can be reported per
// line; only a document of the wrong overall shape is rejected.
func ParsePayload(data []byte) (Payload, error) {
	p := &parser{dec: json.NewDecoder(bytes.NewReader(data)), lines: newlineOffsets(data)}
	out, err := p.document()
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return Payload{}, err
		}
		return Payload{}, domain.Validation("file", fmt.Sprintf("invalid JSON: %v", err))
	}
	return out, nil
}

type parser struct {
	dec   *json.Decoder
	lines []int
}

func newlineOffsets(data []byte) []int {
	var out []int
	for i, b := range data {
		if b == '\n' {
			out = append(out, i)
		}
	}
	return out
}

// lineAt returns the 1-based line of byte offset off.
func (p *parser) lineAt(off int64) int {
	return sort.SearchInts(p.lines, int(off)) + 1
}

func (p *parser) shapeError(off int64, msg string) error {
	return domain.Validation("file", fmt.Sprintf("line %d: %s", p.lineAt(off), msg))
}

// delim reads the next token and requires it to be d. It returns the offset of the token.
func (p *parser) delim(d json.Delim, what string) (int64, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return 0, err
	}
	off := p.dec.InputOffset() - 1
	if got, ok := tok.(json.Delim); !ok || got != d {
		return off, p.shapeError(off, what)
	}
	return off, nil
}

// value decodes the next value verbatim and returns it with its start offset.
func (p *parser) value() (json.RawMessage, int64, error) {
	var raw json.RawMessage
	if err := p.dec.Decode(&raw); err != nil {
		return nil, 0, err
	}
	return raw, p.dec.InputOffset() - int64(len(raw)), nil
}

func (p *parser) document() (Payload, error) {
	var out Payload
	if _, err := p.delim('{', "document must be an object"); err != nil {
		return out, err
	}
	seen := false
	for p.dec.More() {
		key, err := p.key()
		if err != nil {
			return out, err
		}
		if key != "categories" {
			if _, _, err := p.value(); err != nil {
				return out, err
			}
			continue
		}
		if out.Categories, err = p.categories(); err != nil {
			return out, err
		}
		seen = true
	}
	if _, err := p.dec.Token(); err != nil {
		return out, err
	}
	if _, err := p.dec.Token(); err != io.EOF {
		return out, p.shapeError(p.dec.InputOffset(), "unexpected data after document")
	}
	if !seen {
		return out, domain.Validation("categories", "is required")
	}
	return out, nil
}

func (p *parser) key() (string, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return "", err
	}
	k, _ := tok.(string)
	return k, nil
}

func (p *parser) categories() ([]CategoryEntry, error) {
	if _, err := p.delim('[', `"categories" must be an array`); err != nil {
		return nil, err
	}
	out := []CategoryEntry{}
	for p.dec.More() {
		c, err := p.category()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	_, err := p.dec.Token()
	return out, err
}

func (p *parser) category() (CategoryEntry, error) {
	off, err := p.delim('{', "category must be an object")
	if err != nil {
		return CategoryEntry{}, err
	}
	c := CategoryEntry{Line: p.lineAt(off)}
	for p.dec.More() {
		key, err := p.key()
		if err != nil {
			return c, err
		}
		switch key {
		case "title":
			raw, off, err := p.value()
			if err != nil {
				return c, err
			}
			c.Line = p.lineAt(off)
			if err := json.Unmarshal(raw, &c.Title); err != nil {
				c.TitleRaw = string(raw)
			}
		case "packages":
			if c.Packages, err = p.packages(); err != nil {
				return c, err
			}
		default:
			if _, _, err := p.value(); err != nil {
				return c, err
			}
		}
	}
	_, err = p.dec.Token()
	return c, err
}

func (p *parser) packages() ([]PackageEntry, error) {
	if _, err := p.delim('[', `"packages" must be an array`); err != nil {
		return nil, err
	}
	out := []PackageEntry{}
	for p.dec.More() {
		raw, off, err := p.value()
		if err != nil {
			return nil, err
		}
		e := PackageEntry{Line: p.lineAt(off)}
		if err := json.Unmarshal(raw, &e.Package); err != nil {
			e.Raw = string(raw)
		}
		out = append(out, e)
	}
	_, err := p.dec.Token()
	return out, err
}
