package blockart

import (
	"errors"
	"image/color"
	"io"
	"log"
)

// ErrEmptyPalette is returned when no valid records remain after filtering.
var ErrEmptyPalette = errors.New("blockart: palette has no valid entries")

// RGB is an opaque 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// RGBA implements color.Color.
func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{c.R, c.G, c.B, 0xff}.RGBA()
}

// RGBFromColor drops the alpha channel of col without premultiplication.
func RGBFromColor(col color.Color) RGB {
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	return RGB{n.R, n.G, n.B}
}

// Record is a raw palette source entry. Records that failed validation
// carry Valid = false and a Reason, and are never turned into entries.
type Record struct {
	ID     string
	Color  RGB
	Valid  bool
	Reason string
}

// PaletteEntry is a single block texture with its representative colour.
type PaletteEntry struct {
	ID  string
	RGB RGB
	Lab Lab
}

// Palette is an ordered set of entries. Order is load order and is used to
// break ties during matching.
type Palette struct {
	entries []PaletteEntry
	byID    map[string]int
}

// LoadPalette builds a palette from the given records, skipping (and
// logging) invalid or duplicate ones. It only fails if nothing is left.
func LoadPalette(records []Record, logger *log.Logger) (*Palette, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	p := &Palette{
		byID: make(map[string]int, len(records)),
	}

	for _, rec := range records {
		if !rec.Valid {
			logger.Printf("Warning: skipping invalid palette entry %q: %s", rec.ID, rec.Reason)
			continue
		}

		if _, exists := p.byID[rec.ID]; exists {
			logger.Printf("Warning: skipping duplicate palette entry %q", rec.ID)
			continue
		}

		p.byID[rec.ID] = len(p.entries)
		p.entries = append(p.entries, PaletteEntry{
			ID:  rec.ID,
			RGB: rec.Color,
			Lab: rec.Color.Lab(),
		})
	}

	if len(p.entries) == 0 {
		return nil, ErrEmptyPalette
	}

	return p, nil
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	return len(p.entries)
}

// Entry returns the i-th entry in load order.
func (p *Palette) Entry(i int) PaletteEntry {
	return p.entries[i]
}

// Lookup returns the entry with the given identifier.
func (p *Palette) Lookup(id string) (PaletteEntry, bool) {
	i, ok := p.byID[id]
	if !ok {
		return PaletteEntry{}, false
	}
	return p.entries[i], true
}

// IDs returns the entry identifiers in load order.
func (p *Palette) IDs() []string {
	ids := make([]string, len(p.entries))
	for i, e := range p.entries {
		ids[i] = e.ID
	}
	return ids
}

// InvalidRecords returns the records LoadPalette would skip.
func InvalidRecords(records []Record) []Record {
	var invalid []Record
	for _, rec := range records {
		if !rec.Valid {
			invalid = append(invalid, rec)
		}
	}
	return invalid
}
