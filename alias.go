package blockart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultSuffixes name the face or overlay variants of a block texture.
var DefaultSuffixes = []string{"_top", "_bottom", "_side", "_overlay"}

// DefaultOverrides are textures whose block name cannot be guessed from the
// texture name alone.
var DefaultOverrides = map[string]string{
	"dried_ghast_hydration_3":      "air",
	"acacia_door_bottom":           "acacia_door",
	"acacia_door_top":              "acacia_door",
	"white_stained_glass_pane_top": "white_stained_glass_pane",
}

// DefaultSentinel is the block placed for unmapped textures in
// AliasSentinel mode.
const DefaultSentinel = "air"

// AliasTable maps texture identifiers to block identifiers. A nil table is
// the identity mapping.
type AliasTable struct {
	overrides map[string]string
	suffixes  []string
}

// NewAliasTable copies overrides. A nil suffixes slice selects
// DefaultSuffixes; pass an empty slice to disable suffix stripping.
func NewAliasTable(overrides map[string]string, suffixes []string) *AliasTable {
	t := &AliasTable{
		overrides: make(map[string]string, len(overrides)),
		suffixes:  DefaultSuffixes,
	}
	for k, v := range overrides {
		t.overrides[k] = v
	}
	if suffixes != nil {
		t.suffixes = append([]string(nil), suffixes...)
	}
	return t
}

// Len returns the number of overrides.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.overrides)
}

// Overrides returns a copy of the override list.
func (t *AliasTable) Overrides() map[string]string {
	out := make(map[string]string, t.Len())
	if t == nil {
		return out
	}
	for k, v := range t.overrides {
		out[k] = v
	}
	return out
}

// lookup reports the mapped identifier and whether any rule matched.
func (t *AliasTable) lookup(raw string) (string, bool) {
	if t == nil {
		return raw, false
	}

	if mapped, ok := t.overrides[raw]; ok {
		return mapped, true
	}

	for _, suffix := range t.suffixes {
		if suffix != "" && strings.HasSuffix(raw, suffix) {
			return strings.TrimSuffix(raw, suffix), true
		}
	}

	return raw, false
}

// Resolve maps raw to its canonical identifier: an override wins, then a
// positional suffix is stripped, otherwise raw is returned unchanged.
func (t *AliasTable) Resolve(raw string) string {
	id, _ := t.lookup(raw)
	return id
}

// AliasMode selects what happens to identifiers no alias rule matches.
type AliasMode int

const (
	// AliasIdentity passes unmapped identifiers through unchanged.
	AliasIdentity AliasMode = iota
	// AliasSentinel replaces unmapped identifiers with the sentinel, for
	// callers that must only ever emit known-placeable blocks.
	AliasSentinel
)

// ParseAliasMode parses "identity" or "sentinel".
func ParseAliasMode(s string) (AliasMode, error) {
	switch strings.ToLower(s) {
	case "", "identity":
		return AliasIdentity, nil
	case "sentinel":
		return AliasSentinel, nil
	}
	return 0, fmt.Errorf("blockart: unknown alias mode %q", s)
}

func (m AliasMode) String() string {
	if m == AliasSentinel {
		return "sentinel"
	}
	return "identity"
}

// Resolver applies an alias table under a mode.
type Resolver struct {
	Table    *AliasTable
	Mode     AliasMode
	Sentinel string
}

// Resolve returns the canonical identifier for raw.
func (r Resolver) Resolve(raw string) string {
	id, matched := r.Table.lookup(raw)
	if matched || r.Mode != AliasSentinel {
		return id
	}
	if r.Sentinel == "" {
		return DefaultSentinel
	}
	return r.Sentinel
}

// ReadAliases reads a JSON object mapping texture to block identifiers.
// The returned table uses DefaultSuffixes.
func ReadAliases(r io.Reader) (*AliasTable, error) {
	var overrides map[string]string
	if err := json.NewDecoder(r).Decode(&overrides); err != nil {
		return nil, fmt.Errorf("blockart: ReadAliases: %w", err)
	}
	return NewAliasTable(overrides, nil), nil
}

// LoadAliasFile loads the alias table at path. A missing file is not an
// error and yields a nil (identity) table.
func LoadAliasFile(path string) (*AliasTable, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("blockart: failed to open aliases: %w", err)
	}
	defer f.Close()

	return ReadAliases(f)
}

// WriteAliases writes mapping as an indented JSON object with sorted keys.
func WriteAliases(w io.Writer, mapping map[string]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(mapping)
}

// GuessBlock guesses the block a texture belongs to using the default
// overrides and suffixes.
func GuessBlock(texture string) string {
	return NewAliasTable(DefaultOverrides, nil).Resolve(texture)
}

// GenerateAliases maps every texture name to its guessed block, using
// overrides on top of DefaultOverrides.
func GenerateAliases(textures []string, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(DefaultOverrides)+len(overrides))
	for k, v := range DefaultOverrides {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	table := NewAliasTable(merged, nil)

	mapping := make(map[string]string, len(textures))
	for _, name := range textures {
		mapping[name] = table.Resolve(name)
	}
	return mapping
}
