package blockart

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// ReadRecords reads a palette source of the form {"id": [r, g, b], ...}.
// Key order is preserved. Values that aren't exactly three numbers produce
// invalid records rather than errors; only malformed JSON is an error.
// A key that repeats keeps its first position and its last value.
func ReadRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("blockart: ReadRecords: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("blockart: ReadRecords: expected object, got %v", tok)
	}

	var records []Record
	position := make(map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("blockart: ReadRecords: %w", err)
		}
		id := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("blockart: ReadRecords: value of %q: %w", id, err)
		}

		rec := parseRecord(id, raw)
		if i, ok := position[id]; ok {
			records[i] = rec
			continue
		}
		position[id] = len(records)
		records = append(records, rec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("blockart: ReadRecords: %w", err)
	}

	return records, nil
}

func parseRecord(id string, raw json.RawMessage) Record {
	rec := Record{ID: id}

	var components []interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&components); err != nil || components == nil {
		rec.Reason = "not an array: " + string(raw)
		return rec
	}

	if len(components) != 3 {
		rec.Reason = "expected 3 components, got " + strconv.Itoa(len(components))
		return rec
	}

	var rgb [3]uint8
	for i, c := range components {
		num, ok := c.(json.Number)
		if !ok {
			rec.Reason = fmt.Sprintf("component %d is not a number", i)
			return rec
		}
		f, err := num.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			rec.Reason = fmt.Sprintf("component %d is not a finite number", i)
			return rec
		}
		rgb[i] = uint8(math.Max(0, math.Min(255, math.Round(f))))
	}

	rec.Color = RGB{rgb[0], rgb[1], rgb[2]}
	rec.Valid = true
	return rec
}

// LoadPaletteFile reads and validates the palette JSON file at path.
func LoadPaletteFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockart: failed to open palette: %w", err)
	}
	defer f.Close()

	return ReadRecords(bufio.NewReader(f))
}

// WriteRecords writes the valid records as an indented JSON object in
// record order. Invalid records are omitted rather than written as null.
func WriteRecords(w io.Writer, records []Record) error {
	wr := bufio.NewWriter(w)

	wr.WriteString("{")
	first := true
	for _, rec := range records {
		if !rec.Valid {
			continue
		}

		key, err := json.Marshal(rec.ID)
		if err != nil {
			return err
		}

		if !first {
			wr.WriteString(",")
		}
		first = false

		fmt.Fprintf(wr, "\n    %s: [%d, %d, %d]", key, rec.Color.R, rec.Color.G, rec.Color.B)
	}
	if !first {
		wr.WriteString("\n")
	}
	wr.WriteString("}\n")

	return wr.Flush()
}
