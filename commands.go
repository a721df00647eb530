package blockart

import (
	"bufio"
	"io"
	"iter"
	"strconv"
	"strings"
)

// CommandFormat renders instructions as text commands.
type CommandFormat struct {
	Verb string
	// Namespace is prefixed to block identifiers that don't carry one.
	Namespace string
}

// DefaultCommandFormat renders "setblock X Y Z minecraft:block".
var DefaultCommandFormat = CommandFormat{
	Verb:      "setblock",
	Namespace: "minecraft",
}

// Format renders a single instruction.
func (f CommandFormat) Format(in Instruction) string {
	var sb strings.Builder
	f.appendTo(&sb, in)
	return sb.String()
}

func (f CommandFormat) appendTo(sb *strings.Builder, in Instruction) {
	sb.WriteString(f.Verb)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(in.X))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(in.Y))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(in.Z))
	sb.WriteByte(' ')
	if f.Namespace != "" && !strings.Contains(in.Block, ":") {
		sb.WriteString(f.Namespace)
		sb.WriteByte(':')
	}
	sb.WriteString(in.Block)
}

// WriteCommands writes one command per instruction, separated by newlines,
// and returns the number of commands written.
func (f CommandFormat) WriteCommands(w io.Writer, seq iter.Seq[Instruction]) (int, error) {
	wr := bufio.NewWriter(w)

	var sb strings.Builder
	count := 0
	for in := range seq {
		sb.Reset()
		if count > 0 {
			sb.WriteByte('\n')
		}
		f.appendTo(&sb, in)

		if _, err := wr.WriteString(sb.String()); err != nil {
			return count, err
		}
		count++
	}

	return count, wr.Flush()
}
