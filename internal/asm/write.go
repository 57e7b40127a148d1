package asm

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/irreduce/internal/ir"
)

const minResultColumn = 12

// Write emits m in assembly form. Results are right aligned so that the
// opcodes line up, matching the usual disassembler layout.
func Write(w io.Writer, m *ir.Module) error {
	width := minResultColumn
	m.Walk(func(_ ir.Ref, inst *ir.Instruction) {
		if inst.HasResult() {
			if n := len(m.IDString(inst.Result)); n > width {
				width = n
			}
		}
	})

	bw := bufio.NewWriter(w)
	var err error
	m.Walk(func(_ ir.Ref, inst *ir.Instruction) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintln(bw, formatInstruction(m, inst, width))
	})
	if err != nil {
		return fmt.Errorf("error writing assembly: %w", err)
	}
	return bw.Flush()
}

// Format returns the assembly text of m.
func Format(m *ir.Module) string {
	var b strings.Builder
	_ = Write(&b, m)
	return b.String()
}

// FormatInstruction renders a single instruction without padding.
func FormatInstruction(m *ir.Module, inst *ir.Instruction) string {
	return strings.TrimLeft(formatInstruction(m, inst, 0), " ")
}

// Fingerprint is a content hash of the canonical text of m.
func Fingerprint(m *ir.Module) string {
	sum := sha256.Sum256([]byte(Format(m)))
	return hex.EncodeToString(sum[:])
}

func formatInstruction(m *ir.Module, inst *ir.Instruction, width int) string {
	var b strings.Builder
	if inst.HasResult() {
		fmt.Fprintf(&b, "%*s = ", width, m.IDString(inst.Result))
	} else {
		b.WriteString(strings.Repeat(" ", width+3))
	}
	b.WriteString(string(inst.Opcode))
	for _, op := range inst.Operands {
		b.WriteByte(' ')
		switch op.Kind {
		case ir.OperandID:
			b.WriteString(m.IDString(op.ID))
		case ir.OperandString:
			b.WriteString(quote(op.Text))
		default:
			b.WriteString(op.Text)
		}
	}
	return b.String()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
