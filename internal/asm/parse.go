// Package asm reads and writes modules in a line oriented SPIR-V style
// assembly:
//
//	   %1 = OpExtInstImport "GLSL.std.450"
//	        OpMemoryModel Logical GLSL450
//	%main = OpFunction %void None %3
//
// Identifiers are written %N or %name; symbolic names are numbered after
// the largest numeric identifier and remembered so Write can reproduce them.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gnolang/irreduce/internal/ir"
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

type line struct {
	num    int
	result string
	opcode string
	args   []string
}

// Parse reads an assembly module.
func Parse(r io.Reader) (*ir.Module, error) {
	lines, err := scanLines(r)
	if err != nil {
		return nil, err
	}
	p := &parser{ids: make(map[string]ir.ID)}
	p.number(lines)
	return p.build(lines)
}

func ParseString(src string) (*ir.Module, error) {
	return Parse(strings.NewReader(src))
}

func scanLines(r io.Reader) ([]line, error) {
	var lines []line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		toks, err := tokenize(sc.Text())
		if err != nil {
			return nil, &ParseError{Line: n, Msg: err.Error()}
		}
		if len(toks) == 0 {
			continue
		}
		l := line{num: n}
		if len(toks) >= 2 && toks[1] == "=" {
			if !strings.HasPrefix(toks[0], "%") || len(toks[0]) == 1 {
				return nil, &ParseError{Line: n, Msg: fmt.Sprintf("invalid result id %q", toks[0])}
			}
			if len(toks) < 3 {
				return nil, &ParseError{Line: n, Msg: "missing opcode after '='"}
			}
			l.result = toks[0]
			toks = toks[2:]
		}
		if !strings.HasPrefix(toks[0], "Op") {
			return nil, &ParseError{Line: n, Msg: fmt.Sprintf("expected opcode, got %q", toks[0])}
		}
		l.opcode = toks[0]
		l.args = toks[1:]
		lines = append(lines, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading assembly: %w", err)
	}
	return lines, nil
}

// tokenize splits a line on blanks, keeping quoted strings whole and
// dropping a trailing ';' comment.
func tokenize(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';':
			return toks, nil
		case c == '"':
			j := i + 1
			for ; j < len(s); j++ {
				if s[j] == '\\' {
					j++
					continue
				}
				if s[j] == '"' {
					break
				}
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, s[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '\r' && s[j] != ';' {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

type parser struct {
	ids   map[string]ir.ID
	names map[ir.ID]string
	next  ir.ID
}

// number assigns identifiers: numeric spellings keep their value, symbolic
// ones are allocated above the largest numeric id in order of appearance.
func (p *parser) number(lines []line) {
	var bound ir.ID
	visit := func(tok string) {
		if n, err := strconv.ParseUint(tok[1:], 10, 32); err == nil && n > 0 {
			id := ir.ID(n)
			p.ids[tok] = id
			if id > bound {
				bound = id
			}
		}
	}
	for _, l := range lines {
		if l.result != "" {
			visit(l.result)
		}
		for _, a := range l.args {
			if isID(a) {
				visit(a)
			}
		}
	}
	p.next = bound + 1
	p.names = make(map[ir.ID]string)
	symbolic := func(tok string) {
		if _, ok := p.ids[tok]; ok {
			return
		}
		p.ids[tok] = p.next
		p.names[p.next] = tok[1:]
		p.next++
	}
	for _, l := range lines {
		if l.result != "" {
			symbolic(l.result)
		}
		for _, a := range l.args {
			if isID(a) {
				symbolic(a)
			}
		}
	}
}

func isID(tok string) bool { return len(tok) > 1 && tok[0] == '%' }

func (p *parser) instruction(l line) (*ir.Instruction, error) {
	inst := &ir.Instruction{Opcode: ir.Opcode(l.opcode)}
	if l.result != "" {
		inst.Result = p.ids[l.result]
	}
	for _, a := range l.args {
		switch {
		case isID(a):
			inst.Operands = append(inst.Operands, ir.IDOperand(p.ids[a]))
		case strings.HasPrefix(a, `"`):
			s, err := unquote(a)
			if err != nil {
				return nil, &ParseError{Line: l.num, Msg: err.Error()}
			}
			inst.Operands = append(inst.Operands, ir.StringOperand(s))
		default:
			inst.Operands = append(inst.Operands, ir.LiteralOperand(a))
		}
	}
	return inst, nil
}

func (p *parser) build(lines []line) (*ir.Module, error) {
	m := ir.NewModule()
	for id, name := range p.names {
		m.SetName(id, name)
	}

	var (
		fn    *ir.Function
		block *ir.Block
	)
	for _, l := range lines {
		inst, err := p.instruction(l)
		if err != nil {
			return nil, err
		}
		switch inst.Opcode {
		case ir.OpFunction:
			if fn != nil {
				return nil, &ParseError{Line: l.num, Msg: "OpFunction inside a function"}
			}
			fn = m.AppendFunction(inst)
			block = nil
		case ir.OpFunctionParameter:
			if fn == nil || block != nil {
				return nil, &ParseError{Line: l.num, Msg: "OpFunctionParameter outside a function header"}
			}
			m.AppendParam(fn, inst)
		case ir.OpLabel:
			if fn == nil {
				return nil, &ParseError{Line: l.num, Msg: "OpLabel outside a function"}
			}
			block = m.AppendBlock(fn, inst)
		case ir.OpFunctionEnd:
			if fn == nil {
				return nil, &ParseError{Line: l.num, Msg: "OpFunctionEnd without OpFunction"}
			}
			m.SetFunctionEnd(fn, inst)
			fn, block = nil, nil
		default:
			switch {
			case block != nil:
				m.AppendToBlock(block, inst)
			case fn != nil:
				return nil, &ParseError{Line: l.num, Msg: fmt.Sprintf("%s before the first OpLabel", inst.Opcode)}
			case len(m.Functions()) > 0:
				return nil, &ParseError{Line: l.num, Msg: fmt.Sprintf("%s after the first function", inst.Opcode)}
			default:
				m.AppendGlobal(inst)
			}
		}
	}
	if fn != nil {
		return nil, &ParseError{Line: lines[len(lines)-1].num, Msg: "missing OpFunctionEnd"}
	}
	return m, nil
}

func unquote(tok string) (string, error) {
	if len(tok) < 2 || tok[len(tok)-1] != '"' {
		return "", fmt.Errorf("malformed string %s", tok)
	}
	body := tok[1 : len(tok)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String(), nil
}
