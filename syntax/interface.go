// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"bytes"
	"io"
	"iter"
)

// LangVariant describes a shell language variant to use when tokenizing and
// parsing shell code. The zero value is LangBash.
type LangVariant uint

const (
	LangBash LangVariant = iota
	LangPOSIX
	LangMirBSDKorn
	LangAuto
)

// ParserOption is a function which can be passed to NewParser to
// configure parsing behavior.
type ParserOption func(*Parser)

// KeepComments configures the parser to keep comment nodes as part of the
// AST.
func KeepComments(enable bool) ParserOption {
	return func(p *Parser) {
		if enable {
			p.mode |= ParseComments
		} else {
			p.mode &^= ParseComments
		}
	}
}

// Variant selects the shell language dialect the parser should accept.
func Variant(l LangVariant) ParserOption {
	return func(p *Parser) {
		switch l {
		case LangPOSIX:
			p.mode |= PosixConformant
		default:
			p.mode &^= PosixConformant
		}
	}
}

// NewParser allocates a Parser and applies the given options to it. A
// Parser can be reused across multiple calls to Parse, Words, or Document,
// which amortizes the internal allocations it performs.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{helperBuf: new(bytes.Buffer)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads and parses a whole shell program from src, with an optional
// name used for position information.
func (p *Parser) Parse(src io.Reader, name string) (*File, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	p.reset()
	alloc := &struct {
		f File
		l [16]int
	}{}
	p.f = &alloc.f
	p.f.Name = name
	p.f.Lines = alloc.l[:1]
	p.src = b
	p.next()
	p.f.Stmts = p.stmts()
	return p.f, p.err
}

// Document parses a single word, performing no word splitting, such as a
// here-document body or an expansion template.
func (p *Parser) Document(src io.Reader) (*Word, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	p.reset()
	p.src = b
	p.next()
	w := p.word()
	if p.err != nil {
		return nil, p.err
	}
	return &w, nil
}

// Words parses src as a sequence of words, invoking onWord for each one
// parsed. Parsing stops if onWord returns false, or on the first error.
func (p *Parser) Words(src io.Reader, onWord func(*Word) bool) error {
	b, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	p.reset()
	p.src = b
	p.next()
	for p.tok != _EOF {
		w := p.word()
		if p.err != nil {
			break
		}
		if !onWord(&w) {
			break
		}
	}
	return p.err
}

// WordsSeq is like Words, but returns the words and any eventual error as
// an iterator suitable for use with a range-over-func loop.
func (p *Parser) WordsSeq(src io.Reader) iter.Seq2[*Word, error] {
	return func(yield func(*Word, error) bool) {
		err := p.Words(src, func(w *Word) bool {
			return yield(w, nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Stmts parses src as a sequence of top-level statements, returning them
// once parsing is complete.
func (p *Parser) Stmts(src io.Reader) ([]*Stmt, error) {
	f, err := p.Parse(src, "")
	if err != nil {
		return nil, err
	}
	return f.Stmts, nil
}

// Interactive reads all of src, parses it as a single program, and calls fn
// once with all of its statements. Statements are not delivered line by
// line as they become available, and the result of fn is ignored.
func (p *Parser) Interactive(src io.Reader, fn func([]*Stmt) bool) error {
	f, err := p.Parse(src, "")
	if err != nil {
		return err
	}
	fn(f.Stmts)
	return nil
}
