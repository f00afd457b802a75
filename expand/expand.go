// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os/user"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tv-labs/bash-sub003/pattern"
	"github.com/tv-labs/bash-sub003/syntax"
)

// Config controls the behavior of the word expansion functions in this
// package: Fields, Literal, Document, Pattern, Format and ReadFields. A nil
// *Config, or the zero value, behaves as an empty environment with none of
// the optional hooks set.
type Config struct {
	// Env is used to fetch and assign variables when expanding parameters
	// and arithmetic expressions.
	Env WriteEnviron

	// CmdSubst runs the statement list inside a "$(...)" or a legacy
	// "`...`" and writes its standard output to the given writer. A nil
	// CmdSubst turns every command substitution into an empty string.
	CmdSubst func(io.Writer, *syntax.CmdSubst) error

	// ProcSubst runs the statement list inside a "<(...)" or ">(...)" and
	// returns the path the rest of the command line should see in its
	// place, such as a named pipe. A nil ProcSubst makes process
	// substitution an error.
	ProcSubst func(*syntax.ProcSubst) (string, error)

	// ReadDir2 lists the entries of a directory for filename generation
	// ("globbing"). A nil ReadDir2 disables globbing entirely, so that
	// patterns expand to themselves literally.
	ReadDir2 func(string) ([]fs.DirEntry, error)

	GlobStar   bool // "**" also matches separators, as with "shopt -s globstar"
	NullGlob   bool // a glob with no matches expands to zero fields instead of itself
	NoCaseGlob bool // globs match case-insensitively, as with "shopt -s nocaseglob"
	NoUnset    bool // referencing an unset parameter is an error, as with "set -u"

	// Lines holds the byte offset of the first character of each line of
	// the source currently running, as in [syntax.File.Lines]. It is used
	// to resolve "${LINENO}" without passing the whole *syntax.File down.
	Lines []int

	bufferAlloc bytes.Buffer
	fieldAlloc  [4]fieldPart
	fieldsAlloc [4][]fieldPart

	ifs string
	// A pointer to a parameter expansion node, if we're inside one.
	// Necessary for ${LINENO}.
	curParam *syntax.ParamExp
}

// err aborts the expansion in progress; it is recovered by the exported
// entry points below, which turn the panic back into a returned error.
func (cfg *Config) err(err error) {
	panic(err)
}

// lineOf resolves pos to a 1-based line number using cfg.Lines, the way
// [syntax.File.Position] resolves a Pos within its own source. It returns 0
// if cfg.Lines hasn't been set.
func (cfg *Config) lineOf(pos syntax.Pos) int {
	intp := int(pos)
	a := cfg.Lines
	i, j := 0, len(a)
	for i < j {
		h := i + (j-i)/2
		if a[h] <= intp {
			i = h + 1
		} else {
			j = h
		}
	}
	return i
}

// recoverErr turns a panic raised by Config.err into a returned error,
// leaving any other panic to propagate as-is.
func recoverErr(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok {
		*errp = err
		return
	}
	panic(r)
}

func (cfg *Config) prepareIFS() {
	vr := cfg.Env.Get("IFS")
	if !vr.IsSet() {
		cfg.ifs = " \t\n"
	} else {
		cfg.ifs = vr.String()
	}
}

func (cfg *Config) ifsRune(r rune) bool {
	for _, r2 := range cfg.ifs {
		if r == r2 {
			return true
		}
	}
	return false
}

func (cfg *Config) ifsJoin(strs []string) string {
	sep := ""
	if cfg.ifs != "" {
		sep = cfg.ifs[:1]
	}
	return strings.Join(strs, sep)
}

func (cfg *Config) strBuilder() *bytes.Buffer {
	b := &cfg.bufferAlloc
	b.Reset()
	return b
}

func (cfg *Config) envGet(name string) string {
	return cfg.Env.Get(name).String()
}

func (cfg *Config) envSet(name, value string) error {
	return cfg.Env.Set(name, Variable{Set: true, Kind: String, Str: value})
}

// withEnv makes sure cfg always has a non-nil Env, since every helper above
// calls straight into it; a nil *Config or zero Config is meant to behave
// like an empty environment, not panic on first use.
func withEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Env == nil {
		cfg.Env = FuncEnviron(func(string) string { return "" })
	}
	return cfg
}

// Literal expands a single word as if it were on the right-hand side of an
// assignment: quotes are processed, but the result is not split into fields
// nor used for filename generation.
func Literal(cfg *Config, word *syntax.Word) (s string, err error) {
	cfg = withEnv(cfg)
	defer recoverErr(&err)
	if word == nil {
		return "", nil
	}
	field := cfg.wordField(word.Parts, quoteDouble)
	return cfg.fieldJoin(field), nil
}

// Document expands a single word as the body of a here-document: quotes are
// processed much like Literal, but field splitting and pathname expansion
// never apply, matching how bash treats "<<" and "<<-" bodies.
func Document(cfg *Config, word *syntax.Word) (s string, err error) {
	cfg = withEnv(cfg)
	defer recoverErr(&err)
	if word == nil {
		return "", nil
	}
	field := cfg.wordField(word.Parts, quoteDouble)
	return cfg.fieldJoin(field), nil
}

// Pattern expands a word for use as a pattern, such as in a case clause or a
// parameter expansion's trim operators: quote characters are kept as escapes
// for the pattern matcher instead of being stripped outright.
func Pattern(cfg *Config, word *syntax.Word) (s string, err error) {
	cfg = withEnv(cfg)
	defer recoverErr(&err)
	field := cfg.wordField(word.Parts, quoteSingle)
	buf := cfg.strBuilder()
	for _, part := range field {
		if part.quote > quoteNone {
			buf.WriteString(pattern.QuoteMeta(part.val, 0))
		} else {
			buf.WriteString(part.val)
		}
	}
	return buf.String(), nil
}

// Format implements the "%"-style substitutions that printf and echo -e
// support, consuming as many of args as the format string's verbs need and
// reporting how many were used.
func Format(cfg *Config, format string, args []string) (s string, argsUsed int, err error) {
	cfg = withEnv(cfg)
	defer recoverErr(&err)
	return cfg.format(format, args)
}

func (cfg *Config) format(format string, args []string) (string, int, error) {
	buf := cfg.strBuilder()
	esc := false
	var fmts []rune
	initialArgs := len(args)

	for _, c := range format {
		switch {
		case esc:
			esc = false
			switch c {
			case 'n':
				buf.WriteRune('\n')
			case 'r':
				buf.WriteRune('\r')
			case 't':
				buf.WriteRune('\t')
			case '\\':
				buf.WriteRune('\\')
			default:
				buf.WriteRune('\\')
				buf.WriteRune(c)
			}

		case len(fmts) > 0:
			switch c {
			case '%':
				buf.WriteByte('%')
				fmts = nil
			case 'c':
				var b byte
				if len(args) > 0 {
					arg := ""
					arg, args = args[0], args[1:]
					if len(arg) > 0 {
						b = arg[0]
					}
				}
				buf.WriteByte(b)
				fmts = nil
			case '+', '-', ' ':
				if len(fmts) > 1 {
					return "", 0, fmt.Errorf("invalid format char: %c", c)
				}
				fmts = append(fmts, c)
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				fmts = append(fmts, c)
			case 's', 'd', 'i', 'u', 'o', 'x':
				arg := ""
				if len(args) > 0 {
					arg, args = args[0], args[1:]
				}
				var farg any = arg
				if c != 's' {
					n, _ := strconv.ParseInt(arg, 0, 0)
					if c == 'i' || c == 'd' {
						farg = int(n)
					} else {
						farg = uint(n)
					}
					if c == 'i' || c == 'u' {
						c = 'd'
					}
				}
				fmts = append(fmts, c)
				fmt.Fprintf(buf, string(fmts), farg)
				fmts = nil
			default:
				return "", 0, fmt.Errorf("invalid format char: %c", c)
			}
		case c == '\\':
			esc = true
		case args != nil && c == '%':
			// if args == nil, we are not doing format arguments
			fmts = []rune{c}
		default:
			buf.WriteRune(c)
		}
	}
	if len(fmts) > 0 {
		return "", 0, fmt.Errorf("missing format char")
	}
	return buf.String(), initialArgs - len(args), nil
}

func (cfg *Config) fieldJoin(parts []fieldPart) string {
	switch len(parts) {
	case 0:
		return ""
	case 1: // short-cut without a string copy
		return parts[0].val
	}
	buf := cfg.strBuilder()
	for _, part := range parts {
		buf.WriteString(part.val)
	}
	return buf.String()
}

func (cfg *Config) escapedGlobField(parts []fieldPart) (escaped string, glob bool) {
	buf := cfg.strBuilder()
	for _, part := range parts {
		if part.quote > quoteNone {
			buf.WriteString(pattern.QuoteMeta(part.val, 0))
			continue
		}
		buf.WriteString(part.val)
		if pattern.HasMeta(part.val, 0) {
			glob = true
		}
	}
	if glob { // only copy the string if it will be used
		escaped = buf.String()
	}
	return escaped, glob
}

// Fields expands and splits a list of words the way bash does for a
// command's arguments: brace expansion, parameter/command/arithmetic
// expansion, field splitting on IFS, and finally pathname generation.
func Fields(cfg *Config, words ...*syntax.Word) (fields []string, err error) {
	cfg = withEnv(cfg)
	defer recoverErr(&err)
	return cfg.fields(words...), nil
}

func (cfg *Config) fields(words ...*syntax.Word) []string {
	cfg.prepareIFS()

	fields := make([]string, 0, len(words))
	dir := cfg.envGet("PWD")
	baseDir := pattern.QuoteMeta(dir, 0)
	for _, word := range words {
		for _, expWord := range Braces(word) {
			for _, field := range cfg.wordFields(expWord.Parts) {
				path, doGlob := cfg.escapedGlobField(field)
				var matches []string
				abs := filepath.IsAbs(path)
				if doGlob && cfg.ReadDir2 != nil {
					if !abs {
						path = filepath.Join(baseDir, path)
					}
					matches, _ = cfg.glob(abs2Root(path), path)
				}
				switch {
				case len(matches) > 0:
					for _, match := range matches {
						if !abs {
							endSeparator := strings.HasSuffix(match, string(filepath.Separator))
							match, _ = filepath.Rel(dir, match)
							if endSeparator {
								match += string(filepath.Separator)
							}
						}
						fields = append(fields, match)
					}
				case doGlob && cfg.NullGlob && cfg.ReadDir2 != nil:
					// no matches and nullglob: drop the field entirely
				default:
					fields = append(fields, cfg.fieldJoin(field))
				}
			}
		}
	}
	return fields
}

// abs2Root returns the root directory a glob pattern should be walked from:
// the volume root for an absolute path ("/" on Unix), or "." for a relative
// one, which only reaches here when PWD is unset or relative.
func abs2Root(path string) string {
	if filepath.IsAbs(path) {
		if vol := filepath.VolumeName(path); vol != "" {
			return vol + string(filepath.Separator)
		}
		return string(filepath.Separator)
	}
	return "."
}

type fieldPart struct {
	val   string
	quote quoteLevel
}

type quoteLevel uint

const (
	quoteNone quoteLevel = iota
	quoteDouble
	quoteSingle
)

func (cfg *Config) wordField(wps []syntax.WordPart, ql quoteLevel) []fieldPart {
	var field []fieldPart
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 {
				s = cfg.expandUser(s)
			}
			if ql == quoteDouble && strings.Contains(s, "\\") {
				buf := cfg.strBuilder()
				for i := 0; i < len(s); i++ {
					b := s[i]
					if b == '\\' && i+1 < len(s) {
						switch s[i+1] {
						case '\n': // remove \\\n
							i++
							continue
						case '"', '\\', '$', '`': // special chars
							continue
						}
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			field = append(field, fieldPart{val: s})
		case *syntax.SglQuoted:
			fp := fieldPart{quote: quoteSingle, val: x.Value}
			if x.Dollar {
				fp.val, _, _ = cfg.format(fp.val, nil)
			}
			field = append(field, fp)
		case *syntax.DblQuoted:
			for _, part := range cfg.wordField(x.Parts, quoteDouble) {
				part.quote = quoteDouble
				field = append(field, part)
			}
		case *syntax.ParamExp:
			field = append(field, fieldPart{val: cfg.paramExp(x)})
		case *syntax.CmdSubst:
			field = append(field, fieldPart{val: cfg.cmdSubst(x)})
		case *syntax.ArithmExp:
			n, err := Arithm(cfg, x.X)
			if err != nil {
				cfg.err(err)
			}
			field = append(field, fieldPart{val: strconv.Itoa(n)})
		case *syntax.ProcSubst:
			field = append(field, fieldPart{val: cfg.procSubst(x)})
		default:
			panic(fmt.Sprintf("unhandled word part: %T", x))
		}
	}
	return field
}

func (cfg *Config) cmdSubst(cs *syntax.CmdSubst) string {
	if cfg.CmdSubst == nil {
		return ""
	}
	buf := cfg.strBuilder()
	if err := cfg.CmdSubst(buf, cs); err != nil {
		cfg.err(err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (cfg *Config) procSubst(ps *syntax.ProcSubst) string {
	if cfg.ProcSubst == nil {
		cfg.err(fmt.Errorf("process substitution is not supported"))
	}
	path, err := cfg.ProcSubst(ps)
	if err != nil {
		cfg.err(err)
	}
	return path
}

func (cfg *Config) wordFields(wps []syntax.WordPart) [][]fieldPart {
	fields := cfg.fieldsAlloc[:0]
	curField := cfg.fieldAlloc[:0]
	allowEmpty := false
	flush := func() {
		if len(curField) == 0 {
			return
		}
		fields = append(fields, curField)
		curField = nil
	}
	splitAdd := func(val string) {
		for i, field := range strings.FieldsFunc(val, cfg.ifsRune) {
			if i > 0 {
				flush()
			}
			curField = append(curField, fieldPart{val: field})
		}
	}
	for i, wp := range wps {
		switch x := wp.(type) {
		case *syntax.Lit:
			s := x.Value
			if i == 0 {
				s = cfg.expandUser(s)
			}
			if strings.Contains(s, "\\") {
				buf := cfg.strBuilder()
				for i := 0; i < len(s); i++ {
					b := s[i]
					if b == '\\' {
						i++
						b = s[i]
					}
					buf.WriteByte(b)
				}
				s = buf.String()
			}
			curField = append(curField, fieldPart{val: s})
		case *syntax.SglQuoted:
			allowEmpty = true
			fp := fieldPart{quote: quoteSingle, val: x.Value}
			if x.Dollar {
				fp.val, _, _ = cfg.format(fp.val, nil)
			}
			curField = append(curField, fp)
		case *syntax.DblQuoted:
			allowEmpty = true
			if len(x.Parts) == 1 {
				pe, _ := x.Parts[0].(*syntax.ParamExp)
				if elems := cfg.quotedElems(pe); elems != nil {
					for i, elem := range elems {
						if i > 0 {
							flush()
						}
						curField = append(curField, fieldPart{
							quote: quoteDouble,
							val:   elem,
						})
					}
					continue
				}
			}
			for _, part := range cfg.wordField(x.Parts, quoteDouble) {
				part.quote = quoteDouble
				curField = append(curField, part)
			}
		case *syntax.ParamExp:
			splitAdd(cfg.paramExp(x))
		case *syntax.CmdSubst:
			splitAdd(cfg.cmdSubst(x))
		case *syntax.ArithmExp:
			n, err := Arithm(cfg, x.X)
			if err != nil {
				cfg.err(err)
			}
			curField = append(curField, fieldPart{val: strconv.Itoa(n)})
		case *syntax.ProcSubst:
			curField = append(curField, fieldPart{val: cfg.procSubst(x)})
		default:
			panic(fmt.Sprintf("unhandled word part: %T", x))
		}
	}
	flush()
	if allowEmpty && len(fields) == 0 {
		fields = append(fields, curField)
	}
	return fields
}

// quotedElems checks if a parameter expansion is exactly ${@} or ${foo[@]}
func (cfg *Config) quotedElems(pe *syntax.ParamExp) []string {
	if pe == nil || pe.Excl || pe.Length {
		return nil
	}
	if pe.Param.Value == "@" {
		return cfg.Env.Get("@").List
	}
	if anyOfLit(pe.Index, "@") == "" {
		return nil
	}
	vr := cfg.Env.Get(pe.Param.Value)
	if vr.Kind == Indexed {
		return vr.List
	}
	return nil
}

func (cfg *Config) expandUser(field string) string {
	if len(field) == 0 || field[0] != '~' {
		return field
	}
	name := field[1:]
	rest := ""
	if i := strings.Index(name, "/"); i >= 0 {
		rest = name[i:]
		name = name[:i]
	}
	if name == "" {
		return cfg.envGet("HOME") + rest
	}
	// TODO: don't hard-code os/user into the expansion package
	u, err := user.Lookup(name)
	if err != nil {
		return field
	}
	return u.HomeDir + rest
}

func findAllIndex(pat, name string, n int) [][]int {
	expr, err := pattern.Regexp(pat, 0)
	if err != nil {
		return nil
	}
	rx := regexp.MustCompile(expr)
	return rx.FindAllStringIndex(name, n)
}

var rxGlobStar = regexp.MustCompile(".*")

// glob walks root looking for paths matching pat, honoring cfg.GlobStar and
// cfg.NoCaseGlob. It requires cfg.ReadDir2 to be set; nil matches mean the
// pattern should be left untouched by the caller.
func (cfg *Config) glob(root, pat string) ([]string, error) {
	if cfg.ReadDir2 == nil {
		return nil, nil
	}
	parts := strings.Split(pat, string(filepath.Separator))
	matches := []string{root}
	if filepath.IsAbs(pat) {
		parts = parts[1:]
	}
	for _, part := range parts {
		if part == "" {
			continue
		}
		if part == "**" && cfg.GlobStar {
			for i := range matches {
				// "a/**" should match "a/ a/b a/b/c ..."; note
				// how the zero-match case has a trailing
				// separator.
				matches[i] += string(filepath.Separator)
			}
			latest := matches
			for {
				var newMatches []string
				for _, dir := range latest {
					nm, err := cfg.globDir(dir, rxGlobStar, newMatches)
					if err != nil {
						return nil, err
					}
					newMatches = nm
				}
				if len(newMatches) == 0 {
					break
				}
				matches = append(matches, newMatches...)
				latest = newMatches
			}
			continue
		}
		mode := pattern.Mode(0)
		if cfg.NoCaseGlob {
			mode |= pattern.NoGlobCase
		}
		expr, err := pattern.Regexp(part, mode)
		if err != nil {
			return nil, nil
		}
		rx := regexp.MustCompile("^" + expr + "$")
		var newMatches []string
		for _, dir := range matches {
			nm, err := cfg.globDir(dir, rx, newMatches)
			if err != nil {
				return nil, err
			}
			newMatches = nm
		}
		matches = newMatches
	}
	return matches, nil
}

func (cfg *Config) globDir(dir string, rx *regexp.Regexp, matches []string) ([]string, error) {
	entries, err := cfg.ReadDir2(dir)
	if err != nil {
		return matches, nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(rx.String(), `^\.`) && name != "" && name[0] == '.' {
			continue
		}
		if rx.MatchString(name) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	return matches, nil
}

// ReadFields splits s into at most n fields the way bash's "read" builtin
// does, using cfg's current IFS. If raw is true, backslashes are kept
// literal instead of acting as an escape character.
func ReadFields(cfg *Config, s string, n int, raw bool) []string {
	cfg = withEnv(cfg)
	return cfg.readFields(s, n, raw)
}

func (cfg *Config) readFields(s string, n int, raw bool) []string {
	cfg.prepareIFS()
	type pos struct {
		start, end int
	}
	var fpos []pos

	runes := make([]rune, 0, len(s))
	infield := false
	esc := false
	for _, r := range s {
		if infield {
			if cfg.ifsRune(r) && (raw || !esc) {
				fpos[len(fpos)-1].end = len(runes)
				infield = false
			}
		} else {
			if !cfg.ifsRune(r) && (raw || !esc) {
				fpos = append(fpos, pos{start: len(runes), end: -1})
				infield = true
			}
		}
		if r == '\\' {
			if raw || esc {
				runes = append(runes, r)
			}
			esc = !esc
			continue
		}
		runes = append(runes, r)
		esc = false
	}
	if len(fpos) == 0 {
		return nil
	}
	if infield {
		fpos[len(fpos)-1].end = len(runes)
	}

	switch {
	case n == 1:
		// include heading/trailing IFSs
		fpos[0].start, fpos[0].end = 0, len(runes)
		fpos = fpos[:1]
	case n != -1 && n < len(fpos):
		// combine to max n fields
		fpos[n-1].end = fpos[len(fpos)-1].end
		fpos = fpos[:n]
	}

	fields := make([]string, len(fpos))
	for i, p := range fpos {
		fields[i] = string(runes[p.start:p.end])
	}
	return fields
}
