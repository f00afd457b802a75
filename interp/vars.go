// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"os"
	"strconv"

	"github.com/tv-labs/bash-sub003/expand"
	"github.com/tv-labs/bash-sub003/syntax"
)

// lookupVar resolves a variable the way a running script would see it: the
// handful of special parameters bash computes on the fly ($#, $@, $?, $!,
// $$, PPID, DIRSTACK, $0 and the positional parameters) take priority, and
// everything else falls through to [Session.writeEnv].
func (r *Session) lookupVar(name string) expand.Variable {
	if name == "" {
		panic("variable name must not be empty")
	}
	switch name {
	case "#":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(len(r.Params))}
	case "@", "*":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: r.Params}
	case "?":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(int(r.lastExit.code))}
	case "!":
		return expand.Variable{Set: true, Kind: expand.String, Str: r.lastBgJobSpec()}
	case "$":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(os.Getpid())}
	case "PPID":
		return expand.Variable{Set: true, Kind: expand.String, Str: strconv.Itoa(os.Getppid())}
	case "DIRSTACK":
		return expand.Variable{Set: true, Kind: expand.Indexed, List: r.curDirStack()}
	case "0":
		if r.filename != "" {
			return expand.Variable{Set: true, Kind: expand.String, Str: r.filename}
		}
		return expand.Variable{Set: true, Kind: expand.String, Str: "gosh"}
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(name[0] - '1')
		if i < len(r.Params) {
			return expand.Variable{Set: true, Kind: expand.String, Str: r.Params[i]}
		}
		return expand.Variable{Set: true, Kind: expand.String, Str: ""}
	}
	vr := r.writeEnv.Get(name)
	if !vr.IsSet() && r.opts[optNoUnset] {
		r.errf("%s: unbound variable\n", name)
		r.exit.code = 1
		r.exit.exiting = true
	}
	return vr
}

// envGet returns a variable's string value, the way $name expands within
// the interpreter itself (as opposed to inside an expanded script word,
// which goes through expandEnv instead).
func (r *Session) envGet(name string) string {
	return r.lookupVar(name).String()
}

// setVar writes vr to the environment under name, refusing the write if the
// variable is currently read-only.
func (r *Session) setVar(name string, vr expand.Variable) {
	if cur := r.lookupVar(name); cur.ReadOnly && vr.Kind != expand.KeepValue {
		r.errf("%s: readonly variable\n", name)
		r.exit.code = 1
		return
	}
	if r.opts[optAllExport] && vr.Kind != expand.KeepValue {
		vr.Exported = true
	}
	if err := r.writeEnv.Set(name, vr); err != nil {
		r.errf("%s: %v\n", name, err)
		r.exit.code = 1
	}
}

func (r *Session) setVarString(name, value string) {
	r.setVar(name, expand.Variable{Set: true, Kind: expand.String, Str: value})
}

func (r *Session) delVar(name string) {
	if cur := r.lookupVar(name); cur.ReadOnly {
		r.errf("%s: readonly variable\n", name)
		r.exit.code = 1
		return
	}
	r.writeEnv.Set(name, expand.Variable{})
}

func (r *Session) setFunc(name string, body *syntax.Stmt) {
	if r.Funcs == nil {
		r.Funcs = make(map[string]*syntax.Stmt, 4)
	}
	r.Funcs[name] = body
}

func stringIndex(index syntax.ArithmExpr) bool {
	w, ok := index.(*syntax.Word)
	if !ok || len(w.Parts) != 1 {
		return false
	}
	switch w.Parts[0].(type) {
	case *syntax.DblQuoted, *syntax.SglQuoted:
		return true
	}
	return false
}

// setVarWithIndex applies the result of assignVal to a plain "name=value" or
// "name[index]=value" assignment, given the variable's state before the
// assignment ran.
func (r *Session) setVarWithIndex(prev expand.Variable, name string, index syntax.ArithmExpr, vr expand.Variable) {
	if index == nil {
		// When assigning a string to an array, fall back to the zero
		// index instead of replacing the whole array.
		if vr.Kind == expand.String {
			switch prev.Kind {
			case expand.Indexed:
				index = &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: "0"}}}
			case expand.Associative:
				index = &syntax.Word{Parts: []syntax.WordPart{&syntax.DblQuoted{}}}
			}
		}
		if index == nil {
			r.setVar(name, vr)
			return
		}
	}

	switch prev.Kind {
	case expand.Associative:
		w, ok := index.(*syntax.Word)
		if !ok {
			return
		}
		k := r.literal(w)
		amap := prev.Map
		if amap == nil {
			amap = make(map[string]string, 1)
		}
		amap[k] = vr.Str
		prev.Kind = expand.Associative
		prev.Map = amap
		r.setVar(name, prev)
	default:
		list := prev.List
		if prev.Kind == expand.String {
			list = []string{prev.Str}
		}
		k := r.arithm(index)
		for len(list) < k+1 {
			list = append(list, "")
		}
		list[k] = vr.Str
		prev.Kind = expand.Indexed
		prev.List = list
		prev.Str = ""
		r.setVar(name, prev)
	}
}

// assignVal computes the variable that an assignment produces, starting
// from the variable's state before the assignment ran. valType mirrors
// declare's "-a"/"-A" flags, forcing an otherwise-ambiguous array literal to
// be read as indexed or associative.
func (r *Session) assignVal(prev expand.Variable, as *syntax.Assign, valType string) expand.Variable {
	if as.Naked {
		return prev
	}
	if as.Value != nil {
		s := r.literal(as.Value)
		if !as.Append || !prev.IsSet() {
			return expand.Variable{Set: true, Kind: expand.String, Str: s}
		}
		switch prev.Kind {
		case expand.Indexed:
			list := append([]string(nil), prev.List...)
			if len(list) == 0 {
				list = append(list, "")
			}
			list[0] += s
			prev.List = list
			return prev
		default:
			return expand.Variable{Set: true, Kind: expand.String, Str: prev.String() + s}
		}
	}
	if as.Array == nil {
		return expand.Variable{Set: true, Kind: expand.String, Str: ""}
	}
	elems := as.Array.Elems
	if valType == "" {
		if len(elems) == 0 || !stringIndex(elems[0].Index) {
			valType = "-a"
		} else {
			valType = "-A"
		}
	}
	if valType == "-A" {
		amap := make(map[string]string, len(elems))
		for _, elem := range elems {
			k := r.literal(elem.Index.(*syntax.Word))
			amap[k] = r.literal(elem.Value)
		}
		return expand.Variable{Set: true, Kind: expand.Associative, Map: amap}
	}
	maxIndex := len(elems) - 1
	indexes := make([]int, len(elems))
	for i, elem := range elems {
		if elem.Index == nil {
			indexes[i] = i
			continue
		}
		k := r.arithm(elem.Index)
		indexes[i] = k
		if k > maxIndex {
			maxIndex = k
		}
	}
	strs := make([]string, maxIndex+1)
	for i, elem := range elems {
		strs[indexes[i]] = r.literal(elem.Value)
	}
	if !as.Append || !prev.IsSet() {
		return expand.Variable{Set: true, Kind: expand.Indexed, List: strs}
	}
	switch prev.Kind {
	case expand.Indexed:
		return expand.Variable{Set: true, Kind: expand.Indexed, List: append(append([]string(nil), prev.List...), strs...)}
	default:
		return expand.Variable{Set: true, Kind: expand.Indexed, List: append([]string{prev.String()}, strs...)}
	}
}
