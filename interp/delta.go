// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"maps"
	"os"
)

// stateDelta stages the session-state mutations a single top-level call to
// builtin produces, so that they commit to the [Session] atomically once
// that call returns rather than being written field by field as the
// builtin runs. A builtin that recursively calls into another one, such
// as pushd invoking "dirs" to print the updated stack, shares its
// caller's delta instead of opening a new one: see builtin's topLevel
// check in builtin.go.
//
// Every field is the zero value until the matching builtin stages a
// change; applyDelta only touches the Session fields a delta actually
// staged, so an empty delta commits nothing.
type stateDelta struct {
	dirSet      bool
	dir         string
	dirStackSet bool
	dirStack    []string

	aliasSet   map[string]alias
	aliasUnset map[string]bool

	hashReset bool
	hashSet   map[string]string
	hashUnset map[string]bool

	disabledSet map[string]bool

	umaskSet bool
	umask    os.FileMode

	funcsUnset map[string]bool
}

// curDir returns the working directory the active builtin call would see:
// the staged value if cd/pushd/popd already ran earlier in this call,
// otherwise the session's committed Dir.
func (r *Session) curDir() string {
	if r.delta != nil && r.delta.dirSet {
		return r.delta.dir
	}
	return r.Dir
}

func (r *Session) stageDir(path string) {
	r.delta.dirSet = true
	r.delta.dir = path
}

// curDirStack returns the pushd/popd directory stack as the active
// builtin call would see it.
func (r *Session) curDirStack() []string {
	if r.delta != nil && r.delta.dirStackSet {
		return r.delta.dirStack
	}
	return r.dirStack
}

func (r *Session) stageDirStack(stack []string) {
	r.delta.dirStackSet = true
	r.delta.dirStack = stack
}

// curAlias looks up an alias as the active builtin call would see it,
// folding in any alias/unalias staged earlier in the same call.
func (r *Session) curAlias(name string) (alias, bool) {
	if r.delta != nil {
		if r.delta.aliasUnset[name] {
			return alias{}, false
		}
		if als, ok := r.delta.aliasSet[name]; ok {
			return als, true
		}
	}
	als, ok := r.alias[name]
	return als, ok
}

// curAliases returns every alias visible to the active builtin call, for
// "alias" with no arguments.
func (r *Session) curAliases() map[string]alias {
	out := make(map[string]alias, len(r.alias))
	maps.Copy(out, r.alias)
	if r.delta != nil {
		for name := range r.delta.aliasUnset {
			delete(out, name)
		}
		maps.Copy(out, r.delta.aliasSet)
	}
	return out
}

func (r *Session) stageAlias(name string, als alias) {
	if r.delta.aliasSet == nil {
		r.delta.aliasSet = make(map[string]alias)
	}
	delete(r.delta.aliasUnset, name)
	r.delta.aliasSet[name] = als
}

func (r *Session) stageAliasUnset(name string) {
	if r.delta.aliasUnset == nil {
		r.delta.aliasUnset = make(map[string]bool)
	}
	delete(r.delta.aliasSet, name)
	r.delta.aliasUnset[name] = true
}

// curHash looks up the command-path hash table as the active builtin call
// would see it.
func (r *Session) curHash(name string) (string, bool) {
	if r.delta != nil {
		if r.delta.hashReset {
			return "", false
		}
		if r.delta.hashUnset[name] {
			return "", false
		}
		if path, ok := r.delta.hashSet[name]; ok {
			return path, true
		}
	}
	path, ok := r.hashTable[name]
	return path, ok
}

// curHashTable returns the full hash table as the active builtin call
// would see it, for "hash" with no arguments.
func (r *Session) curHashTable() map[string]string {
	out := make(map[string]string)
	if r.delta == nil || !r.delta.hashReset {
		maps.Copy(out, r.hashTable)
	}
	if r.delta != nil {
		for name := range r.delta.hashUnset {
			delete(out, name)
		}
		maps.Copy(out, r.delta.hashSet)
	}
	return out
}

func (r *Session) stageHash(name, path string) {
	if r.delta.hashSet == nil {
		r.delta.hashSet = make(map[string]string)
	}
	delete(r.delta.hashUnset, name)
	r.delta.hashSet[name] = path
}

func (r *Session) stageHashReset() {
	r.delta.hashReset = true
	r.delta.hashSet = nil
	r.delta.hashUnset = nil
}

// curDisabled reports whether name is a disabled builtin as the active
// builtin call would see it.
func (r *Session) curDisabled(name string) bool {
	if r.delta != nil {
		if v, ok := r.delta.disabledSet[name]; ok {
			return v
		}
	}
	return r.disabledBuiltins[name]
}

func (r *Session) stageDisabled(name string, disabled bool) {
	if r.delta.disabledSet == nil {
		r.delta.disabledSet = make(map[string]bool)
	}
	r.delta.disabledSet[name] = disabled
}

// curUmask returns the umask as the active builtin call would see it.
func (r *Session) curUmask() os.FileMode {
	if r.delta != nil && r.delta.umaskSet {
		return r.delta.umask
	}
	return r.umaskVal
}

func (r *Session) stageUmask(mode os.FileMode) {
	r.delta.umaskSet = true
	r.delta.umask = mode
}

// stageFuncUnset stages removing a function definition, as "unset -f"
// does.
func (r *Session) stageFuncUnset(name string) {
	if r.delta.funcsUnset == nil {
		r.delta.funcsUnset = make(map[string]bool)
	}
	r.delta.funcsUnset[name] = true
}

// curFuncUnset reports whether name's function was unset earlier in the
// active builtin call.
func (r *Session) curFuncUnset(name string) bool {
	return r.delta != nil && r.delta.funcsUnset[name]
}

// applyDelta commits every mutation staged in d to the session's real
// state. builtin calls this once, when the outermost call that opened d
// returns.
func (r *Session) applyDelta(d *stateDelta) {
	if d.dirSet {
		r.Dir = d.dir
	}
	if d.dirStackSet {
		r.dirStack = d.dirStack
	}
	for name := range d.aliasUnset {
		delete(r.alias, name)
	}
	for name, als := range d.aliasSet {
		if r.alias == nil {
			r.alias = make(map[string]alias)
		}
		r.alias[name] = als
	}
	if d.hashReset {
		clear(r.hashTable)
	}
	for name := range d.hashUnset {
		delete(r.hashTable, name)
	}
	for name, path := range d.hashSet {
		if r.hashTable == nil {
			r.hashTable = make(map[string]string)
		}
		r.hashTable[name] = path
	}
	for name, disabled := range d.disabledSet {
		if r.disabledBuiltins == nil {
			r.disabledBuiltins = make(map[string]bool)
		}
		r.disabledBuiltins[name] = disabled
	}
	if d.umaskSet {
		r.umaskVal = d.umask
		setProcessUmask(int(r.umaskVal))
	}
	for name := range d.funcsUnset {
		delete(r.Funcs, name)
	}
}
