// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"

	"github.com/tv-labs/bash-sub003/expand"
)

// overlayEnviron is a [expand.WriteEnviron] that layers its own writable
// variables on top of a read-only parent. [Session.writeEnv] uses one to
// turn the caller-supplied, read-only [Session.Env] into somewhere the
// interpreter can actually assign variables; subshells use another to get
// their own copy that can diverge from the parent without mutating it.
type overlayEnviron struct {
	parent expand.Environ
	values map[string]expand.Variable
}

var _ expand.WriteEnviron = (*overlayEnviron)(nil)

// newOverlayEnviron snapshots parent's current variables into a new,
// independent overlay. copy should be true for subshells, which must not
// see assignments their parent session makes after the fork; it can be
// false when the caller already knows parent won't be mutated concurrently,
// such as when wrapping a fresh [expand.ListEnviron].
func newOverlayEnviron(parent expand.Environ, copy bool) *overlayEnviron {
	o := &overlayEnviron{parent: parent}
	if copy && parent != nil {
		o.values = make(map[string]expand.Variable)
		parent.Each(func(name string, vr expand.Variable) bool {
			o.values[name] = vr
			return true
		})
		o.parent = nil
	}
	return o
}

func (o *overlayEnviron) Get(name string) expand.Variable {
	if vr, ok := o.values[name]; ok {
		return vr
	}
	if o.parent == nil {
		return expand.Variable{}
	}
	return o.parent.Get(name)
}

func (o *overlayEnviron) Set(name string, vr expand.Variable) error {
	if name == "" {
		return fmt.Errorf("variable name must not be empty")
	}
	if vr.Kind == expand.KeepValue {
		cur := o.Get(name)
		cur.Exported = vr.Exported
		cur.ReadOnly = vr.ReadOnly
		cur.Local = vr.Local
		vr = cur
	}
	if o.values == nil {
		o.values = make(map[string]expand.Variable)
	}
	o.values[name] = vr
	return nil
}

// execEnv flattens env into "name=value" pairs suitable for [exec.Cmd.Env],
// forwarding only exported variables the way a real shell does when it runs
// an external program.
func execEnv(env expand.Environ) []string {
	list := make([]string, 0, 32)
	env.Each(func(name string, vr expand.Variable) bool {
		if !vr.Exported {
			return true
		}
		list = append(list, name+"="+vr.String())
		return true
	})
	return list
}

func (o *overlayEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	seen := make(map[string]bool, len(o.values))
	for name, vr := range o.values {
		seen[name] = true
		if !vr.IsSet() && !vr.Declared() {
			continue
		}
		if !fn(name, vr) {
			return
		}
	}
	if o.parent == nil {
		return
	}
	o.parent.Each(func(name string, vr expand.Variable) bool {
		if seen[name] {
			return true
		}
		return fn(name, vr)
	})
}
