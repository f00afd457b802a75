// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax_test

import (
	"os"
	"strings"

	"github.com/tv-labs/bash-sub003/syntax"
)

type upperParamVisitor struct{}

func (upperParamVisitor) Visit(node syntax.Node) syntax.Visitor {
	if x, ok := node.(*syntax.ParamExp); ok {
		x.Param.Value = strings.ToUpper(x.Param.Value)
	}
	return upperParamVisitor{}
}

func ExampleWalk() {
	in := strings.NewReader(`echo $foo "and $bar"`)
	f, err := syntax.NewParser().Parse(in, "")
	if err != nil {
		return
	}
	syntax.Walk(upperParamVisitor{}, f)
	syntax.Fprint(os.Stdout, f)
	// Output: echo $FOO "and $BAR"
}
