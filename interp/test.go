// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"
	"os"

	"github.com/tv-labs/bash-sub003/syntax"
)

// bashTest evaluates a test expression from "test"/"[" (classic true) or
// "[[ ]]" (classic false) down to its bash string result: non-empty means
// true, empty means false. The classic flag only matters where POSIX test
// and bash's [[ ]] disagree; today that is nothing this switch
// implements, but it is threaded through so a future -a/-o or =~ case can
// branch on it without another signature change.
func (r *Session) bashTest(ctx context.Context, expr syntax.TestExpr, classic bool) string {
	switch x := expr.(type) {
	case *syntax.Word:
		return r.literal(x)
	case *syntax.ParenTest:
		return r.bashTest(ctx, x.X, classic)
	case *syntax.BinaryTest:
		if r.binTest(ctx, x.Op, r.bashTest(ctx, x.X, classic), r.bashTest(ctx, x.Y, classic)) {
			return "1"
		}
		return ""
	case *syntax.UnaryTest:
		if r.unTest(ctx, x.Op, r.bashTest(ctx, x.X, classic)) {
			return "1"
		}
		return ""
	}
	return ""
}

func (r *Session) binTest(ctx context.Context, op syntax.BinTestOperator, x, y string) bool {
	switch op {
	//case syntax.TsReMatch:
	case syntax.TsNewer:
		i1, err1 := r.stat(ctx, x)
		i2, err2 := r.stat(ctx, y)
		if err1 != nil || err2 != nil {
			return false
		}
		return i1.ModTime().After(i2.ModTime())
	case syntax.TsOlder:
		i1, err1 := r.stat(ctx, x)
		i2, err2 := r.stat(ctx, y)
		if err1 != nil || err2 != nil {
			return false
		}
		return i1.ModTime().Before(i2.ModTime())
	//case syntax.TsDevIno:
	case syntax.TsEql:
		return atoi(x) == atoi(y)
	case syntax.TsNeq:
		return atoi(x) != atoi(y)
	case syntax.TsLeq:
		return atoi(x) <= atoi(y)
	case syntax.TsGeq:
		return atoi(x) >= atoi(y)
	case syntax.TsLss:
		return atoi(x) < atoi(y)
	case syntax.TsGtr:
		return atoi(x) > atoi(y)
	case syntax.AndTest:
		return x != "" && y != ""
	case syntax.OrTest:
		return x != "" || y != ""
	case syntax.TsEqual:
		return x == y
	case syntax.TsNequal:
		return x != y
	case syntax.TsBefore:
		return x < y
	case syntax.TsAfter:
		return x > y
	default:
		panic(fmt.Sprintf("unhandled binary test op: %v", op))
	}
}

func statMode(info os.FileInfo, err error, mode os.FileMode) bool {
	return err == nil && info.Mode()&mode != 0
}

func (r *Session) unTest(ctx context.Context, op syntax.UnTestOperator, x string) bool {
	switch op {
	case syntax.TsExists:
		_, err := r.stat(ctx, x)
		return err == nil
	case syntax.TsRegFile:
		info, err := r.stat(ctx, x)
		return err == nil && info.Mode().IsRegular()
	case syntax.TsDirect:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeDir)
	//case syntax.TsCharSp:
	//case syntax.TsBlckSp:
	case syntax.TsNmPipe:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeNamedPipe)
	case syntax.TsSocket:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeSocket)
	case syntax.TsSmbLink:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeSymlink)
	case syntax.TsSticky:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeSticky)
	case syntax.TsGIDSet:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeSetgid)
	case syntax.TsUIDSet:
		info, err := r.stat(ctx, x)
		return statMode(info, err, os.ModeSetuid)
	case syntax.TsGrpOwn:
		return r.unTestOwnOrGrp(ctx, op, x)
	case syntax.TsUsrOwn:
		return r.unTestOwnOrGrp(ctx, op, x)
	//case syntax.TsModif:
	//case syntax.TsRead:
	//case syntax.TsWrite:
	//case syntax.TsExec:
	case syntax.TsNoEmpty:
		info, err := r.stat(ctx, x)
		return err == nil && info.Size() > 0
	//case syntax.TsFdTerm:
	case syntax.TsEmpStr:
		return x == ""
	case syntax.TsNempStr:
		return x != ""
	//case syntax.TsOptSet:
	//case syntax.TsVarSet:
	//case syntax.TsRefVar:
	case syntax.TsNot:
		return x == ""
	default:
		panic(fmt.Sprintf("unhandled unary test op: %v", op))
	}
}
