// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/tv-labs/bash-sub003/fileutil"
	"github.com/tv-labs/bash-sub003/interp"
	"github.com/tv-labs/bash-sub003/syntax"
)

// Outcome is the result of running a shell program: its exit code, the
// output it produced on stdout and stderr, and the session it ran
// against. Embedders inspect an Outcome instead of the raw error that
// [interp.Session.Run] returns.
type Outcome struct {
	Session  *interp.Session
	ExitCode uint8
	Stdout   []byte
	Stderr   []byte
	// Err holds any non-exit-status error surfaced by the run, such as a
	// fatal I/O failure in a handler. It is nil for ordinary non-zero exits.
	Err error
}

// Success reports whether the program exited with status zero and hit no
// fatal error.
func (o *Outcome) Success() bool { return o.Err == nil && o.ExitCode == 0 }

func newOutcome(r *interp.Session, stdout, stderr *bytes.Buffer, runErr error) *Outcome {
	o := &Outcome{
		Session: r,
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
	}
	if code, ok := interp.IsExitStatus(runErr); ok {
		o.ExitCode = code
	} else if runErr != nil {
		o.Err = runErr
		o.ExitCode = 1
	}
	return o
}

// RunOption configures Run and RunFile.
type RunOption func(*runConfig)

type runConfig struct {
	sessOpts []interp.SessionOption
	session  *interp.Session
}

// WithSession runs the program against an existing session instead of a
// freshly constructed one, so that state such as variables, functions, and
// the working directory persists across calls. The caller remains
// responsible for the session: Run does not wait for background jobs the
// program started, and [interp.Session.Stop] cancels and waits for them.
func WithSession(r *interp.Session) RunOption {
	return func(c *runConfig) { c.session = r }
}

// WithSessionOptions passes additional [interp.SessionOption] values along
// to [interp.New] when Run or RunFile must create a session.
func WithSessionOptions(opts ...interp.SessionOption) RunOption {
	return func(c *runConfig) { c.sessOpts = append(c.sessOpts, opts...) }
}

// Run parses src as a shell program with name used for position
// information, then executes it, returning the captured outcome. Unless
// WithSession is given, a new session is created with [interp.New] and
// discarded after the run.
func Run(ctx context.Context, src []byte, name string, opts ...RunOption) (*Outcome, error) {
	file, err := Parse(src, name)
	if err != nil {
		return nil, err
	}
	return runFile(ctx, file, opts...)
}

// RunFile reads the file at path, decides whether it looks like a shell
// script via [fileutil.HasShebang] and [fileutil.CouldBeScript], parses it,
// and executes it.
func RunFile(ctx context.Context, path string, opts ...RunOption) (*Outcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch fileutil.CouldBeScript(info) {
	case fileutil.ConfNotScript:
		return nil, fmt.Errorf("%s: does not look like a shell script", path)
	case fileutil.ConfIfShebang:
		if !fileutil.HasShebang(src) {
			return nil, fmt.Errorf("%s: missing a sh or bash shebang", path)
		}
	}
	file, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	return runFile(ctx, file, opts...)
}

func runFile(ctx context.Context, file *syntax.File, opts ...RunOption) (*Outcome, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	r := cfg.session
	var stdout, stderr bytes.Buffer
	if r == nil {
		sessOpts := append([]interp.SessionOption{
			interp.StdIO(nil, &stdout, &stderr),
		}, cfg.sessOpts...)
		var err error
		r, err = interp.New(sessOpts...)
		if err != nil {
			return nil, fmt.Errorf("could not create session: %v", err)
		}
	} else {
		interp.StdIO(nil, &stdout, &stderr)(r)
	}
	runErr := r.Run(ctx, file)
	return newOutcome(r, &stdout, &stderr, runErr), nil
}

// Parse parses src as a whole shell program with name used for position
// information in error messages.
func Parse(src []byte, name string) (*syntax.File, error) {
	return syntax.Parse(bytes.NewReader(src), name, 0)
}

// Validate reports whether src parses as a syntactically valid shell
// program, returning the parse error if not.
func Validate(src []byte, name string) error {
	_, err := Parse(src, name)
	return err
}
