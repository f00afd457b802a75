// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tv-labs/bash-sub003/syntax"
)

// JobStatus describes the lifecycle state of a tracked [Job].
type JobStatus uint8

const (
	JobRunning JobStatus = iota
	JobStopped
	JobDone
)

func (s JobStatus) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	case JobDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Job is an entry in the session's job table: a pipeline or background
// command launched with trailing "&", tracked by job number so that jobs,
// fg, bg, kill, disown and wait can refer back to it with a %-spec.
//
// The leader field is an index into [Session.bgProcs]; jobs never correspond
// to a real OS process group, since background work runs as a goroutine
// driving a sub-[Session], not a forked child. This mirrors how process
// substitutions are handled, and keeps job control usable under the fake-PID
// scheme already used for "$!" and plain "wait PID".
type Job struct {
	Num      int
	leader   int // index into r.bgProcs
	Command  string
	Status   JobStatus
	ExitCode uint8
}

// addJob registers a new background job for the given statement and backing
// bgProc, returning the allocated job number. The job starts Running; a
// watcher goroutine (started by the caller) should call markJobDone once the
// bgProc's done channel closes.
func (r *Session) addJob(st *syntax.Stmt, leader int) *Job {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	if r.jobs == nil {
		r.jobs = make(map[int]*Job)
	}
	r.nextJobNum++
	job := &Job{
		Num:     r.nextJobNum,
		leader:  leader,
		Command: jobCommandText(st),
		Status:  JobRunning,
	}
	r.jobs[job.Num] = job
	r.jobOrder = append(r.jobOrder, job.Num)
	r.previousJob = r.currentJob
	r.currentJob = job.Num
	return job
}

func (r *Session) markJobDone(job *Job, code uint8) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	job.Status = JobDone
	job.ExitCode = code
	if r.currentJob == job.Num {
		r.currentJob = r.previousJob
		r.previousJob = 0
	}
}

// reapJob drops a job from the table, as "wait %N" and "fg" do once they
// have collected its exit status, and as "disown" does without waiting.
func (r *Session) reapJob(num int) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	delete(r.jobs, num)
	for i, n := range r.jobOrder {
		if n == num {
			r.jobOrder = append(r.jobOrder[:i], r.jobOrder[i+1:]...)
			break
		}
	}
}

func jobCommandText(st *syntax.Stmt) string {
	var buf bytes.Buffer
	st2 := *st
	st2.Background = false
	f := &syntax.File{Stmts: []*syntax.Stmt{&st2}}
	if err := syntax.Fprint(&buf, f); err != nil {
		return "<job>"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// jobSpec resolves a %-spec or bare job number to a job, following bash's
// rules: %%, %+ and an unadorned "%" mean the current job; %- means the
// previous job; %N is job N; %string and %?string match a job whose command
// starts with, or contains, the given string.
func (r *Session) jobSpec(spec string) (*Job, error) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	spec = strings.TrimPrefix(spec, "%")
	switch spec {
	case "", "%", "+":
		if job, ok := r.jobs[r.currentJob]; ok {
			return job, nil
		}
		return nil, fmt.Errorf("current: no such job")
	case "-":
		if job, ok := r.jobs[r.previousJob]; ok {
			return job, nil
		}
		return nil, fmt.Errorf("previous: no such job")
	}
	if n, err := strconv.Atoi(spec); err == nil {
		if job, ok := r.jobs[n]; ok {
			return job, nil
		}
		return nil, fmt.Errorf("%%%d: no such job", n)
	}
	contains := strings.HasPrefix(spec, "?")
	needle := strings.TrimPrefix(spec, "?")
	for _, num := range r.jobOrder {
		job := r.jobs[num]
		if contains && strings.Contains(job.Command, needle) {
			return job, nil
		}
		if !contains && strings.HasPrefix(job.Command, needle) {
			return job, nil
		}
	}
	return nil, fmt.Errorf("%s: no such job", spec)
}

// lastBgJobSpec implements "$!": the fake PID of the most recently started
// background command, or empty if none has started yet.
func (r *Session) lastBgJobSpec() string {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	if len(r.bgProcs) == 0 {
		return ""
	}
	return "g" + strconv.Itoa(len(r.bgProcs))
}

// umaskSymbolic renders a umask in "u=rwx,g=rx,o=rx" form for "umask -S".
func umaskSymbolic(mask os.FileMode) string {
	perm := 0o777 &^ uint32(mask)
	groups := []struct {
		label string
		shift uint
	}{{"u", 6}, {"g", 3}, {"o", 0}}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		bits := (perm >> g.shift) & 0o7
		s := g.label + "="
		if bits&4 != 0 {
			s += "r"
		}
		if bits&2 != 0 {
			s += "w"
		}
		if bits&1 != 0 {
			s += "x"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}

// waitAll blocks until every background process started by this session has
// finished, waiting on them concurrently via an [errgroup.Group] rather than
// one at a time. The returned error is always nil today, since a finished
// bgProc signals completion through its done channel rather than a Go error;
// the group is still the right tool here; it is what keeps "wait" with no
// arguments from serializing on whichever background job happens to be
// slowest to be enumerated.
func (r *Session) waitAll() error {
	var g errgroup.Group
	for _, bg := range r.bgProcs {
		g.Go(func() error {
			<-bg.done
			return nil
		})
	}
	return g.Wait()
}

func (r *Session) sortedJobs() []*Job {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	jobs := make([]*Job, 0, len(r.jobOrder))
	for _, num := range r.jobOrder {
		jobs = append(jobs, r.jobs[num])
	}
	return jobs
}
