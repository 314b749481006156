package mrflow

import (
	"context"
	"runtime"
	"strings"
)

const DefaultLocalIntermediate = "./intermediate"

// Local runs every step as a process on this machine.
type Local struct{}

func (Local) Name() string      { return "local" }
func (Local) Distributed() bool { return false }

func (Local) Join(root string, elem ...string) string { return JoinLocal(root, elem...) }

func (Local) Check(ctx context.Context, c *Checker, o *Options, loc Locator) error {
	if o.Intermediate == "" {
		o.Intermediate = DefaultLocalIntermediate
	}
	c.Checkf(Location(o.Intermediate).IsLocal(), "Intermediate directory must be local when running in local mode, but %s was entered.",
		o.Intermediate)

	out := Location(o.Output)
	if out.IsCurlable() {
		c.Checkf(false, "Output directory must be local or on distributed storage when running in local mode, but %s was entered.",
			o.Output)
	} else if err := checkOutputFree(ctx, c, o, loc, "the output directory is on "+out.Where()); err != nil {
		return err
	}

	l := &o.Local
	switch {
	case l.NumProcesses == 0:
		l.NumProcesses = runtime.NumCPU() - 1
		if l.NumProcesses < 1 {
			l.NumProcesses = 1
		}
	case l.NumProcesses < 0:
		c.Checkf(false, "Number of processes (\"--num-processes\") must be an integer >= 1, but %d was entered.",
			l.NumProcesses)
	}

	if strings.ContainsRune(l.Interpreter, '/') {
		l.Interpreter = c.Program(loc, "", "the step interpreter", "--interpreter", l.Interpreter)
	} else {
		l.Interpreter = c.Program(loc, l.Interpreter, "the step interpreter", "--interpreter", "")
	}
	c.Checkf(loc.IsDir(ctx, l.StepDir), "Step directory (\"--step-dir\") %s does not exist.", l.StepDir)

	c.SetString("manifest_path", o.Manifest)
	c.SetString("keep_alive", "")
	return nil
}

// ReducerCountBase is the number of worker processes.
func (Local) ReducerCountBase(o *Options) int { return o.Local.NumProcesses }

func (Local) Command(o *Options, run string) string {
	script, args := splitRun(run)
	return strings.TrimSpace(o.Local.Interpreter + " " + JoinLocal(o.Local.StepDir, script) + " " + args)
}

// Decorate drops setup actions; local tools are checked rather than
// installed.
func (Local) Decorate(f *JobFlow, o *Options) {
	f.Bootstrap = nil
}
