package mrflow

import (
	"context"
	"strings"
)

// Profile is the execution target a pipeline compiles for. It decides how
// paths join, which checks and capabilities the target needs, how stage
// commands are invoked and what setup metadata the flow carries.
type Profile interface {
	Name() string
	// Distributed reports whether steps run on cluster nodes rather than
	// this machine.
	Distributed() bool
	Join(root string, elem ...string) string
	// Check validates the profile's parameters, resolving defaults into o.
	Check(ctx context.Context, c *Checker, o *Options, loc Locator) error
	ReducerCountBase(o *Options) int
	Command(o *Options, run string) string
	// Decorate attaches profile metadata to an assembled flow. It must not
	// touch f.Steps.
	Decorate(f *JobFlow, o *Options)
}

// ProfileByName returns the profile registered under name.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "local", "":
		return Local{}, true
	case "cluster":
		return Cluster{}, true
	}
	return nil, false
}

// Where describes a location's storage for messages.
func (l Location) Where() string {
	switch {
	case l.IsS3():
		return "S3"
	case l.IsGS():
		return "Google Storage"
	case l.IsHDFS():
		return "HDFS"
	case l.IsCurlable():
		return "the web"
	}
	return "the local filesystem"
}

// reach verifies the capability needed to query l, at most once per
// compilation, and reports whether l can be queried. A missing capability is
// a hard error naming reason.
func reach(ctx context.Context, c *Checker, o *Options, loc Locator, l Location, reason string) (bool, error) {
	kind, ok := l.StorageCapability()
	if !ok {
		return true, nil
	}
	exe, err := c.Capability(ctx, loc, kind, o.entered(kind), reason)
	if err != nil {
		return false, err
	}
	return exe != "", nil
}

// checkOutputFree rejects an existing output directory unless force is set.
func checkOutputFree(ctx context.Context, c *Checker, o *Options, loc Locator, reason string) error {
	out := Location(o.Output)
	ok, err := reach(ctx, c, o, loc, out, reason)
	if err != nil || !ok || o.Force {
		return err
	}
	if out.IsLocal() {
		c.Checkf(!loc.Exists(ctx, o.Output), "Output directory %s exists, and \"--force\" was not invoked to permit overwriting it.",
			o.Output)
		return nil
	}
	c.Checkf(!loc.IsDir(ctx, o.Output), "Output directory %s exists on %s, and \"--force\" was not invoked to permit overwriting it.",
		o.Output, out.Where())
	return nil
}

// splitRun separates the script of a command template from its arguments so
// only the script is joined to a step directory.
func splitRun(run string) (script, args string) {
	run = strings.TrimSpace(run)
	if i := strings.IndexAny(run, " \t"); i >= 0 {
		return run[:i], strings.TrimSpace(run[i:])
	}
	return run, ""
}
