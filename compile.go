package mrflow

import (
	"context"
	"log"
	"slices"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
)

// Compile validates o for prof and the selected phases, then expands them
// into a job flow. Every independent check runs before Compile gives up, so
// a *ValidationError lists all problems at once; a *HardError stops early
// when a required capability is unusable. Nothing is expanded unless all
// checks pass.
//
// c must be fresh or carry only errors found while reading o (see
// DecodeParams). o is updated with resolved defaults and executables.
func Compile(ctx context.Context, c *Checker, o *Options, phases []PhaseDefinition, prof Profile, loc Locator) (*JobFlow, error) {
	c.Checkf(o.Output != "", "Output directory (\"--output\") must be specified.")
	n := c.Len()
	selected := SelectPhases(c, phases, o.Phases)
	if c.Len() == n {
		c.Checkf(len(selected) > 0, "No phases were selected to run.")
	}

	if err := prof.Check(ctx, c, o, loc); err != nil {
		return nil, err
	}
	if o.Output != "" {
		c.Checkf(!within(o.Output, o.Intermediate) && !within(o.Intermediate, o.Output),
			"Output directory %s and intermediate directory %s must not contain one another.", o.Output, o.Intermediate)
	}
	samples := slices.ContainsFunc(selected, func(p PhaseDefinition) bool { return p.Name() == "preprocess" })
	if err := checkManifest(ctx, c, o, loc, samples); err != nil {
		return nil, err
	}

	verbose := ""
	if o.Verbose {
		verbose = "--verbose"
	}
	c.SetString("verbose", verbose)
	c.SetString("output", o.Output)
	c.SetString("intermediate", o.Intermediate)
	c.SetString("manifest", o.Manifest)
	c.Set("distributed", cty.BoolVal(prof.Distributed()))
	for _, p := range selected {
		if check, ok := PhaseChecks[p.Name()]; ok {
			if err := check(ctx, c, o, prof, loc); err != nil {
				return nil, err
			}
		}
	}

	var input string
	if len(selected) > 0 {
		first := selected[0]
		var err error
		if input, err = first.Input(c.Vars()); err != nil {
			return nil, err
		}
		c.Checkf(input != "", "The %q phase runs first, so its input must be specified (\"--input-dir\").", first.Name())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	eo := ExpandOptions{
		Namespace:        Namespace{Root: o.Intermediate, Join: prof.Join},
		ReducerCountBase: prof.ReducerCountBase(o),
		Command:          func(run string) string { return prof.Command(o, run) },
	}
	if prof.Distributed() {
		eo.ActionOnFailure = o.Cluster.ActionOnFailure
		eo.Jar = o.Cluster.HadoopJar
	}
	f, err := Assemble(selected, AssembleOptions{
		Expand: eo,
		Input:  input,
		Output: o.Output,
		Vars:   c.Vars(),
	})
	if err != nil {
		return nil, err
	}
	f.ID = uuid.NewString()
	f.Profile = prof.Name()
	prof.Decorate(f, o)
	log.Printf("compiled %d steps (phases: %s) for the %s profile with %d reducer slots",
		len(f.Steps), phaseNames(selected), prof.Name(), eo.ReducerCountBase)
	return f, nil
}
