package mrflow

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// BootstrapAction is a setup script run on every node before any step.
type BootstrapAction struct {
	Name string
	Path string
	Args []string
}

// PhaseDefinition is a named group of stages. Templates are evaluated with
// the resolved settings plus "phase_input" and "phase_output".
type PhaseDefinition interface {
	Name() string
	// Input is the external input the phase reads when it runs first.
	Input(vars map[string]cty.Value) (string, error)
	Protosteps(vars map[string]cty.Value) ([]Protostep, error)
	Bootstrap(vars map[string]cty.Value) ([]BootstrapAction, error)
}

// JobFlow is the compiled, ordered list of steps plus the metadata a
// submission client needs. It is not modified after Compile returns.
type JobFlow struct {
	ID      string
	Name    string
	Profile string

	Steps []Step
	// Hooks run before Steps (e.g. debugging setup); they are not job steps
	Hooks     []Step
	Bootstrap []BootstrapAction

	Topology             *Topology
	LogURI               string
	AMIVersion           string
	HadoopVersion        string
	VisibleToAllUsers    bool
	Tags                 []string
	KeepAlive            bool
	TerminationProtected bool
	EC2KeyName           string
}

// AssembleOptions are the locations and context phases are chained with.
type AssembleOptions struct {
	Expand ExpandOptions
	Input  string // external input of the first phase
	Output string // external output of the last phase
	Vars   map[string]cty.Value
}

// TransitionDir is where phase hands its output to the next phase.
func TransitionDir(ns Namespace, phase string) string {
	return ns.Join(ns.Root, phase, "push")
}

// Assemble expands phases in order and concatenates their steps. Each phase
// but the last writes to a transition directory read by the next phase; the
// last phase writes the external output.
func Assemble(phases []PhaseDefinition, o AssembleOptions) (*JobFlow, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("no phases to assemble")
	}
	f := &JobFlow{}
	type actionKey struct{ name, path string }
	seen := make(map[actionKey]bool)
	input := o.Input
	for i, phase := range phases {
		output := o.Output
		if i < len(phases)-1 {
			output = TransitionDir(o.Expand.Namespace, phase.Name())
		}
		vars := make(map[string]cty.Value, len(o.Vars)+2)
		for k, v := range o.Vars {
			vars[k] = v
		}
		vars["phase_input"] = cty.StringVal(input)
		vars["phase_output"] = cty.StringVal(output)

		protosteps, err := phase.Protosteps(vars)
		if err != nil {
			return nil, fmt.Errorf("phase %q: %w", phase.Name(), err)
		}
		steps, err := Expand(protosteps, o.Expand)
		if err != nil {
			return nil, fmt.Errorf("phase %q: %w", phase.Name(), err)
		}
		if len(steps) == 0 {
			return nil, &DefectError{Step: phase.Name(), Reason: "phase has no steps"}
		}
		if last := steps[len(steps)-1]; last.Output != output {
			return nil, &DefectError{Step: last.Name, Reason: fmt.Sprintf("last step of phase %q must write %q, not %q",
				phase.Name(), output, last.Output)}
		}
		f.Steps = append(f.Steps, steps...)

		actions, err := phase.Bootstrap(vars)
		if err != nil {
			return nil, fmt.Errorf("phase %q: %w", phase.Name(), err)
		}
		for _, a := range actions {
			k := actionKey{a.Name, a.Path}
			if seen[k] {
				continue
			}
			seen[k] = true
			f.Bootstrap = append(f.Bootstrap, a)
		}
		input = output
	}
	if err := checkOrder(f.Steps); err != nil {
		return nil, err
	}
	return f, nil
}

func within(p, dir string) bool {
	p, dir = strings.TrimSuffix(p, "/"), strings.TrimSuffix(dir, "/")
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// checkOrder rejects flows where a step reads from a later step or two steps
// write the same location.
func checkOrder(steps []Step) error {
	for j, s := range steps {
		for k := j + 1; k < len(steps); k++ {
			later := steps[k]
			if within(later.Output, s.Output) || within(s.Output, later.Output) {
				return &DefectError{Step: later.Name, Reason: fmt.Sprintf("output %q overlaps output of %q", later.Output, s.Name)}
			}
			for _, in := range s.Inputs {
				if within(in, later.Output) {
					return &DefectError{Step: s.Name, Reason: fmt.Sprintf("reads %q written by later step %q", in, later.Name)}
				}
			}
		}
	}
	return nil
}
