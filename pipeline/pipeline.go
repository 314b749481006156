// Package pipeline loads phase and stage definitions written in HCL.
//
// A pipeline file is a list of phase blocks, each with an input expression,
// bootstrap blocks and an ordered list of step blocks:
//
//	phase "preprocess" {
//	  input = manifest
//
//	  step "Preprocess input reads" {
//	    run                = "preprocess.py --push=${phase_output}"
//	    inputs             = [phase_input]
//	    no_input_prefix    = true
//	    output             = phase_output
//	    no_output_prefix   = true
//	    reducer_multiplier = 0
//	  }
//	}
//
// Expressions are evaluated at compile time against the resolved settings,
// plus phase_input and phase_output for the phase being expanded.
// reducer_multiplier is required; null forces a single reducer.
package pipeline

import (
	_ "embed"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/jehiah/mrflow"
)

//go:embed default.hcl
var defaultHCL []byte

type hclFile struct {
	Phases []*hclPhase `hcl:"phase,block"`
}

type hclPhase struct {
	Name      string         `hcl:"name,label"`
	Input     hcl.Expression `hcl:"input"`
	Bootstrap []*hclNamed    `hcl:"bootstrap,block"`
	Steps     []*hclNamed    `hcl:"step,block"`
}

type hclNamed struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclStep struct {
	Run                string   `hcl:"run"`
	Inputs             []string `hcl:"inputs"`
	Output             string   `hcl:"output"`
	NoInputPrefix      bool     `hcl:"no_input_prefix,optional"`
	NoOutputPrefix     bool     `hcl:"no_output_prefix,optional"`
	KeyFields          *int     `hcl:"key_fields,optional"`
	PartitionerOptions *string  `hcl:"partitioner_options,optional"`
	ReducerMultiplier  *float64 `hcl:"reducer_multiplier"`
	Archives           string   `hcl:"archives,optional"`
	MultipleOutputs    bool     `hcl:"multiple_outputs,optional"`
	InputFormat        string   `hcl:"input_format,optional"`
}

type hclBootstrap struct {
	Path string   `hcl:"path"`
	Args []string `hcl:"args,optional"`
}

// Pipeline is an ordered list of phases.
type Pipeline struct {
	Phases []*Phase
}

// Definitions returns the phases in order for mrflow.Compile.
func (p *Pipeline) Definitions() []mrflow.PhaseDefinition {
	defs := make([]mrflow.PhaseDefinition, len(p.Phases))
	for i, phase := range p.Phases {
		defs[i] = phase
	}
	return defs
}

// Default returns the built in two phase pipeline: preprocess, then align.
func Default() (*Pipeline, error) {
	return Load(defaultHCL, "default.hcl")
}

// LoadFile parses the pipeline at path.
func LoadFile(path string) (*Pipeline, error) {
	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline %s: %w", path, diags)
	}
	return decode(f, path)
}

// Load parses a pipeline from src; filename is used in diagnostics.
func Load(src []byte, filename string) (*Pipeline, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline %s: %w", filename, diags)
	}
	return decode(f, filename)
}

func decode(f *hcl.File, filename string) (*Pipeline, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline %s: %w", filename, diags)
	}
	if len(parsed.Phases) == 0 {
		return nil, fmt.Errorf("pipeline %s has no phases", filename)
	}
	p := &Pipeline{}
	seen := make(map[string]bool)
	for _, hp := range parsed.Phases {
		if seen[hp.Name] {
			return nil, fmt.Errorf("pipeline %s: duplicate phase %q", filename, hp.Name)
		}
		seen[hp.Name] = true
		if len(hp.Steps) == 0 {
			return nil, fmt.Errorf("pipeline %s: phase %q has no steps", filename, hp.Name)
		}
		p.Phases = append(p.Phases, &Phase{
			name:      hp.Name,
			input:     hp.Input,
			bootstrap: hp.Bootstrap,
			steps:     hp.Steps,
		})
	}
	return p, nil
}

// Phase is one phase block. It implements mrflow.PhaseDefinition.
type Phase struct {
	name      string
	input     hcl.Expression
	bootstrap []*hclNamed
	steps     []*hclNamed
}

func (p *Phase) Name() string { return p.name }

// StepNames lists the phase's step names in order without evaluating them.
func (p *Phase) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

func evalContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{Variables: vars}
}

// Input evaluates the phase's input; null yields "".
func (p *Phase) Input(vars map[string]cty.Value) (string, error) {
	var in *string
	if diags := gohcl.DecodeExpression(p.input, evalContext(vars), &in); diags.HasErrors() {
		return "", fmt.Errorf("phase %q input: %w", p.name, diags)
	}
	if in == nil {
		return "", nil
	}
	return *in, nil
}

func (p *Phase) Protosteps(vars map[string]cty.Value) ([]mrflow.Protostep, error) {
	ctx := evalContext(vars)
	out := make([]mrflow.Protostep, 0, len(p.steps))
	for _, s := range p.steps {
		var h hclStep
		if diags := gohcl.DecodeBody(s.Body, ctx, &h); diags.HasErrors() {
			return nil, fmt.Errorf("step %q: %w", s.Name, diags)
		}
		ps, err := mrflow.NewProtostep(mrflow.ProtostepSpec{
			Name:               s.Name,
			Run:                h.Run,
			Inputs:             h.Inputs,
			Output:             h.Output,
			NoInputPrefix:      h.NoInputPrefix,
			NoOutputPrefix:     h.NoOutputPrefix,
			KeyFields:          h.KeyFields,
			PartitionerOptions: h.PartitionerOptions,
			ReducerMultiplier:  h.ReducerMultiplier,
			Archives:           h.Archives,
			MultipleOutputs:    h.MultipleOutputs,
			InputFormat:        h.InputFormat,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func (p *Phase) Bootstrap(vars map[string]cty.Value) ([]mrflow.BootstrapAction, error) {
	ctx := evalContext(vars)
	var out []mrflow.BootstrapAction
	for _, b := range p.bootstrap {
		var h hclBootstrap
		if diags := gohcl.DecodeBody(b.Body, ctx, &h); diags.HasErrors() {
			return nil, fmt.Errorf("bootstrap %q: %w", b.Name, diags)
		}
		out = append(out, mrflow.BootstrapAction{Name: b.Name, Path: h.Path, Args: h.Args})
	}
	return out, nil
}
