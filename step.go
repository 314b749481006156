package mrflow

import (
	"github.com/jehiah/mrflow/hdfs"
)

const (
	// multiple outputs are written through a custom output format
	MultipleOutputsJar    = "/mnt/lib/multiplefiles.jar"
	MultipleOutputsFormat = "edu.jhu.cs.MultipleOutputFormat"
)

// Step is a concrete job step derived from one Protostep. It is not modified
// after expansion.
type Step struct {
	Name            string
	Inputs          []string
	Output          string
	Mapper          string
	Reducer         string
	ReducerTasks    int
	Partition       *Partition
	Archives        string
	MultipleOutputs bool
	InputFormat     string
	ActionOnFailure string
	Jar             string
	// Args are the jar arguments of a step that isn't a streaming job
	Args []string
}

// JarArgs returns the arguments the step's jar is invoked with.
func (s Step) JarArgs() []string {
	if s.Args != nil {
		return s.Args
	}
	j := s.StreamingJob()
	j.Name = s.Name
	return j.JarArgs()
}

// StreamingJob renders s as a Hadoop Streaming job.
func (s Step) StreamingJob() hdfs.Job {
	j := hdfs.Job{
		Input:        s.Inputs,
		Output:       s.Output,
		Mapper:       s.Mapper,
		Reducer:      s.Reducer,
		ReducerTasks: s.ReducerTasks,
		InputFormat:  s.InputFormat,
	}
	if s.Partition != nil {
		j.KeyFields = s.Partition.KeyFields
		j.PartitionerOptions = s.Partition.Options
	}
	if s.MultipleOutputs {
		j.LibJars = []string{MultipleOutputsJar}
		j.OutputFormat = MultipleOutputsFormat
	}
	if s.Archives != "" {
		j.Archives = []string{s.Archives}
	}
	return j
}

// ExpandOptions is the topology and profile context steps are expanded in.
type ExpandOptions struct {
	Namespace        Namespace
	ReducerCountBase int
	// Command turns a stage command template into an executable command line
	Command         func(run string) string
	ActionOnFailure string
	Jar             string
}

// Expand turns protosteps into concrete steps, one per protostep, in order.
func Expand(protosteps []Protostep, o ExpandOptions) ([]Step, error) {
	steps := make([]Step, 0, len(protosteps))
	for _, p := range protosteps {
		if p.Reduce == nil {
			return nil, &DefectError{Step: p.Name, Reason: "no reduce shape; build steps with NewProtostep"}
		}
		s := Step{
			Name:            p.Name,
			Output:          o.Namespace.Resolve(p.Output, p.NoOutputPrefix),
			ReducerTasks:    p.Reduce.ReducerTasks(o.ReducerCountBase),
			Partition:       p.Reduce.Partitioner(),
			Archives:        p.Archives,
			MultipleOutputs: p.MultipleOutputs,
			InputFormat:     p.InputFormat,
			ActionOnFailure: o.ActionOnFailure,
			Jar:             o.Jar,
		}
		for _, in := range p.Inputs {
			s.Inputs = append(s.Inputs, o.Namespace.Resolve(in, p.NoInputPrefix))
		}
		command := p.Run
		if o.Command != nil {
			command = o.Command(p.Run)
		}
		// a step with a sort discipline runs its command as the reducer
		if s.Partition == nil {
			s.Mapper, s.Reducer = command, "cat"
		} else {
			s.Mapper, s.Reducer = "cat", command
		}
		steps = append(steps, s)
	}
	return steps, nil
}
