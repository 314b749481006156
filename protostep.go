package mrflow

import (
	"fmt"
	"math"
)

// DefectError reports a pipeline definition that violates its own shape. It
// is a programming error in the definition, never a user-facing validation
// error, and aborts compilation unconditionally.
type DefectError struct {
	Step   string
	Reason string
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("invalid pipeline step %q: %s", e.Step, e.Reason)
}

// Partition is the key-field partitioning and sort discipline for a reducer.
type Partition struct {
	KeyFields int    // stream.num.map.output.key.fields
	Options   string // KeyFieldBasedPartitioner options, e.g. "k1,2"
}

// Reduce is the reduce shape of a stage: MapOnly, KeyedReduce or SingleReduce.
type Reduce interface {
	ReducerTasks(base int) int
	Partitioner() *Partition
}

// MapOnly stages have no reduce phase.
type MapOnly struct{}

func (MapOnly) ReducerTasks(int) int     { return 0 }
func (MapOnly) Partitioner() *Partition { return nil }

// KeyedReduce stages run Multiplier reducers per unit of cluster parallelism.
// The count is base*Multiplier rounded to the nearest integer, but never less
// than one: a keyed stage always has a reducer.
type KeyedReduce struct {
	Multiplier float64
	Partition  Partition
}

func (r KeyedReduce) ReducerTasks(base int) int {
	n := int(math.Round(float64(base) * r.Multiplier))
	if n < 1 {
		return 1
	}
	return n
}

func (r KeyedReduce) Partitioner() *Partition {
	p := r.Partition
	return &p
}

// SingleReduce stages are forced to exactly one reducer, typically to impose
// a total order or compute a global aggregate.
type SingleReduce struct {
	Partition *Partition
}

func (SingleReduce) ReducerTasks(int) int { return 1 }

func (r SingleReduce) Partitioner() *Partition {
	if r.Partition == nil {
		return nil
	}
	p := *r.Partition
	return &p
}

// Protostep is an abstract pipeline stage before directory and parallelism
// resolution. Build one with NewProtostep.
type Protostep struct {
	Name            string
	Run             string // opaque command template
	Inputs          []string
	Output          string
	NoInputPrefix   bool
	NoOutputPrefix  bool
	Archives        string
	MultipleOutputs bool
	InputFormat     string
	Reduce          Reduce
}

// ProtostepSpec is the loosely typed form of a stage as written in a
// pipeline definition. A nil ReducerMultiplier forces a single reducer.
type ProtostepSpec struct {
	Name               string
	Run                string
	Inputs             []string
	Output             string
	NoInputPrefix      bool
	NoOutputPrefix     bool
	KeyFields          *int
	PartitionerOptions *string
	ReducerMultiplier  *float64
	Archives           string
	MultipleOutputs    bool
	InputFormat        string
}

// NewProtostep validates the shape of s and returns the matching variant.
func NewProtostep(s ProtostepSpec) (Protostep, error) {
	defect := func(format string, a ...interface{}) (Protostep, error) {
		return Protostep{}, &DefectError{Step: s.Name, Reason: fmt.Sprintf(format, a...)}
	}
	switch {
	case s.Name == "":
		return defect("missing name")
	case s.Run == "":
		return defect("missing command")
	case len(s.Inputs) == 0:
		return defect("no inputs")
	case s.Output == "":
		return defect("missing output")
	}
	for i, in := range s.Inputs {
		if in == "" {
			return defect("input %d is empty", i)
		}
	}
	if (s.KeyFields == nil) != (s.PartitionerOptions == nil) {
		return defect("key fields and partitioner options must be given together")
	}
	var part *Partition
	if s.KeyFields != nil {
		if *s.KeyFields < 1 {
			return defect("key fields must be >= 1, got %d", *s.KeyFields)
		}
		if *s.PartitionerOptions == "" {
			return defect("empty partitioner options")
		}
		part = &Partition{KeyFields: *s.KeyFields, Options: *s.PartitionerOptions}
	}

	p := Protostep{
		Name:            s.Name,
		Run:             s.Run,
		Inputs:          append([]string(nil), s.Inputs...),
		Output:          s.Output,
		NoInputPrefix:   s.NoInputPrefix,
		NoOutputPrefix:  s.NoOutputPrefix,
		Archives:        s.Archives,
		MultipleOutputs: s.MultipleOutputs,
		InputFormat:     s.InputFormat,
	}
	m := s.ReducerMultiplier
	switch {
	case m == nil:
		p.Reduce = SingleReduce{Partition: part}
	case math.IsNaN(*m) || math.IsInf(*m, 0) || *m < 0:
		return defect("reducer multiplier must be a non-negative number, got %v", *m)
	case *m == 0:
		if part != nil {
			return defect("map-only step declares a partitioner")
		}
		p.Reduce = MapOnly{}
	default:
		if part == nil {
			return defect("keyed reducer requires key fields and partitioner options")
		}
		p.Reduce = KeyedReduce{Multiplier: *m, Partition: *part}
	}
	return p, nil
}
