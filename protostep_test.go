package mrflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProtostepVariants(t *testing.T) {
	base := func() ProtostepSpec {
		return ProtostepSpec{Name: "Sum", Run: "sum.py", Inputs: []string{"in"}, Output: "out"}
	}

	s := base()
	s.ReducerMultiplier = floatp(0)
	p, err := NewProtostep(s)
	require.NoError(t, err)
	assert.Equal(t, MapOnly{}, p.Reduce)

	s = base()
	s.ReducerMultiplier = floatp(1.5)
	s.KeyFields, s.PartitionerOptions = intp(3), strp("k1,2")
	p, err = NewProtostep(s)
	require.NoError(t, err)
	assert.Equal(t, KeyedReduce{Multiplier: 1.5, Partition: Partition{KeyFields: 3, Options: "k1,2"}}, p.Reduce)

	s = base()
	s.KeyFields, s.PartitionerOptions = intp(1), strp("k1,1")
	p, err = NewProtostep(s)
	require.NoError(t, err)
	assert.Equal(t, SingleReduce{Partition: &Partition{KeyFields: 1, Options: "k1,1"}}, p.Reduce)

	s = base()
	p, err = NewProtostep(s)
	require.NoError(t, err)
	assert.Equal(t, SingleReduce{}, p.Reduce)
}

func TestNewProtostepDefects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ProtostepSpec)
	}{
		{"partitioner options without key fields", func(s *ProtostepSpec) { s.KeyFields = nil }},
		{"key fields without partitioner options", func(s *ProtostepSpec) { s.PartitionerOptions = nil }},
		{"single reducer with options only", func(s *ProtostepSpec) {
			s.ReducerMultiplier, s.KeyFields = nil, nil
		}},
		{"keyed without partitioner", func(s *ProtostepSpec) {
			s.KeyFields, s.PartitionerOptions = nil, nil
		}},
		{"map only with partitioner", func(s *ProtostepSpec) { s.ReducerMultiplier = floatp(0) }},
		{"negative multiplier", func(s *ProtostepSpec) { s.ReducerMultiplier = floatp(-1) }},
		{"NaN multiplier", func(s *ProtostepSpec) { s.ReducerMultiplier = floatp(math.NaN()) }},
		{"zero key fields", func(s *ProtostepSpec) { s.KeyFields = intp(0) }},
		{"empty partitioner options", func(s *ProtostepSpec) { s.PartitionerOptions = strp("") }},
		{"no inputs", func(s *ProtostepSpec) { s.Inputs = nil }},
		{"empty input", func(s *ProtostepSpec) { s.Inputs = []string{"a", ""} }},
		{"no output", func(s *ProtostepSpec) { s.Output = "" }},
		{"no command", func(s *ProtostepSpec) { s.Run = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := ProtostepSpec{
				Name: "Sum", Run: "sum.py", Inputs: []string{"in"}, Output: "out",
				KeyFields: intp(1), PartitionerOptions: strp("k1,1"), ReducerMultiplier: floatp(4),
			}
			tc.modify(&s)
			_, err := NewProtostep(s)
			var defect *DefectError
			require.ErrorAs(t, err, &defect)
			assert.Equal(t, "Sum", defect.Step)
		})
	}
}

func TestReducerTasks(t *testing.T) {
	tests := []struct {
		reduce Reduce
		base   int
		expect int
	}{
		{MapOnly{}, 32, 0},
		{SingleReduce{}, 32, 1},
		{KeyedReduce{Multiplier: 4}, 32, 128},
		{KeyedReduce{Multiplier: 0.5}, 5, 3},
		{KeyedReduce{Multiplier: 0.1}, 1, 1},
		{KeyedReduce{Multiplier: 8}, 0, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expect, tc.reduce.ReducerTasks(tc.base), "%#v with base %d", tc.reduce, tc.base)
	}
}
