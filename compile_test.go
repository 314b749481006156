package mrflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// fakeLocator answers from maps. Executables live under /usr/bin unless
// registered elsewhere.
type fakeLocator struct {
	files    map[string]string
	dirs     map[string]bool
	exes     map[string]bool
	capErrs  map[Capability]error
	verified map[Capability]int
}

func newFakeLocator() *fakeLocator {
	return &fakeLocator{
		files:    make(map[string]string),
		dirs:     make(map[string]bool),
		exes:     make(map[string]bool),
		capErrs:  make(map[Capability]error),
		verified: make(map[Capability]int),
	}
}

func (f *fakeLocator) VerifyCapability(ctx context.Context, kind Capability, entered string) (string, error) {
	f.verified[kind]++
	if err := f.capErrs[kind]; err != nil {
		return "", err
	}
	if entered != "" {
		return entered, nil
	}
	return "/usr/bin/" + strings.ToLower(strings.Fields(string(kind))[0]), nil
}

func (f *fakeLocator) Exists(ctx context.Context, location string) bool {
	_, ok := f.files[location]
	return ok || f.dirs[location]
}

func (f *fakeLocator) IsDir(ctx context.Context, location string) bool { return f.dirs[location] }
func (f *fakeLocator) IsExecutable(p string) bool { return f.exes[p] }

func (f *fakeLocator) LookPath(exe string) (string, bool) {
	p := "/usr/bin/" + exe
	return p, f.exes[p]
}

func (f *fakeLocator) Fetch(ctx context.Context, location, dest string) error {
	data, ok := f.files[location]
	if !ok {
		return fmt.Errorf("%s not found", location)
	}
	return os.WriteFile(dest, []byte(data), 0644)
}

// testPhase is a phase whose stages are built from the phase's input and
// output; protosteps counts expansions.
type testPhase struct {
	name       string
	inputVar   string
	specs      func(in, out string) []ProtostepSpec
	bootstrap  []BootstrapAction
	protosteps *int
}

func (p testPhase) Name() string { return p.name }

func (p testPhase) Input(vars map[string]cty.Value) (string, error) {
	if p.inputVar == "" {
		return "", nil
	}
	v, ok := vars[p.inputVar]
	if !ok {
		return "", fmt.Errorf("unknown variable %q", p.inputVar)
	}
	return v.AsString(), nil
}

func (p testPhase) Protosteps(vars map[string]cty.Value) ([]Protostep, error) {
	if p.protosteps != nil {
		*p.protosteps++
	}
	var out []Protostep
	for _, s := range p.specs(vars["phase_input"].AsString(), vars["phase_output"].AsString()) {
		ps, err := NewProtostep(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func (p testPhase) Bootstrap(vars map[string]cty.Value) ([]BootstrapAction, error) {
	return p.bootstrap, nil
}

func intp(i int) *int { return &i }
func strp(s string) *string { return &s }
func floatp(f float64) *float64 { return &f }
func keyed(m float64) *float64 { return floatp(m) }
func mapOnly() *float64 { return floatp(0) }
func noReducerMultiplier() *float64 { return nil }

func testPhases(expansions *int) []PhaseDefinition {
	install := BootstrapAction{Name: "Install PyPy", Path: "s3://bucket/install-pypy.sh"}
	return []PhaseDefinition{
		testPhase{
			name:     "ingest",
			inputVar: "manifest",
			specs: func(in, out string) []ProtostepSpec {
				return []ProtostepSpec{{
					Name: "Ingest", Run: "ingest.py --push=" + out,
					Inputs: []string{in}, NoInputPrefix: true,
					Output: out, NoOutputPrefix: true,
					ReducerMultiplier: mapOnly(),
				}}
			},
			bootstrap:  []BootstrapAction{install},
			protosteps: expansions,
		},
		testPhase{
			name:     "count",
			inputVar: "manifest",
			specs: func(in, out string) []ProtostepSpec {
				return []ProtostepSpec{
					{
						Name: "Tally", Run: "tally.py --type 3",
						Inputs: []string{in}, NoInputPrefix: true,
						Output: "tally", KeyFields: intp(1), PartitionerOptions: strp("k1,1"),
						ReducerMultiplier: keyed(2),
					},
					{
						Name: "Collect", Run: "collect.py",
						Inputs: []string{"tally"},
						Output: out, NoOutputPrefix: true,
						KeyFields: intp(2), PartitionerOptions: strp("k1,2"),
						ReducerMultiplier: noReducerMultiplier(),
					},
				}
			},
			bootstrap:  []BootstrapAction{install, {Name: "Install tally", Path: "s3://bucket/install-tally.sh"}},
			protosteps: expansions,
		},
	}
}

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "manifest.tsv")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0644))
	return p
}

func localSetup(t *testing.T) (*Options, *fakeLocator) {
	loc := newFakeLocator()
	o := DefaultOptions()
	o.Manifest = writeManifest(t, "s3://bucket/a.fastq\t0\tsample-a\n")
	loc.files[o.Manifest] = ""
	o.Output = "/data/out"
	o.Intermediate = "/scratch/intermediate"
	o.Local.NumProcesses = 4
	o.Local.StepDir = "/src/steps"
	loc.dirs["/src/steps"] = true
	loc.exes["/usr/bin/python"] = true
	return o, loc
}

func TestCompileLocal(t *testing.T) {
	o, loc := localSetup(t)
	f, err := Compile(context.Background(), NewChecker(), o, testPhases(nil), Local{}, loc)
	require.NoError(t, err)

	transition := "/scratch/intermediate/ingest/push"
	expect := []Step{
		{
			Name:    "Ingest",
			Inputs:  []string{o.Manifest},
			Output:  transition,
			Mapper:  "/usr/bin/python /src/steps/ingest.py --push=" + transition,
			Reducer: "cat",
		},
		{
			Name:         "Tally",
			Inputs:       []string{transition},
			Output:       "/scratch/intermediate/tally",
			Mapper:       "cat",
			Reducer:      "/usr/bin/python /src/steps/tally.py --type 3",
			ReducerTasks: 8,
			Partition:    &Partition{KeyFields: 1, Options: "k1,1"},
		},
		{
			Name:         "Collect",
			Inputs:       []string{"/scratch/intermediate/tally"},
			Output:       "/data/out",
			Mapper:       "cat",
			Reducer:      "/usr/bin/python /src/steps/collect.py",
			ReducerTasks: 1,
			Partition:    &Partition{KeyFields: 2, Options: "k1,2"},
		},
	}
	if diff := cmp.Diff(expect, f.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "local", f.Profile)
	assert.NotEmpty(t, f.ID)
	assert.Nil(t, f.Bootstrap)
	assert.Nil(t, f.Topology)
	assert.Empty(t, f.Hooks)
}

func TestCompileCluster(t *testing.T) {
	loc := newFakeLocator()
	loc.files["s3://bucket/manifest"] = "s3://bucket/a_1.fastq\t0\ts3://bucket/a_2.fastq\t0\tsample-a\n"
	o := DefaultOptions()
	o.Manifest = "s3://bucket/manifest"
	o.Output = "s3://bucket/out"
	o.Cluster.Core.Count = 4
	o.Cluster.Tags = []string{" rna ", "test"}

	f, err := Compile(context.Background(), NewChecker(), o, testPhases(nil), Cluster{}, loc)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.verified[AWSCLI], "the AWS CLI is verified once")

	require.Len(t, f.Steps, 3)
	transition := "hdfs:///intermediate/ingest/push"
	assert.Equal(t, []string{"s3://bucket/manifest"}, f.Steps[0].Inputs)
	assert.Equal(t, transition, f.Steps[0].Output)
	assert.Equal(t, "pypy /mnt/src/rna/steps/ingest.py --push="+transition, f.Steps[0].Mapper)
	assert.Equal(t, []string{transition}, f.Steps[1].Inputs)
	assert.Equal(t, "hdfs:///intermediate/tally", f.Steps[1].Output)
	assert.Equal(t, 64, f.Steps[1].ReducerTasks)
	assert.Equal(t, "s3://bucket/out", f.Steps[2].Output)
	assert.Equal(t, 1, f.Steps[2].ReducerTasks)
	for _, s := range f.Steps {
		assert.Equal(t, "TERMINATE_JOB_FLOW", s.ActionOnFailure)
		assert.Equal(t, o.Cluster.HadoopJar, s.Jar)
	}

	require.NotNil(t, f.Topology)
	assert.Equal(t, "c1.xlarge", f.Topology.Core.Type)
	require.Len(t, f.Hooks, 1)
	assert.Equal(t, "Set up Hadoop Debugging", f.Hooks[0].Name)
	var names []string
	for _, b := range f.Bootstrap {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Install PyPy", "Install tally", "Allocate swap space", "Configure Hadoop"}, names)
	assert.Equal(t, []string{"8192"}, f.Bootstrap[2].Args)
	assert.Equal(t, "s3://bucket/out/logs", f.LogURI)
	assert.Equal(t, []string{"rna", "test"}, f.Tags)
}

func TestCompileInvalidTopologyStopsBeforeExpansion(t *testing.T) {
	loc := newFakeLocator()
	loc.files["s3://bucket/manifest"] = "s3://bucket/a.fastq\t0\tsample-a\n"
	o := DefaultOptions()
	o.Manifest = "s3://bucket/manifest"
	o.Output = "s3://bucket/out"
	o.Cluster.Master.Type = "x1.bogus"

	var expansions int
	f, err := Compile(context.Background(), NewChecker(), o, testPhases(&expansions), Cluster{}, loc)
	assert.Nil(t, f)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Contains(t, verr.Errors[0], `"x1.bogus"`)
	assert.Equal(t, 0, expansions)
}

func TestCompileReportsEveryProblem(t *testing.T) {
	o, loc := localSetup(t)
	o.Output = "http://example.com/out"
	o.Local.NumProcesses = -2
	o.Local.StepDir = "/missing"
	o.Phases.StartAt = "bogus"

	_, err := Compile(context.Background(), NewChecker(), o, testPhases(nil), Local{}, loc)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 4)
	assert.Contains(t, verr.Errors[0], `Phase "bogus"`)
	assert.Contains(t, verr.Errors[1], "must be local or on distributed storage")
	assert.Contains(t, verr.Errors[2], "Number of processes")
	assert.Contains(t, verr.Errors[3], "/missing")
}

func TestCompileMissingCapabilityIsHard(t *testing.T) {
	loc := newFakeLocator()
	loc.capErrs[AWSCLI] = errors.New("The AWS CLI executable was not found.")
	o := DefaultOptions()
	o.Manifest = "s3://bucket/manifest"
	o.Output = "s3://bucket/out"

	_, err := Compile(context.Background(), NewChecker(), o, testPhases(nil), Cluster{}, loc)
	var herr *HardError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, AWSCLI, herr.Capability)
	assert.Equal(t, []string{"The AWS CLI executable was not found."}, herr.Errors)
}

func TestCompileOutputInsideIntermediate(t *testing.T) {
	o, loc := localSetup(t)
	o.Output = "/scratch/intermediate/out"

	_, err := Compile(context.Background(), NewChecker(), o, testPhases(nil), Local{}, loc)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, len(verr.Errors))
	assert.Contains(t, verr.Errors[0], "must not contain one another")
}

func TestCompileResumeAtLaterPhase(t *testing.T) {
	o, loc := localSetup(t)
	o.Phases.StartAt = "count"

	f, err := Compile(context.Background(), NewChecker(), o, testPhases(nil), Local{}, loc)
	require.NoError(t, err)
	require.Len(t, f.Steps, 2)
	assert.Equal(t, []string{o.Manifest}, f.Steps[0].Inputs)
	assert.Equal(t, "/data/out", f.Steps[1].Output)
}
