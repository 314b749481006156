package mrflow

import (
	"fmt"
	"io"
	"sort"

	"github.com/bitly/go-simplejson"
)

// params reads one JSON object. Values of the wrong type are accumulated as
// validation errors and leave the destination untouched.
type params struct {
	c       *Checker
	js      *simplejson.Json
	section string
	known   map[string]bool
}

func (p *params) get(key string) (*simplejson.Json, bool) {
	p.known[key] = true
	v, ok := p.js.CheckGet(key)
	if !ok || v.Interface() == nil {
		return nil, false
	}
	return v, true
}

func (p *params) name(key string) string {
	if p.section == "" {
		return key
	}
	return p.section + "." + key
}

func (p *params) String(key string, dst *string) {
	if v, ok := p.get(key); ok {
		s, err := v.String()
		if p.c.Checkf(err == nil, "Parameter %q must be a string, but %v was entered.", p.name(key), v.Interface()) {
			*dst = s
		}
	}
}

func (p *params) Int(key string, dst *int) {
	if v, ok := p.get(key); ok {
		n, err := v.Int()
		if p.c.Checkf(err == nil, "Parameter %q must be an integer, but %v was entered.", p.name(key), v.Interface()) {
			*dst = n
		}
	}
}

func (p *params) Float(key string, dst *float64) {
	if v, ok := p.get(key); ok {
		f, err := v.Float64()
		if p.c.Checkf(err == nil, "Parameter %q must be a number, but %v was entered.", p.name(key), v.Interface()) {
			*dst = f
		}
	}
}

// FloatPtr leaves dst nil when the key is absent or null.
func (p *params) FloatPtr(key string, dst **float64) {
	if v, ok := p.get(key); ok {
		f, err := v.Float64()
		if p.c.Checkf(err == nil, "Parameter %q must be a number, but %v was entered.", p.name(key), v.Interface()) {
			*dst = &f
		}
	}
}

func (p *params) Bool(key string, dst *bool) {
	if v, ok := p.get(key); ok {
		b, err := v.Bool()
		if p.c.Checkf(err == nil, "Parameter %q must be true or false, but %v was entered.", p.name(key), v.Interface()) {
			*dst = b
		}
	}
}

func (p *params) Strings(key string, dst *[]string) {
	if v, ok := p.get(key); ok {
		a, err := v.StringArray()
		if p.c.Checkf(err == nil, "Parameter %q must be a list of strings, but %v was entered.", p.name(key), v.Interface()) {
			*dst = a
		}
	}
}

// Section returns the nested object key; ok is false when it's absent.
func (p *params) Section(key string) (*params, bool) {
	v, ok := p.get(key)
	if !ok {
		return nil, false
	}
	if _, err := v.Map(); !p.c.Checkf(err == nil, "Parameter %q must be an object.", p.name(key)) {
		return nil, false
	}
	return &params{c: p.c, js: v, section: p.name(key), known: make(map[string]bool)}, true
}

// Done reports every key that was never read.
func (p *params) Done() {
	m, err := p.js.Map()
	if err != nil {
		return
	}
	var unknown []string
	for k := range m {
		if !p.known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		p.c.Checkf(false, "Unknown parameter %q.", p.name(k))
	}
}

func (p *params) instanceGroup(key string, g *InstanceGroup) {
	s, ok := p.Section(key)
	if !ok {
		return
	}
	s.String("type", &g.Type)
	s.Int("count", &g.Count)
	s.FloatPtr("bid_price", &g.BidPrice)
	s.Done()
}

// DecodeParams overlays a JSON params file onto o. A malformed document is
// returned as an error; values of the wrong type are accumulated in c so
// that the report covers them along with every other check.
func DecodeParams(r io.Reader, o *Options, c *Checker) error {
	js, err := simplejson.NewFromReader(r)
	if err != nil {
		return fmt.Errorf("parsing params: %w", err)
	}
	if _, err := js.Map(); err != nil {
		return fmt.Errorf("params must be a JSON object")
	}
	p := &params{c: c, js: js, known: make(map[string]bool)}
	p.String("manifest", &o.Manifest)
	p.String("output", &o.Output)
	p.String("intermediate", &o.Intermediate)
	p.Bool("force", &o.Force)
	p.Bool("verbose", &o.Verbose)
	p.String("aws_exe", &o.AWSExe)
	p.String("aws_profile", &o.AWSProfile)
	p.String("region", &o.Region)
	p.String("curl_exe", &o.CurlExe)
	p.String("google_credentials", &o.GoogleCredentials)
	p.Strings("only", &o.Phases.Only)
	p.String("start_at", &o.Phases.StartAt)
	p.String("stop_after", &o.Phases.StopAfter)

	if s, ok := p.Section("local"); ok {
		l := &o.Local
		s.Int("num_processes", &l.NumProcesses)
		s.String("interpreter", &l.Interpreter)
		s.String("step_dir", &l.StepDir)
		s.Bool("keep_intermediates", &l.KeepIntermediates)
		s.Done()
	}
	if s, ok := p.Section("cluster"); ok {
		cl := &o.Cluster
		s.String("name", &cl.Name)
		s.String("log_uri", &cl.LogURI)
		s.String("ami_version", &cl.AMIVersion)
		s.String("hadoop_version", &cl.HadoopVersion)
		s.Bool("visible_to_all_users", &cl.VisibleToAllUsers)
		s.Strings("tags", &cl.Tags)
		s.String("action_on_failure", &cl.ActionOnFailure)
		s.String("hadoop_jar", &cl.HadoopJar)
		s.instanceGroup("master", &cl.Master)
		s.instanceGroup("core", &cl.Core)
		s.instanceGroup("task", &cl.Task)
		s.String("ec2_key_name", &cl.EC2KeyName)
		s.Bool("keep_alive", &cl.KeepAlive)
		s.Bool("termination_protected", &cl.TerminationProtected)
		s.Done()
	}
	if s, ok := p.Section("preprocess"); ok {
		s.Int("nucleotides_per_input", &o.Preprocess.NucleotidesPerInput)
		s.Bool("gzip_output", &o.Preprocess.GzipOutput)
		s.Done()
	}
	if s, ok := p.Section("align"); ok {
		a := &o.Align
		s.String("input_dir", &a.InputDir)
		s.String("bowtie1_exe", &a.Bowtie1Exe)
		s.String("bowtie1_build_exe", &a.Bowtie1BuildExe)
		s.String("bowtie1_idx", &a.Bowtie1Index)
		s.String("bowtie2_exe", &a.Bowtie2Exe)
		s.String("bowtie2_build_exe", &a.Bowtie2BuildExe)
		s.String("bowtie2_idx", &a.Bowtie2Index)
		s.String("bowtie2_args", &a.Bowtie2Args)
		s.String("samtools_exe", &a.SamtoolsExe)
		s.String("bedtobigbed_exe", &a.BedToBigBedExe)
		s.String("assembly", &a.Assembly)
		s.Int("genome_partition_length", &a.GenomePartitionLength)
		s.Int("min_readlet_size", &a.MinReadletSize)
		s.Int("max_readlet_size", &a.MaxReadletSize)
		s.Int("readlet_interval", &a.ReadletInterval)
		s.Float("cap_size_multiplier", &a.CapSizeMultiplier)
		s.Int("min_intron_size", &a.MinIntronSize)
		s.Int("max_intron_size", &a.MaxIntronSize)
		s.Int("min_exon_size", &a.MinExonSize)
		s.Int("motif_search_window_size", &a.MotifSearchWindowSize)
		s.Int("motif_radius", &a.MotifRadius)
		s.Float("normalize_percentile", &a.NormalizePercentile)
		s.Bool("do_not_output_bam_by_chr", &a.DoNotOutputBAMByChr)
		s.Bool("output_sam", &a.OutputSAM)
		s.String("bam_basename", &a.BAMBasename)
		s.String("bed_basename", &a.BEDBasename)
		s.Done()
	}
	p.Done()
	return nil
}
