package mrflow

import (
	"context"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// PhaseCheck validates the parameters of one phase and publishes the
// settings its stage templates reference.
type PhaseCheck func(ctx context.Context, c *Checker, o *Options, prof Profile, loc Locator) error

// PhaseChecks maps phase names to their parameter checks. Phases without an
// entry take no parameters.
var PhaseChecks = map[string]PhaseCheck{
	"preprocess": CheckPreprocess,
	"align":      CheckAlign,
}

// SelectPhases applies sel to the phases of a pipeline, preserving their
// order. Unknown phase names and an empty selection are accumulated.
func SelectPhases(c *Checker, phases []PhaseDefinition, sel Selection) []PhaseDefinition {
	index := make(map[string]int, len(phases))
	var names []string
	for i, p := range phases {
		index[p.Name()] = i
		names = append(names, p.Name())
	}
	valid := func(name, parameter string) bool {
		_, ok := index[name]
		return c.Checkf(ok, "Phase %q (%q) must be one of %s.", name, parameter, quoted(names))
	}

	if len(sel.Only) > 0 {
		var out []PhaseDefinition
		want := make(map[string]bool)
		for _, name := range sel.Only {
			if valid(name, "--only") {
				want[name] = true
			}
		}
		for _, p := range phases {
			if want[p.Name()] {
				out = append(out, p)
			}
		}
		return out
	}

	start, stop := 0, len(phases)-1
	if sel.StartAt != "" && valid(sel.StartAt, "--start-at") {
		start = index[sel.StartAt]
	}
	if sel.StopAfter != "" && valid(sel.StopAfter, "--stop-after") {
		stop = index[sel.StopAfter]
	}
	if !c.Checkf(start <= stop, "Phase %q (\"--start-at\") comes after phase %q (\"--stop-after\").", sel.StartAt, sel.StopAfter) {
		return nil
	}
	return phases[start : stop+1]
}

func CheckPreprocess(ctx context.Context, c *Checker, o *Options, prof Profile, loc Locator) error {
	p := o.Preprocess
	c.Checkf(p.NucleotidesPerInput > 0, "Nucleotides per input (\"--nucleotides-per-input\") must be an integer > 0, but %d was entered.",
		p.NucleotidesPerInput)
	c.Set("nucleotides_per_input", cty.NumberIntVal(int64(p.NucleotidesPerInput)))
	c.Set("gzip_output", cty.BoolVal(p.GzipOutput))
	return nil
}

var (
	bowtie1Extensions = []string{".1.ebwt", ".2.ebwt", ".3.ebwt", ".4.ebwt", ".rev.1.ebwt", ".rev.2.ebwt"}
	bowtie2Extensions = []string{".1.bt2", ".2.bt2", ".3.bt2", ".4.bt2", ".rev.1.bt2", ".rev.2.bt2"}
)

// CheckAlign checks alignment parameters. Locally the aligner tools and index
// files must be installed; on a cluster the index archive and input directory
// must be on S3 and the tools are installed by bootstrap actions.
func CheckAlign(ctx context.Context, c *Checker, o *Options, prof Profile, loc Locator) error {
	a := &o.Align
	if prof.Distributed() {
		if err := checkAlignCluster(ctx, c, o, loc); err != nil {
			return err
		}
	} else {
		checkAlignLocal(ctx, c, o, loc)
	}

	c.Checkf(a.GenomePartitionLength > 0, "Genome partition length (\"--genome-partition-length\") must be an integer > 0, but %d was entered.",
		a.GenomePartitionLength)
	c.Checkf(a.MinReadletSize > 0, "Minimum readlet size (\"--min-readlet-size\") must be an integer > 0, but %d was entered.",
		a.MinReadletSize)
	c.Checkf(a.MaxReadletSize >= a.MinReadletSize, "Maximum readlet size (\"--max-readlet-size\") must be an integer >= minimum readlet size (\"--min-readlet-size\") = %d, but %d was entered.",
		a.MinReadletSize, a.MaxReadletSize)
	c.Checkf(a.ReadletInterval > 0, "Readlet interval (\"--readlet-interval\") must be an integer > 0, but %d was entered.",
		a.ReadletInterval)
	c.Checkf(a.CapSizeMultiplier > 1, "Cap size multiplier (\"--cap-size-multiplier\") must be > 1, but %v was entered.",
		a.CapSizeMultiplier)
	c.Checkf(a.MinIntronSize > 0, "Minimum intron size (\"--min-intron-size\") must be an integer > 0, but %d was entered.",
		a.MinIntronSize)
	c.Checkf(a.MaxIntronSize >= a.MinIntronSize, "Maximum intron size (\"--max-intron-size\") must be an integer >= minimum intron size (\"--min-intron-size\") = %d, but %d was entered.",
		a.MinIntronSize, a.MaxIntronSize)
	c.Checkf(a.MinExonSize > 0, "Minimum exon size (\"--min-exon-size\") must be an integer > 0, but %d was entered.",
		a.MinExonSize)
	c.Checkf(a.MotifSearchWindowSize >= 0, "Motif search window size (\"--motif-search-window-size\") must be an integer >= 0, but %d was entered.",
		a.MotifSearchWindowSize)
	c.Checkf(a.MotifRadius >= 0, "Motif radius (\"--motif-radius\") must be an integer >= 0, but %d was entered.",
		a.MotifRadius)
	c.Checkf(a.NormalizePercentile >= 0 && a.NormalizePercentile <= 1, "Normalization percentile (\"--normalize-percentile\") must be on the interval [0, 1], but %v was entered.",
		a.NormalizePercentile)

	for name, v := range map[string]string{
		"input_dir":         a.InputDir,
		"bowtie1_exe":       a.Bowtie1Exe,
		"bowtie1_build_exe": a.Bowtie1BuildExe,
		"bowtie1_idx":       a.Bowtie1Index,
		"bowtie2_exe":       a.Bowtie2Exe,
		"bowtie2_build_exe": a.Bowtie2BuildExe,
		"bowtie2_idx":       a.Bowtie2Index,
		"bowtie2_args":      a.Bowtie2Args,
		"samtools_exe":      a.SamtoolsExe,
		"bedtobigbed_exe":   a.BedToBigBedExe,
		"assembly":          a.Assembly,
		"bam_basename":      a.BAMBasename,
		"bed_basename":      a.BEDBasename,
	} {
		c.SetString(name, v)
	}
	for name, v := range map[string]int{
		"genome_partition_length":  a.GenomePartitionLength,
		"min_readlet_size":         a.MinReadletSize,
		"max_readlet_size":         a.MaxReadletSize,
		"readlet_interval":         a.ReadletInterval,
		"min_intron_size":          a.MinIntronSize,
		"max_intron_size":          a.MaxIntronSize,
		"min_exon_size":            a.MinExonSize,
		"motif_search_window_size": a.MotifSearchWindowSize,
		"motif_radius":             a.MotifRadius,
	} {
		c.Set(name, cty.NumberIntVal(int64(v)))
	}
	c.Set("cap_size_multiplier", cty.NumberFloatVal(a.CapSizeMultiplier))
	c.Set("normalize_percentile", cty.NumberFloatVal(a.NormalizePercentile))
	c.Set("output_bam_by_chr", cty.BoolVal(!a.DoNotOutputBAMByChr))
	c.Set("output_sam", cty.BoolVal(a.OutputSAM))
	return nil
}

func checkAlignLocal(ctx context.Context, c *Checker, o *Options, loc Locator) {
	a := &o.Align
	a.Bowtie1Exe = c.Program(loc, "bowtie", "Bowtie 1", "--bowtie1-exe", a.Bowtie1Exe)
	a.Bowtie1BuildExe = c.Program(loc, "bowtie-build", "Bowtie 1 Build", "--bowtie1-build-exe", a.Bowtie1BuildExe)
	checkIndex(ctx, c, loc, "Bowtie 1", a.Bowtie1Index, bowtie1Extensions)
	a.Bowtie2Exe = c.Program(loc, "bowtie2", "Bowtie 2", "--bowtie2-exe", a.Bowtie2Exe)
	a.Bowtie2BuildExe = c.Program(loc, "bowtie2-build", "Bowtie 2 Build", "--bowtie2-build-exe", a.Bowtie2BuildExe)
	checkIndex(ctx, c, loc, "Bowtie 2", a.Bowtie2Index, bowtie2Extensions)
	a.SamtoolsExe = c.Program(loc, "samtools", "SAMTools", "--samtools-exe", a.SamtoolsExe)
	a.BedToBigBedExe = c.Program(loc, "bedToBigBed", "BedToBigBed", "--bedtobigbed-exe", a.BedToBigBedExe)
	if a.InputDir != "" {
		c.Checkf(loc.Exists(ctx, a.InputDir), "Input directory (\"--input-dir\") %q does not exist.", a.InputDir)
	}
}

func checkIndex(ctx context.Context, c *Checker, loc Locator, name, index string, extensions []string) {
	for _, ext := range extensions {
		file := index + ext
		if !c.Checkf(Location(file).IsLocal(), "%s index file %s must be on the local filesystem.", name, file) {
			continue
		}
		c.Checkf(loc.Exists(ctx, file), "%s index file %s does not exist.", name, file)
	}
}

func checkAlignCluster(ctx context.Context, c *Checker, o *Options, loc Locator) error {
	a := &o.Align
	if a.Assembly == "hg19" || a.Assembly == "" {
		a.Assembly = DefaultIndexArchive
	} else if c.Checkf(Location(a.Assembly).IsS3(), "Bowtie index archive must be on S3 in cluster mode, but %q was entered.", a.Assembly) {
		ok, err := reach(ctx, c, o, loc, Location(a.Assembly), "the Bowtie index archive is on S3")
		if err != nil {
			return err
		}
		if ok {
			c.Checkf(loc.Exists(ctx, a.Assembly), "Bowtie index archive was not found on S3 at %q.", a.Assembly)
		}
	}
	if a.InputDir != "" && c.Checkf(Location(a.InputDir).IsS3(), "Input directory must be on S3, but %q was entered.", a.InputDir) {
		ok, err := reach(ctx, c, o, loc, Location(a.InputDir), "the input directory is on S3")
		if err != nil {
			return err
		}
		if ok {
			c.Checkf(loc.IsDir(ctx, a.InputDir), "Input directory %q was not found on S3.", a.InputDir)
		}
	}

	// tools are installed on every node by bootstrap actions
	a.Bowtie1Index = "/mnt/index/genome"
	a.Bowtie2Index = "/mnt/index/genome"
	a.Bowtie1Exe = "bowtie"
	a.Bowtie1BuildExe = "bowtie-build"
	a.Bowtie2Exe = "bowtie2"
	a.Bowtie2BuildExe = "bowtie2-build"
	a.SamtoolsExe = "samtools"
	a.BedToBigBedExe = "/mnt/bin/bedToBigBed"
	return nil
}

// phaseNames lists the names of phases for messages.
func phaseNames(phases []PhaseDefinition) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.Name()
	}
	return strings.Join(names, ", ")
}
