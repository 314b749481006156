package mrflow

// Selection picks which phases of a pipeline run. Only wins over StartAt and
// StopAfter; empty fields select everything.
type Selection struct {
	Only      []string
	StartAt   string
	StopAfter string
}

type LocalOptions struct {
	// 0 means one less than the number of CPUs
	NumProcesses      int
	Interpreter       string
	StepDir           string
	KeepIntermediates bool
}

type ClusterOptions struct {
	Name                 string
	LogURI               string
	AMIVersion           string
	HadoopVersion        string
	VisibleToAllUsers    bool
	Tags                 []string
	ActionOnFailure      string
	HadoopJar            string
	Master               InstanceGroup
	Core                 InstanceGroup
	Task                 InstanceGroup
	EC2KeyName           string
	KeepAlive            bool
	TerminationProtected bool
}

func (o ClusterOptions) Topology() Topology {
	return NewTopology(o.Master, o.Core, o.Task)
}

type PreprocessOptions struct {
	NucleotidesPerInput int
	GzipOutput          bool
}

type AlignOptions struct {
	InputDir string

	Bowtie1Exe      string
	Bowtie1BuildExe string
	Bowtie1Index    string
	Bowtie2Exe      string
	Bowtie2BuildExe string
	Bowtie2Index    string
	Bowtie2Args     string
	SamtoolsExe     string
	BedToBigBedExe  string
	Assembly        string

	GenomePartitionLength int
	MinReadletSize        int
	MaxReadletSize        int
	ReadletInterval       int
	CapSizeMultiplier     float64
	MinIntronSize         int
	MaxIntronSize         int
	MinExonSize           int
	MotifSearchWindowSize int
	MotifRadius           int
	NormalizePercentile   float64

	DoNotOutputBAMByChr bool
	OutputSAM           bool
	BAMBasename         string
	BEDBasename         string
}

// Options is the full set of compile parameters. Checks replace entered
// executables with resolved paths, so an Options value belongs to a single
// compilation.
type Options struct {
	Manifest     string
	Output       string
	Intermediate string // defaults per profile when empty
	Force        bool
	Verbose      bool

	AWSExe            string
	AWSProfile        string
	Region            string
	CurlExe           string
	GoogleCredentials string

	Phases Selection

	Local      LocalOptions
	Cluster    ClusterOptions
	Preprocess PreprocessOptions
	Align      AlignOptions
}

const DefaultIndexArchive = "s3://rail-emr/index/hg19_UCSC.tar.gz"

func DefaultOptions() *Options {
	return &Options{
		AWSProfile: "default",
		Region:     "us-east-1",
		Local: LocalOptions{
			NumProcesses: 1,
			Interpreter:  "python",
			StepDir:      "steps",
		},
		Cluster: ClusterOptions{
			Name:            "mrflow job flow",
			AMIVersion:      "2.4.2",
			HadoopVersion:   "1.0.3",
			ActionOnFailure: "TERMINATE_JOB_FLOW",
			HadoopJar:       "/home/hadoop/contrib/streaming/hadoop-streaming-1.0.3.jar",
			Master:          InstanceGroup{Type: "c1.xlarge", Count: 1},
			Core:            InstanceGroup{Count: 1},
		},
		Preprocess: PreprocessOptions{
			NucleotidesPerInput: 8000000,
			GzipOutput:          true,
		},
		Align: AlignOptions{
			Bowtie1Index:          "genome",
			Bowtie2Index:          "genome",
			Assembly:              "hg19",
			GenomePartitionLength: 5000,
			MinReadletSize:        15,
			MaxReadletSize:        25,
			ReadletInterval:       4,
			CapSizeMultiplier:     1.2,
			MinIntronSize:         10,
			MaxIntronSize:         500000,
			MinExonSize:           9,
			MotifSearchWindowSize: 1000,
			MotifRadius:           5,
			NormalizePercentile:   0.75,
			BAMBasename:           "alignments",
		},
	}
}

// entered returns the explicitly configured executable or credential for a
// capability.
func (o *Options) entered(kind Capability) string {
	switch kind {
	case AWSCLI:
		return o.AWSExe
	case Curl:
		return o.CurlExe
	case GoogleCredentials:
		return o.GoogleCredentials
	}
	return ""
}
