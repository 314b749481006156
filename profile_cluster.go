package mrflow

import (
	"context"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultClusterIntermediate = "hdfs:///intermediate"
	ClusterStepDir             = "/mnt/src/rna/steps"
	ClusterManifest            = "/mnt/MANIFEST"

	debuggingJar    = "s3://us-east-1.elasticmapreduce/libs/script-runner/script-runner.jar"
	debuggingScript = "s3://us-east-1.elasticmapreduce/libs/state-pusher/0.1/fetch"
)

// ActionsOnFailure are the accepted per-step failure policies.
var ActionsOnFailure = []string{"TERMINATE_JOB_FLOW", "TERMINATE_CLUSTER", "CANCEL_AND_WAIT", "CONTINUE"}

// Cluster runs steps as Hadoop Streaming jobs on a provisioned cluster whose
// durable input and output live on object storage.
type Cluster struct{}

func (Cluster) Name() string      { return "cluster" }
func (Cluster) Distributed() bool { return true }

func (Cluster) Join(root string, elem ...string) string { return JoinURL(root, elem...) }

func (Cluster) Check(ctx context.Context, c *Checker, o *Options, loc Locator) error {
	// submitting a flow needs a working client for the output's storage
	kind := AWSCLI
	if Location(o.Output).IsGS() {
		kind = GoogleCredentials
	}
	if _, err := c.Capability(ctx, loc, kind, o.entered(kind), "running in cluster mode"); err != nil {
		return err
	}

	cl := &o.Cluster
	if cl.LogURI != "" {
		c.Checkf(Location(cl.LogURI).IsS3(), "Log URI (\"--log-uri\") must be on S3, but %q was entered.", cl.LogURI)
	}
	for i, t := range cl.Tags {
		cl.Tags[i] = strings.TrimSpace(t)
	}

	if o.Intermediate == "" {
		o.Intermediate = DefaultClusterIntermediate
	}
	c.Checkf(!Location(o.Intermediate).IsLocal(), "Intermediate directory must be on HDFS or object storage when running in cluster mode, but %s was entered.",
		o.Intermediate)

	out := Location(o.Output)
	if c.Checkf(out.IsObjectStore(), "Output directory must be on S3 or Google Storage when running in cluster mode, but %s was entered.",
		o.Output) {
		if err := checkOutputFree(ctx, c, o, loc, "the output directory is on "+out.Where()); err != nil {
			return err
		}
	}
	if o.Manifest != "" {
		c.Checkf(!Location(o.Manifest).IsLocal(), "Manifest file (\"--manifest\") must be on object storage or the web when running in cluster mode, but %s was entered.",
			o.Manifest)
	}

	c.Checkf(slices.Contains(ActionsOnFailure, cl.ActionOnFailure), "Action on failure (\"--action-on-failure\") must be one of %s, but %q was entered.",
		quoted(ActionsOnFailure), cl.ActionOnFailure)
	c.Checkf(cl.HadoopJar != "", "Hadoop Streaming jar (\"--hadoop-jar\") must be specified.")
	cl.Topology().Check(c)

	c.SetString("manifest_path", ClusterManifest)
	keepAlive := ""
	if cl.KeepAlive {
		keepAlive = "--keep-alive"
	}
	c.SetString("keep_alive", keepAlive)
	return nil
}

// ReducerCountBase is derived from the topology; see Topology.ReducerCountBase.
func (Cluster) ReducerCountBase(o *Options) int {
	return o.Cluster.Topology().ReducerCountBase()
}

func (Cluster) Command(o *Options, run string) string {
	script, args := splitRun(run)
	return strings.TrimSpace("pypy " + JoinURL(ClusterStepDir, script) + " " + args)
}

func (Cluster) Decorate(f *JobFlow, o *Options) {
	cl := o.Cluster
	t := cl.Topology()
	f.Topology = &t
	f.Hooks = append(f.Hooks, Step{
		Name:            "Set up Hadoop Debugging",
		ActionOnFailure: cl.ActionOnFailure,
		Jar:             debuggingJar,
		Args:            []string{debuggingScript},
	})
	f.Bootstrap = append(f.Bootstrap,
		BootstrapAction{
			Name: "Allocate swap space",
			Path: "s3://elasticmapreduce/bootstrap-actions/add-swap",
			Args: []string{strconv.Itoa(t.SwapAllocation())},
		},
		BootstrapAction{
			Name: "Configure Hadoop",
			Path: "s3://elasticmapreduce/bootstrap-actions/configure-hadoop",
			Args: []string{
				"-s", "mapred.job.reuse.jvm.num.tasks=1",
				"-s", "mapred.tasktracker.reduce.tasks.maximum=8",
				"-s", "mapred.tasktracker.map.tasks.maximum=8",
				"-m", "mapred.map.tasks.speculative.execution=false",
				"-m", "mapred.reduce.tasks.speculative.execution=false",
			},
		},
	)
	f.LogURI = cl.LogURI
	if f.LogURI == "" {
		f.LogURI = JoinURL(o.Output, "logs")
	}
	f.Name = cl.Name
	f.AMIVersion = cl.AMIVersion
	f.HadoopVersion = cl.HadoopVersion
	f.VisibleToAllUsers = cl.VisibleToAllUsers
	f.Tags = cl.Tags
	f.KeepAlive = cl.KeepAlive
	f.TerminationProtected = cl.TerminationProtected
	f.EC2KeyName = cl.EC2KeyName
}

func quoted(set []string) string {
	q := make([]string, len(set))
	for i, s := range set {
		q[i] = strconv.Quote(s)
	}
	return "{" + strings.Join(q, ", ") + "}"
}
