// Command mrflow compiles a pipeline into a job flow for a local or cluster
// profile and writes it as JSON, optionally submitting it to Dataproc or to
// the Hadoop installation under $HADOOP_HOME.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/jehiah/mrflow"
	"github.com/jehiah/mrflow/dataproc"
	"github.com/jehiah/mrflow/emr"
	"github.com/jehiah/mrflow/hdfs"
	"github.com/jehiah/mrflow/internal/gcloud"
	"github.com/jehiah/mrflow/pipeline"
	"github.com/jehiah/mrflow/remote"
)

var (
	profile      = flag.String("profile", "local", "execution profile: local or cluster")
	paramsFile   = flag.String("params", "", "JSON params file")
	pipelineFile = flag.String("pipeline", "", "HCL pipeline definition (default: built in preprocess+align pipeline)")
	format       = flag.String("format", "json", "output format: json (job flow) or emr (RunJobFlow request)")
	flowOut      = flag.String("o", "-", "where to write the job flow; a local path, s3://, gs:// or hdfs:// location, or - for stdout")
	manifest     = flag.String("manifest", "", "manifest file (overrides params)")
	output       = flag.String("output", "", "output directory (overrides params)")
	force        = flag.Bool("force", false, "permit overwriting the output directory")
	verbose      = flag.Bool("verbose", false, "pass --verbose to steps")

	submitDataproc = flag.Bool("submit-dataproc", false, "run the compiled steps on a Dataproc cluster")
	project        = flag.String("project", "", "Google Cloud project for -submit-dataproc")
	region         = flag.String("region", "us-central1", "Dataproc region for -submit-dataproc")
	cluster        = flag.String("cluster", "", "Dataproc cluster for -submit-dataproc")

	submitHadoop = flag.Bool("submit-hadoop", false, "run the compiled steps with the hadoop in $HADOOP_HOME")
	streamingJar = flag.String("streaming-jar", "", "streaming jar for -submit-hadoop (default: found under $HADOOP_HOME)")

	showVersion = flag.Bool("version", false, "print version string")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("mrflow v%s\n", mrflow.VERSION)
		return
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := run(ctx)
	if err == nil {
		return
	}
	var verr *mrflow.ValidationError
	var herr *mrflow.HardError
	switch {
	case errors.As(err, &verr), errors.As(err, &herr):
		fmt.Fprintf(os.Stderr, "Errors encountered:\n%s\n", err)
	default:
		log.Print(err)
	}
	os.Exit(1)
}

func loadPipeline() (*pipeline.Pipeline, error) {
	if *pipelineFile == "" {
		return pipeline.Default()
	}
	return pipeline.LoadFile(*pipelineFile)
}

func run(ctx context.Context) error {
	prof, ok := mrflow.ProfileByName(*profile)
	if !ok {
		return fmt.Errorf("unknown profile %q; use local or cluster", *profile)
	}
	if *format != "json" && *format != "emr" {
		return fmt.Errorf("unknown format %q; use json or emr", *format)
	}
	p, err := loadPipeline()
	if err != nil {
		return err
	}

	o := mrflow.DefaultOptions()
	c := mrflow.NewChecker()
	if *paramsFile != "" {
		f, err := os.Open(*paramsFile)
		if err != nil {
			return err
		}
		err = mrflow.DecodeParams(f, o, c)
		f.Close()
		if err != nil {
			return err
		}
	}
	if *manifest != "" {
		o.Manifest = *manifest
	}
	if *output != "" {
		o.Output = *output
	}
	o.Force = o.Force || *force
	o.Verbose = o.Verbose || *verbose

	loc := remote.New(o.AWSProfile, o.Region)
	flow, err := mrflow.Compile(ctx, c, o, p.Definitions(), prof, loc)
	if err != nil {
		return err
	}

	var body []byte
	switch *format {
	case "emr":
		body, err = emr.Marshal(flow)
	default:
		body, err = json.MarshalIndent(flow, "", "  ")
	}
	if err != nil {
		return err
	}
	if *flowOut == "-" {
		os.Stdout.Write(append(body, '\n'))
	} else {
		if err := loc.Put(ctx, *flowOut, bytes.NewReader(body)); err != nil {
			return fmt.Errorf("writing job flow to %s: %w", *flowOut, err)
		}
		log.Printf("wrote job flow %s to %s", flow.ID, *flowOut)
	}

	switch {
	case *submitDataproc:
		return submit(ctx, loc, o, flow)
	case *submitHadoop:
		return submitLocalHadoop(ctx, loc, o, flow)
	}
	return nil
}

func submitLocalHadoop(ctx context.Context, loc *remote.Client, o *mrflow.Options, flow *mrflow.JobFlow) error {
	if flow.Profile != "cluster" {
		return fmt.Errorf("-submit-hadoop requires -profile=cluster")
	}
	if !hdfs.HasHadoop() {
		return hdfs.ErrNoHadoopHome
	}
	if o.Force {
		if err := loc.RemoveAll(ctx, o.Output); err != nil {
			return fmt.Errorf("removing %s: %w", o.Output, err)
		}
	}
	if len(flow.Hooks) > 0 {
		log.Printf("skipping %d cluster hooks", len(flow.Hooks))
	}
	for i, s := range flow.Steps {
		log.Printf("submitting step %d %q", i, s.Name)
		if err := hdfs.SubmitJob(ctx, *streamingJar, s.JarArgs()); err != nil {
			if s.ActionOnFailure == "CONTINUE" {
				log.Printf("step %d %q failed (%s); continuing", i, s.Name, err)
				continue
			}
			return fmt.Errorf("failed running Step %d = %s", i, err)
		}
	}
	return nil
}

func submit(ctx context.Context, loc *remote.Client, o *mrflow.Options, flow *mrflow.JobFlow) error {
	if flow.Profile != "cluster" {
		return fmt.Errorf("-submit-dataproc requires -profile=cluster")
	}
	if *project == "" || *cluster == "" {
		return fmt.Errorf("-submit-dataproc requires -project and -cluster")
	}
	creds := gcloud.CredentialsPath(o.GoogleCredentials)
	if creds == "" {
		return fmt.Errorf("-submit-dataproc requires Google Cloud credentials (GOOGLE_APPLICATION_CREDENTIALS)")
	}
	client, err := gcloud.LoadFromServiceJSON(ctx, creds, gcloud.ScopeCloudPlatform)
	if err != nil {
		return err
	}
	// streaming jobs fail when their output exists
	if o.Force {
		if err := loc.RemoveAll(ctx, o.Output); err != nil {
			return fmt.Errorf("removing %s: %w", o.Output, err)
		}
	}
	d := &dataproc.Client{
		HTTP:    client,
		Project: *project,
		Region:  *region,
		Cluster: *cluster,
	}
	return d.SubmitFlow(ctx, flow)
}
