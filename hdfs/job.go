package hdfs

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

const KeyFieldPartitioner = "org.apache.hadoop.mapred.lib.KeyFieldBasedPartitioner"

// Job is a single Hadoop Streaming invocation
// https://hadoop.apache.org/docs/r2.9.0/hadoop-streaming/HadoopStreaming.html
type Job struct {
	Name         string
	Input        []string
	Output       string
	Mapper       string
	Reducer      string
	Combiner     string
	Options      []string // generic options, e.g. "-D", "k=v"
	ReducerTasks int

	// KeyFields > 0 enables the KeyFieldBasedPartitioner with PartitionerOptions
	KeyFields          int
	PartitionerOptions string

	LibJars      []string // -libjars
	CacheFiles   []string // -files
	Archives     []string // -archives
	InputFormat  string
	OutputFormat string
}

// JarArgs returns the streaming jar arguments for j. Generic options (-D,
// -libjars, -files, -archives) precede the command options as streaming
// requires.
func (j Job) JarArgs() []string {
	var args []string
	if j.Name != "" {
		args = append(args, "-D", fmt.Sprintf("mapred.job.name=%s", j.Name))
	}
	args = append(args, "-D", fmt.Sprintf("mapred.reduce.tasks=%d", j.ReducerTasks))
	if j.KeyFields > 0 {
		args = append(args,
			"-D", fmt.Sprintf("mapred.text.key.partitioner.options=-%s", j.PartitionerOptions),
			"-D", fmt.Sprintf("stream.num.map.output.key.fields=%d", j.KeyFields),
		)
	}
	args = append(args, j.Options...)
	if len(j.LibJars) > 0 {
		args = append(args, "-libjars", strings.Join(j.LibJars, ","))
	}
	if len(j.CacheFiles) > 0 {
		args = append(args, "-files", strings.Join(j.CacheFiles, ","))
	}
	if len(j.Archives) > 0 {
		args = append(args, "-archives", strings.Join(j.Archives, ","))
	}

	if j.KeyFields > 0 {
		args = append(args, "-partitioner", KeyFieldPartitioner)
	}
	for _, f := range j.Input {
		args = append(args, "-input", strings.TrimSpace(f))
	}
	args = append(args, "-output", j.Output)
	args = append(args, "-mapper", j.Mapper)
	if j.Combiner != "" {
		args = append(args, "-combiner", j.Combiner)
	}
	args = append(args, "-reducer", j.Reducer)
	if j.OutputFormat != "" {
		args = append(args, "-outputformat", j.OutputFormat)
	}
	if j.InputFormat != "" {
		args = append(args, "-inputformat", j.InputFormat)
	}
	return args
}

// SubmitJob runs `hadoop jar` with args and waits for it to finish. An empty
// jar selects the streaming jar found under $HADOOP_HOME.
func SubmitJob(ctx context.Context, jar string, args []string) error {
	if jar == "" {
		var err error
		if jar, err = StreamingJar(); err != nil {
			log.Printf("failed finding streaming jar %s", err)
			return err
		}
	}
	bin, err := BinPath("hadoop")
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, append([]string{"jar", jar}, args...)...)
	log.Print(cmd.Args)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
