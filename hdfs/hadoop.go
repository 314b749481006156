package hdfs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"sync"
)

var ErrNoHadoopHome = errors.New("env HADOOP_HOME not set")

func HasHadoop() bool {
	hadoopHome := os.Getenv("HADOOP_HOME")
	return hadoopHome != ""
}

// BinPath returns the path of a tool under $HADOOP_HOME/bin
func BinPath(tool string) (string, error) {
	hadoopHome := os.Getenv("HADOOP_HOME")
	if hadoopHome == "" {
		return "", ErrNoHadoopHome
	}
	return path.Join(hadoopHome, "bin", tool), nil
}

var streamingJarPattern = regexp.MustCompile(`^hadoop.*streaming.*\.jar$`)

var (
	streamingJarOnce sync.Once
	streamingJarPath string
	streamingJarErr  error
)

// StreamingJar finds the streaming jar under $HADOOP_HOME. The first match
// is remembered for the life of the process.
func StreamingJar() (string, error) {
	streamingJarOnce.Do(func() {
		streamingJarPath, streamingJarErr = findStreamingJar(os.Getenv("HADOOP_HOME"))
	})
	return streamingJarPath, streamingJarErr
}

var errFound = errors.New("found streaming jar")

func findStreamingJar(hadoopHome string) (string, error) {
	if hadoopHome == "" {
		return "", ErrNoHadoopHome
	}
	var jar string
	filepath.Walk(hadoopHome, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && streamingJarPattern.MatchString(path.Base(p)) {
			jar = p
			return errFound
		}
		return nil
	})
	if jar == "" {
		return "", fmt.Errorf("no streaming jar found under %s", hadoopHome)
	}
	return jar, nil
}

// http://hadoop.apache.org/docs/r0.20.2/hdfs_shell.html

func FsCmd(ctx context.Context, command string, args ...string) error {
	bin, err := BinPath("hadoop")
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, append([]string{"fs", command}, args...)...)
	log.Print(cmd.Args)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// http://hadoop.apache.org/docs/r1.1.1/file_system_shell.html#test
// flag is
// -e check to see if the file exists. Return 0 if true.
// -z check to see if the file is zero length. Return 0 if true.
// -d check to see if the path is directory. Return 0 if true.
func Test(ctx context.Context, flag string, remote string) error {
	return FsCmd(ctx, "-test", flag, remote)
}

// Get copies remote to a local path
func Get(ctx context.Context, remote, local string) error {
	return FsCmd(ctx, "-get", remote, local)
}

// Put copies a local file to remote
func Put(ctx context.Context, local, remote string) error {
	return FsCmd(ctx, "-put", local, remote)
}

// RMR recursively removes remote
func RMR(ctx context.Context, remote string) error {
	return FsCmd(ctx, "-rmr", remote)
}
