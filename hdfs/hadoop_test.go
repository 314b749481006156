package hdfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
)

func TestFindStreamingJar(t *testing.T) {
	home := t.TempDir()
	lib := filepath.Join(home, "share", "hadoop", "tools", "lib")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"hadoop-common-2.9.0.jar", "hadoop-streaming-2.9.0.jar"} {
		if err := os.WriteFile(filepath.Join(lib, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	jar, err := findStreamingJar(home)
	assert.Equal(t, err, nil)
	assert.Equal(t, jar, filepath.Join(lib, "hadoop-streaming-2.9.0.jar"))

	_, err = findStreamingJar(t.TempDir())
	assert.NotEqual(t, err, nil)
	_, err = findStreamingJar("")
	assert.Equal(t, err, ErrNoHadoopHome)
}

func TestSubmitJob(t *testing.T) {
	home := t.TempDir()
	if err := os.Mkdir(filepath.Join(home, "bin"), 0755); err != nil {
		t.Fatal(err)
	}
	record := filepath.Join(home, "args")
	script := "#!/bin/sh\necho \"$@\" > " + record + "\n"
	if err := os.WriteFile(filepath.Join(home, "bin", "hadoop"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HADOOP_HOME", home)

	j := Job{Name: "Sum", Input: []string{"in"}, Output: "out", Mapper: "cat", Reducer: "sum.py", ReducerTasks: 2}
	err := SubmitJob(context.Background(), "/opt/streaming.jar", j.JarArgs())
	assert.Equal(t, err, nil)
	got, err := os.ReadFile(record)
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.TrimSpace(string(got)), "jar /opt/streaming.jar "+strings.Join(j.JarArgs(), " "))
}
