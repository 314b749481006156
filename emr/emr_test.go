package emr

import (
	"testing"

	"github.com/bitly/go-simplejson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jehiah/mrflow"
)

func testFlow() *mrflow.JobFlow {
	bid := 0.1
	topo := mrflow.NewTopology(
		mrflow.InstanceGroup{Type: "c1.xlarge", Count: 1},
		mrflow.InstanceGroup{Count: 0},
		mrflow.InstanceGroup{Type: "m1.xlarge", Count: 4, BidPrice: &bid},
	)
	return &mrflow.JobFlow{
		ID:   "5f0c",
		Name: "rna job flow",
		Steps: []mrflow.Step{{
			Name:            "Sum",
			Inputs:          []string{"s3://bucket/in"},
			Output:          "s3://bucket/out",
			Mapper:          "cat",
			Reducer:         "pypy /mnt/src/rna/steps/sum.py",
			ReducerTasks:    16,
			Partition:       &mrflow.Partition{KeyFields: 1, Options: "k1,1"},
			ActionOnFailure: "TERMINATE_JOB_FLOW",
			Jar:             "/home/hadoop/contrib/streaming/hadoop-streaming-1.0.3.jar",
		}},
		Hooks: []mrflow.Step{{
			Name:            "Set up Hadoop Debugging",
			ActionOnFailure: "TERMINATE_JOB_FLOW",
			Jar:             "s3://us-east-1.elasticmapreduce/libs/script-runner/script-runner.jar",
			Args:            []string{"s3://us-east-1.elasticmapreduce/libs/state-pusher/0.1/fetch"},
		}},
		Bootstrap: []mrflow.BootstrapAction{
			{Name: "Install PyPy", Path: "s3://rail-emr/bootstrap/install-pypy.sh"},
			{Name: "Allocate swap space", Path: "s3://elasticmapreduce/bootstrap-actions/add-swap", Args: []string{"8192"}},
		},
		Topology:          &topo,
		LogURI:            "s3://bucket/out/logs",
		AMIVersion:        "2.4.2",
		HadoopVersion:     "1.0.3",
		VisibleToAllUsers: true,
		Tags:              []string{"rna", ""},
		KeepAlive:         true,
	}
}

func TestMarshal(t *testing.T) {
	body, err := Marshal(testFlow())
	require.NoError(t, err)
	js, err := simplejson.NewJson(body)
	require.NoError(t, err)

	assert.Equal(t, "rna job flow", js.Get("Name").MustString())
	assert.Equal(t, "s3://bucket/out/logs", js.Get("LogUri").MustString())
	assert.Equal(t, "2.4.2", js.Get("AmiVersion").MustString())
	assert.True(t, js.Get("VisibleToAllUsers").MustBool())
	tags := js.Get("Tags").MustArray()
	require.Len(t, tags, 1)
	assert.Equal(t, "rna", js.Get("Tags").GetIndex(0).Get("Key").MustString())

	steps := js.Get("Steps")
	require.Len(t, steps.MustArray(), 2)
	assert.Equal(t, "Set up Hadoop Debugging", steps.GetIndex(0).Get("Name").MustString())
	assert.Equal(t, []string{"s3://us-east-1.elasticmapreduce/libs/state-pusher/0.1/fetch"},
		steps.GetIndex(0).Get("HadoopJarStep").Get("Args").MustStringArray())
	sum := steps.GetIndex(1)
	assert.Equal(t, "TERMINATE_JOB_FLOW", sum.Get("ActionOnFailure").MustString())
	assert.Equal(t, "/home/hadoop/contrib/streaming/hadoop-streaming-1.0.3.jar", sum.Get("HadoopJarStep").Get("Jar").MustString())
	args := sum.Get("HadoopJarStep").Get("Args").MustStringArray()
	assert.Equal(t, []string{"-D", "mapred.job.name=Sum", "-D", "mapred.reduce.tasks=16"}, args[:4])
	assert.Contains(t, args, "pypy /mnt/src/rna/steps/sum.py")

	actions := js.Get("BootstrapActions")
	require.Len(t, actions.MustArray(), 2)
	assert.Equal(t, []string{}, actions.GetIndex(0).Get("ScriptBootstrapAction").Get("Args").MustStringArray())
	assert.Equal(t, []string{"8192"}, actions.GetIndex(1).Get("ScriptBootstrapAction").Get("Args").MustStringArray())

	instances := js.Get("Instances")
	assert.Equal(t, "1.0.3", instances.Get("HadoopVersion").MustString())
	assert.True(t, instances.Get("KeepJobFlowAliveWhenNoSteps").MustBool())
	groups := instances.Get("InstanceGroups")
	require.Len(t, groups.MustArray(), 2, "empty core group is left out")
	master := groups.GetIndex(0)
	assert.Equal(t, "MASTER", master.Get("InstanceRole").MustString())
	assert.Equal(t, "ON_DEMAND", master.Get("Market").MustString())
	_, hasBid := master.CheckGet("BidPrice")
	assert.False(t, hasBid)
	task := groups.GetIndex(1)
	assert.Equal(t, "TASK", task.Get("InstanceRole").MustString())
	assert.Equal(t, "Task Instance Group", task.Get("Name").MustString())
	assert.Equal(t, "m1.xlarge", task.Get("InstanceType").MustString())
	assert.Equal(t, 4, task.Get("InstanceCount").MustInt())
	assert.Equal(t, "SPOT", task.Get("Market").MustString())
	assert.Equal(t, "0.100", task.Get("BidPrice").MustString())
}

func TestMarshalLocalFlow(t *testing.T) {
	_, err := Marshal(&mrflow.JobFlow{Name: "local", Profile: "local"})
	assert.Error(t, err)
}
