// Package emr renders a compiled job flow in the Elastic MapReduce
// RunJobFlow request format.
//
// https://docs.aws.amazon.com/emr/latest/APIReference/API_RunJobFlow.html
package emr

import (
	"encoding/json"
	"fmt"

	"github.com/jehiah/mrflow"
)

type HadoopJarStep struct {
	Jar  string   `json:"Jar"`
	Args []string `json:"Args"`
}

type StepConfig struct {
	Name            string        `json:"Name"`
	ActionOnFailure string        `json:"ActionOnFailure"`
	HadoopJarStep   HadoopJarStep `json:"HadoopJarStep"`
}

type ScriptBootstrapAction struct {
	Path string   `json:"Path"`
	Args []string `json:"Args"`
}

type BootstrapActionConfig struct {
	Name                  string                `json:"Name"`
	ScriptBootstrapAction ScriptBootstrapAction `json:"ScriptBootstrapAction"`
}

type InstanceGroupConfig struct {
	Name          string `json:"Name"`
	InstanceRole  string `json:"InstanceRole"`
	InstanceType  string `json:"InstanceType"`
	InstanceCount int    `json:"InstanceCount"`
	Market        string `json:"Market"`
	BidPrice      string `json:"BidPrice,omitempty"`
}

type Instances struct {
	HadoopVersion               string                `json:"HadoopVersion,omitempty"`
	InstanceGroups              []InstanceGroupConfig `json:"InstanceGroups"`
	KeepJobFlowAliveWhenNoSteps bool                  `json:"KeepJobFlowAliveWhenNoSteps"`
	TerminationProtected        bool                  `json:"TerminationProtected"`
	Ec2KeyName                  string                `json:"Ec2KeyName,omitempty"`
}

type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// RunJobFlow is the request body.
type RunJobFlow struct {
	Name              string                  `json:"Name"`
	LogUri            string                  `json:"LogUri,omitempty"`
	AmiVersion        string                  `json:"AmiVersion,omitempty"`
	VisibleToAllUsers bool                    `json:"VisibleToAllUsers"`
	Tags              []Tag                   `json:"Tags,omitempty"`
	Instances         Instances               `json:"Instances"`
	BootstrapActions  []BootstrapActionConfig `json:"BootstrapActions"`
	Steps             []StepConfig            `json:"Steps"`
}

func stepConfig(s mrflow.Step) StepConfig {
	return StepConfig{
		Name:            s.Name,
		ActionOnFailure: s.ActionOnFailure,
		HadoopJarStep:   HadoopJarStep{Jar: s.Jar, Args: s.JarArgs()},
	}
}

// NewRunJobFlow builds the request for a cluster flow. Hooks are run before
// the flow's steps.
func NewRunJobFlow(f *mrflow.JobFlow) (*RunJobFlow, error) {
	if f.Topology == nil {
		return nil, fmt.Errorf("job flow %q has no cluster topology; compile it with the cluster profile", f.Name)
	}
	r := &RunJobFlow{
		Name:              f.Name,
		LogUri:            f.LogURI,
		AmiVersion:        f.AMIVersion,
		VisibleToAllUsers: f.VisibleToAllUsers,
		Instances: Instances{
			HadoopVersion:               f.HadoopVersion,
			KeepJobFlowAliveWhenNoSteps: f.KeepAlive,
			TerminationProtected:        f.TerminationProtected,
			Ec2KeyName:                  f.EC2KeyName,
		},
		BootstrapActions: []BootstrapActionConfig{},
	}
	for _, t := range f.Tags {
		if t != "" {
			r.Tags = append(r.Tags, Tag{Key: t})
		}
	}
	for _, g := range f.Topology.Groups() {
		ig := InstanceGroupConfig{
			Name:          groupName(g.Role),
			InstanceRole:  string(g.Role),
			InstanceType:  g.Type,
			InstanceCount: g.Count,
			Market:        "ON_DEMAND",
		}
		if g.Spot() {
			ig.Market = "SPOT"
			ig.BidPrice = fmt.Sprintf("%0.03f", *g.BidPrice)
		}
		// EMR rejects empty groups other than the master
		if g.Role != mrflow.Master && g.Count == 0 {
			continue
		}
		r.Instances.InstanceGroups = append(r.Instances.InstanceGroups, ig)
	}
	for _, b := range f.Bootstrap {
		args := b.Args
		if args == nil {
			args = []string{}
		}
		r.BootstrapActions = append(r.BootstrapActions, BootstrapActionConfig{
			Name:                  b.Name,
			ScriptBootstrapAction: ScriptBootstrapAction{Path: b.Path, Args: args},
		})
	}
	for _, s := range f.Hooks {
		r.Steps = append(r.Steps, stepConfig(s))
	}
	for _, s := range f.Steps {
		r.Steps = append(r.Steps, stepConfig(s))
	}
	return r, nil
}

func groupName(r mrflow.Role) string {
	switch r {
	case mrflow.Master:
		return "Master Instance Group"
	case mrflow.Core:
		return "Core Instance Group"
	}
	return "Task Instance Group"
}

// Marshal returns the indented RunJobFlow JSON for f.
func Marshal(f *mrflow.JobFlow) ([]byte, error) {
	r, err := NewRunJobFlow(f)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(r, "", "  ")
}
