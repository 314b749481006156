package mrflow

import (
	"sort"
	"strings"
)

// InstanceCores is the number of cores per node type. Update this table when
// node types are added; capacity is never inferred.
var InstanceCores = map[string]int{
	"m1.small":    1,
	"m1.large":    2,
	"m1.xlarge":   4,
	"c1.medium":   2,
	"c1.xlarge":   8,
	"m2.xlarge":   2,
	"m2.2xlarge":  4,
	"m2.4xlarge":  8,
	"cc1.4xlarge": 8,
}

// InstanceSwap is the swap allocation in MB per node type.
var InstanceSwap = map[string]int{
	"m1.small":    2 * 1024,  //  1.7 GB
	"m1.large":    8 * 1024,  //  7.5 GB
	"m1.xlarge":   16 * 1024, // 15.0 GB
	"c1.medium":   2 * 1024,  //  1.7 GB
	"c1.xlarge":   8 * 1024,  //  7.0 GB
	"m2.xlarge":   16 * 1024, // 17.1 GB
	"m2.2xlarge":  16 * 1024, // 34.2 GB
	"m2.4xlarge":  16 * 1024, // 68.4 GB
	"cc1.4xlarge": 16 * 1024, // 23.0 GB
}

type Role string

const (
	Master Role = "MASTER"
	Core   Role = "CORE"
	Task   Role = "TASK"
)

// InstanceGroup is the requested type, count and optional spot bid for one
// node role.
type InstanceGroup struct {
	Role     Role
	Type     string
	Count    int
	BidPrice *float64
}

func (g InstanceGroup) Spot() bool { return g.BidPrice != nil }

// Topology is the cluster shape. Core and task types default to the master
// type when empty.
type Topology struct {
	Master InstanceGroup
	Core   InstanceGroup
	Task   InstanceGroup
}

// NewTopology fills in roles and default types.
func NewTopology(master, core, task InstanceGroup) Topology {
	master.Role, core.Role, task.Role = Master, Core, Task
	if core.Type == "" {
		core.Type = master.Type
	}
	if task.Type == "" {
		task.Type = master.Type
	}
	return Topology{Master: master, Core: core, Task: task}
}

func (t Topology) Groups() []InstanceGroup {
	return []InstanceGroup{t.Master, t.Core, t.Task}
}

func instanceTypes() string {
	var types []string
	for k := range InstanceCores {
		types = append(types, `"`+k+`"`)
	}
	sort.Strings(types)
	return "{" + strings.Join(types, ", ") + "}"
}

var roleNames = map[Role]string{Master: "master", Core: "core", Task: "task"}
var roleTitles = map[Role]string{Master: "Master", Core: "Core", Task: "Task"}

// Check accumulates an error for every invalid type, count and bid price.
func (t Topology) Check(c *Checker) {
	for _, g := range t.Groups() {
		name := roleNames[g.Role]
		_, ok := InstanceCores[g.Type]
		// a type shared with the master was already reported once
		ok = ok || (g.Role != Master && g.Type == t.Master.Type)
		c.Checkf(ok, "%s instance type (\"--%s-instance-type\") must be one of %s, but %q was entered.",
			roleTitles[g.Role], name, instanceTypes(), g.Type)
		if g.BidPrice != nil {
			c.Checkf(*g.BidPrice > 0, "Spot instance bid price for %s nodes (\"--%s-instance-bid-price\") must be > 0, but %v was entered.",
				name, name, *g.BidPrice)
		}
	}
	c.Checkf(t.Master.Count >= 1, "Master instance count (\"--master-instance-count\") must be an integer >= 1, but %d was entered.",
		t.Master.Count)
	c.Checkf(t.Core.Count >= 0, "Core instance count (\"--core-instance-count\") must be an integer >= 0, but %d was entered.",
		t.Core.Count)
	c.Checkf(t.Task.Count >= 0, "Task instance count (\"--task-instance-count\") must be an integer >= 0, but %d was entered.",
		t.Task.Count)
}

// workers returns the group whose nodes run reduce tasks: task nodes when
// there are any, else core nodes, else the master.
func (t Topology) workers() InstanceGroup {
	switch {
	case t.Task.Count > 0:
		return t.Task
	case t.Core.Count > 0:
		return t.Core
	}
	return t.Master
}

// ReducerCountBase is the total reducer slots: the worker node count times
// the cores per node of that group's type. Only meaningful after Check passes.
func (t Topology) ReducerCountBase() int {
	g := t.workers()
	return g.Count * InstanceCores[g.Type]
}

// SwapAllocation is the swap in MB for core nodes, or the master when there
// are no core nodes.
func (t Topology) SwapAllocation() int {
	if t.Core.Count > 0 {
		return InstanceSwap[t.Core.Type]
	}
	return InstanceSwap[t.Master.Type]
}
