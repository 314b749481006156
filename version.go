// mrflow - compiles a multi-phase map/reduce pipeline into a job flow
//
// It validates pipeline parameters for a local or cluster profile, collecting
// every problem in one report, then expands the selected phases into an
// ordered list of Hadoop Streaming steps with reducer counts derived from the
// cluster topology.
package mrflow

const VERSION = "0.1.0"
