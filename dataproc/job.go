// Package dataproc runs the steps of a compiled job flow as Hadoop jobs on an
// existing Google Cloud Dataproc cluster.
package dataproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jehiah/mrflow"
)

var APIBase = "https://dataproc.googleapis.com"

const DefaultStreamingJar = "file:///usr/lib/hadoop-mapreduce/hadoop-streaming.jar"

func isTerminalState(s string) bool {
	switch s {
	case "ATTEMPT_FAILURE", "ERROR", "DONE", "CANCELLED":
		return true
	default:
		return false
	}
}

// https://cloud.google.com/dataproc/docs/reference/rest/v1/projects.regions.jobs/submit
type jobRequest struct {
	RequestID string `json:"requestId,omitempty"`
	Job       job    `json:"job"`
}
type job struct {
	Placement struct {
		ClusterName string `json:"clusterName"`
	} `json:"placement"`
	Reference struct {
		JobID string `json:"jobId,omitempty"`
	} `json:"reference,omitempty"`
	// https://cloud.google.com/dataproc/docs/reference/rest/v1/HadoopJob
	HadoopJob struct {
		Args           []string `json:"args"`
		MainJarFileURI string   `json:"mainJarFileUri"`
	} `json:"hadoopJob"`
	Labels map[string]string `json:"labels,omitempty"`
	Status struct {
		State          string `json:"state,omitempty"`
		StateStartTime string `json:"stateStartTime,omitempty"`
		Details        string `json:"details,omitempty"`
		SubState       string `json:"substate,omitempty"`
	} `json:"status,omitempty"`
}

// Client submits to one cluster. HTTP must carry cloud-platform credentials.
type Client struct {
	HTTP    *http.Client
	Project string
	Region  string
	Cluster string
	// StreamingJar defaults to DefaultStreamingJar
	StreamingJar string
	// PollInterval defaults to 2s
	PollInterval time.Duration
}

var invalidJobID = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// jobID is unique per flow and step; Dataproc allows letters, digits,
// underscores and hyphens up to 100 characters.
func jobID(flowID string, i int, name string) string {
	id := fmt.Sprintf("%s-%02d-%s", strings.SplitN(flowID, "-", 2)[0], i, invalidJobID.ReplaceAllString(strings.ToLower(name), "_"))
	if len(id) > 100 {
		id = id[:100]
	}
	return id
}

func (c *Client) newJobRequest(f *mrflow.JobFlow, i int, s mrflow.Step) jobRequest {
	var req jobRequest
	req.RequestID = uuid.NewString()
	req.Job.Reference.JobID = jobID(f.ID, i, s.Name)
	req.Job.Placement.ClusterName = c.Cluster
	req.Job.HadoopJob.MainJarFileURI = c.StreamingJar
	if req.Job.HadoopJob.MainJarFileURI == "" {
		req.Job.HadoopJob.MainJarFileURI = DefaultStreamingJar
	}
	req.Job.HadoopJob.Args = s.JarArgs()
	req.Job.Labels = map[string]string{"mrflow-flow": f.ID}
	return req
}

// SubmitFlow runs the steps of f one at a time, waiting for each to finish.
// Hooks are not submitted. A failed step stops the flow unless its action on
// failure is CONTINUE.
func (c *Client) SubmitFlow(ctx context.Context, f *mrflow.JobFlow) error {
	for i, s := range f.Steps {
		state, err := c.SubmitStep(ctx, f, i, s)
		if err != nil {
			return fmt.Errorf("step %q: %w", s.Name, err)
		}
		if state != "DONE" {
			if s.ActionOnFailure == "CONTINUE" {
				log.Printf("step %q finished as %s; continuing", s.Name, state)
				continue
			}
			return fmt.Errorf("step %q finished as %s", s.Name, state)
		}
	}
	return nil
}

// SubmitStep submits step i of f and polls until it reaches a terminal state,
// which it returns.
func (c *Client) SubmitStep(ctx context.Context, f *mrflow.JobFlow, i int, s mrflow.Step) (string, error) {
	req := c.newJobRequest(f, i, s)
	base := fmt.Sprintf("%s/v1/projects/%s/regions/%s/jobs", APIBase, url.PathEscape(c.Project), url.PathEscape(c.Region))
	job, err := c.post(ctx, base+":submit", req)
	if err != nil {
		return "", err
	}
	state := job.Status.State
	log.Printf("job:%s status:%s", job.Reference.JobID, state)

	interval := c.PollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}
	resource := base + "/" + url.PathEscape(job.Reference.JobID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var n int
	for !isTerminalState(state) {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
		n++
		job, err = c.get(ctx, resource)
		if err != nil {
			return state, err
		}
		// if state changes or 15 polls pass by
		if state != job.Status.State || n%15 == 0 {
			state = job.Status.State
			log.Printf("job:%s status:%s %s", job.Reference.JobID, state, job.Status.Details)
		}
	}
	return state, nil
}

func (c *Client) do(req *http.Request) (*job, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		log.Print(string(respBody))
		return nil, fmt.Errorf("got status code %d", resp.StatusCode)
	}
	var j job
	return &j, json.Unmarshal(respBody, &j)
}

func (c *Client) get(ctx context.Context, resource string) (*job, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", resource, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, resource string, jr jobRequest) (*job, error) {
	body, err := json.Marshal(jr)
	if err != nil {
		return nil, err
	}
	log.Printf("Submitting job %q to Dataproc cluster %q", jr.Job.Reference.JobID, jr.Job.Placement.ClusterName)
	log.Print(resource)
	log.Printf("args: %q", jr.Job.HadoopJob.Args)
	req, err := http.NewRequestWithContext(ctx, "POST", resource, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}
