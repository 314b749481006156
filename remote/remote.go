// Package remote answers existence questions about local paths, HDFS, S3,
// Google Storage and web URLs by dispatching on the location's scheme.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/jehiah/mrflow"
	"github.com/jehiah/mrflow/hdfs"
	"github.com/jehiah/mrflow/internal/gcloud"
	"github.com/jehiah/mrflow/internal/storage"
)

// Client implements mrflow.Locator. Remote schemes are only usable after
// their capability is verified; a Client belongs to one compilation.
type Client struct {
	AWSProfile    string
	Region        string
	AWSConfigPath string

	aws     string
	awsEnv  []string
	curl    string
	hadoop  bool
	storage *http.Client
}

func New(awsProfile, region string) *Client {
	return &Client{
		AWSProfile:    awsProfile,
		Region:        region,
		AWSConfigPath: AWSConfigPath(),
	}
}

var _ mrflow.Locator = (*Client)(nil)

func (c *Client) program(exe, entered, name, parameter string) (string, error) {
	if entered == "" {
		p, ok := c.LookPath(exe)
		if !ok {
			return "", fmt.Errorf("The %s executable was not found. Make sure that the executable is in PATH, or specify the location of the executable with %q.",
				name, parameter)
		}
		return p, nil
	}
	if !c.IsExecutable(entered) {
		return "", fmt.Errorf("The %s executable (%q) %q is either not present or not executable.", name, parameter, entered)
	}
	return entered, nil
}

func (c *Client) VerifyCapability(ctx context.Context, kind mrflow.Capability, entered string) (string, error) {
	switch kind {
	case mrflow.AWSCLI:
		exe, err := c.program("aws", entered, "AWS CLI", "--aws-exe")
		if err != nil {
			return "", err
		}
		creds, err := LoadAWSCredentials(c.AWSProfile, c.Region, c.AWSConfigPath, os.Getenv)
		if err != nil {
			return "", err
		}
		c.aws, c.awsEnv = exe, creds.Env()
		return exe, nil
	case mrflow.Curl:
		exe, err := c.program("curl", entered, "Curl", "--curl-exe")
		if err != nil {
			return "", err
		}
		c.curl = exe
		return exe, nil
	case mrflow.Hadoop:
		bin, err := hdfs.BinPath("hadoop")
		if err != nil {
			return "", fmt.Errorf("Hadoop was not found: %s. Set HADOOP_HOME to the Hadoop installation directory.", err)
		}
		if !c.IsExecutable(bin) {
			return "", fmt.Errorf("The Hadoop executable %q is either not present or not executable.", bin)
		}
		c.hadoop = true
		return bin, nil
	case mrflow.GoogleCredentials:
		creds := gcloud.CredentialsPath(entered)
		if creds == "" {
			return "", fmt.Errorf("No Google Cloud service account credentials were found. Set \"GOOGLE_APPLICATION_CREDENTIALS\" or specify the file with \"--google-credentials\".")
		}
		client, err := gcloud.LoadFromServiceJSON(context.Background(), creds, gcloud.ScopeStorageReadWrite)
		if err != nil {
			return "", fmt.Errorf("Google Cloud credentials %q could not be loaded: %s", creds, err)
		}
		c.storage = client
		return creds, nil
	}
	return "", fmt.Errorf("unknown capability %q", kind)
}

// SetStorageClient sets the http.Client Google Storage is queried with.
func (c *Client) SetStorageClient(h *http.Client) { c.storage = h }

func (c *Client) IsExecutable(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0
}

func (c *Client) LookPath(exe string) (string, bool) {
	p, err := exec.LookPath(exe)
	return p, err == nil
}

func (c *Client) Exists(ctx context.Context, location string) bool {
	l := mrflow.Location(location)
	switch {
	case l.IsLocal():
		_, err := os.Stat(l.LocalPath())
		return err == nil
	case l.IsS3():
		entries, err := c.s3ls(ctx, strings.TrimSuffix(location, "/"))
		if err != nil {
			return false
		}
		base := path.Base(strings.TrimSuffix(location, "/"))
		for _, e := range entries {
			if e.Name == base {
				return true
			}
		}
		return false
	case l.IsGS():
		return c.gsMatch(ctx, location, false)
	case l.IsHDFS():
		return c.hadoop && hdfs.Test(ctx, "-e", location) == nil
	case l.IsCurlable():
		return c.curl != "" && c.run(ctx, nil, c.curl, "-s", "-f", "-I", "-L", location) == nil
	}
	return false
}

func (c *Client) IsDir(ctx context.Context, location string) bool {
	l := mrflow.Location(location)
	switch {
	case l.IsLocal():
		fi, err := os.Stat(l.LocalPath())
		return err == nil && fi.IsDir()
	case l.IsS3():
		entries, err := c.s3ls(ctx, strings.TrimSuffix(location, "/")+"/")
		return err == nil && len(entries) > 0
	case l.IsGS():
		return c.gsMatch(ctx, location, true)
	case l.IsHDFS():
		return c.hadoop && hdfs.Test(ctx, "-d", location) == nil
	}
	return false
}

func (c *Client) Fetch(ctx context.Context, location, dest string) error {
	l := mrflow.Location(location)
	switch {
	case l.IsLocal():
		return copyFile(l.LocalPath(), dest)
	case l.IsS3():
		if c.aws == "" {
			return fmt.Errorf("AWS CLI not verified")
		}
		return c.run(ctx, c.awsEnv, c.aws, c.awsArgs("s3", "cp", location, dest)...)
	case l.IsGS():
		if c.storage == nil {
			return fmt.Errorf("Google Storage credentials not verified")
		}
		bucket, name := splitGS(location)
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer f.Close()
		return storage.Get(ctx, c.storage, bucket, name, f)
	case l.IsHDFS():
		return hdfs.Get(ctx, location, dest)
	case l.IsCurlable():
		if c.curl == "" {
			return fmt.Errorf("Curl not verified")
		}
		return c.run(ctx, nil, c.curl, "-s", "-f", "-L", "-o", dest, location)
	}
	return fmt.Errorf("unsupported location %q", location)
}

func (c *Client) awsArgs(args ...string) []string {
	if c.AWSProfile != "" && c.AWSProfile != "default" {
		args = append([]string{"--profile", c.AWSProfile}, args...)
	}
	return args
}

func (c *Client) s3ls(ctx context.Context, location string) ([]s3Entry, error) {
	if c.aws == "" {
		return nil, fmt.Errorf("AWS CLI not verified")
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, c.aws, c.awsArgs("s3", "ls", location)...)
	cmd.Env = append(os.Environ(), c.awsEnv...)
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	log.Print(cmd.Args)
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return parseS3Listing(out.String()), nil
}

func (c *Client) run(ctx context.Context, env []string, exe string, args ...string) error {
	cmd := exec.CommandContext(ctx, exe, args...)
	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	log.Print(cmd.Args)
	return cmd.Run()
}

// splitGS splits gs://bucket/name.
func splitGS(location string) (bucket, name string) {
	s := strings.TrimPrefix(location, "gs://")
	bucket, name, _ = strings.Cut(s, "/")
	return bucket, name
}

// gsMatch reports whether an object named location, or any object under it
// when dir is set, exists.
func (c *Client) gsMatch(ctx context.Context, location string, dir bool) bool {
	if c.storage == nil {
		return false
	}
	bucket, name := splitGS(strings.TrimSuffix(location, "/"))
	items, _, err := storage.List(ctx, c.storage, bucket, name, "")
	if err != nil {
		return false
	}
	for _, o := range items {
		if strings.HasPrefix(o.Name, name+"/") || (name == "" && dir) {
			return true
		}
		if !dir && o.Name == name {
			return true
		}
	}
	return false
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Put writes r to location, replacing any existing file.
func (c *Client) Put(ctx context.Context, location string, r io.Reader) error {
	l := mrflow.Location(location)
	if l.IsGS() {
		if c.storage == nil {
			return fmt.Errorf("Google Storage credentials not verified")
		}
		bucket, name := splitGS(location)
		return storage.Insert(ctx, c.storage, bucket, name, "application/json", r)
	}
	if l.IsLocal() {
		f, err := os.Create(l.LocalPath())
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	// stage through a local file for the command line clients
	tmp, err := os.CreateTemp("", "mrflow-put")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	switch {
	case l.IsS3():
		if c.aws == "" {
			return fmt.Errorf("AWS CLI not verified")
		}
		return c.run(ctx, c.awsEnv, c.aws, c.awsArgs("s3", "cp", tmp.Name(), location)...)
	case l.IsHDFS():
		return hdfs.Put(ctx, tmp.Name(), location)
	}
	return fmt.Errorf("can't write to %q", location)
}

// RemoveAll removes location and everything under it.
func (c *Client) RemoveAll(ctx context.Context, location string) error {
	l := mrflow.Location(location)
	switch {
	case l.IsLocal():
		return os.RemoveAll(l.LocalPath())
	case l.IsS3():
		if c.aws == "" {
			return fmt.Errorf("AWS CLI not verified")
		}
		return c.run(ctx, c.awsEnv, c.aws, c.awsArgs("s3", "rm", "--recursive", location)...)
	case l.IsGS():
		if c.storage == nil {
			return fmt.Errorf("Google Storage credentials not verified")
		}
		bucket, name := splitGS(location)
		return storage.DeletePrefix(ctx, c.storage, bucket, strings.TrimSuffix(name, "/")+"/")
	case l.IsHDFS():
		return hdfs.RMR(ctx, location)
	}
	return fmt.Errorf("can't remove %q", location)
}
