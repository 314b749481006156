package remote

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const DefaultRegion = "us-east-1"

// AWSCredentials are the keys and region the AWS CLI is invoked with.
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

var errNoAWSConfig = errors.New("No valid AWS CLI configuration found. Make sure the AWS CLI is installed properly " +
	"and that one of the following is true:\n\na) The environment variables \"AWS_ACCESS_KEY_ID\" and " +
	"\"AWS_SECRET_ACCESS_KEY\" are set to the desired AWS access key ID and secret access key, respectively, " +
	"and the profile (\"--profile\") is set to \"default\" (its default value).\n\nb) The file \".aws/config\" " +
	"exists in your home directory with a valid profile. To set this file up, run \"aws configure\" after " +
	"installing the AWS CLI.")

// LoadAWSCredentials resolves credentials for profile. The default profile
// prefers AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY and AWS_DEFAULT_REGION from
// the environment; otherwise the profile's section of configPath is read.
// region is used unless the environment or config file sets one.
func LoadAWSCredentials(profile, region, configPath string, getenv func(string) string) (AWSCredentials, error) {
	creds := AWSCredentials{Region: region}
	if creds.Region == "" {
		creds.Region = DefaultRegion
	}
	section := "[profile " + profile + "]"
	if profile == "" || profile == "default" {
		if r := getenv("AWS_DEFAULT_REGION"); r != "" {
			creds.Region = r
		}
		creds.AccessKeyID = getenv("AWS_ACCESS_KEY_ID")
		creds.SecretAccessKey = getenv("AWS_SECRET_ACCESS_KEY")
		if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
			return creds, nil
		}
		section = "[default]"
	}

	f, err := os.Open(configPath)
	if err != nil {
		return creds, errNoAWSConfig
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var found bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !found {
			found = line == section
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			break
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "region":
			if creds.Region == DefaultRegion {
				creds.Region = value
			}
		case "aws_access_key_id":
			creds.AccessKeyID = value
		case "aws_secret_access_key":
			creds.SecretAccessKey = value
		}
	}
	if err := scanner.Err(); err != nil {
		return creds, err
	}
	if !found {
		return creds, errNoAWSConfig
	}
	return creds, nil
}

// AWSConfigPath is ~/.aws/config.
func AWSConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aws", "config")
}

// Env returns the environment additions for invoking the AWS CLI.
func (c AWSCredentials) Env() []string {
	var env []string
	if c.AccessKeyID != "" {
		env = append(env, "AWS_ACCESS_KEY_ID="+c.AccessKeyID)
	}
	if c.SecretAccessKey != "" {
		env = append(env, "AWS_SECRET_ACCESS_KEY="+c.SecretAccessKey)
	}
	if c.Region != "" {
		env = append(env, "AWS_DEFAULT_REGION="+c.Region)
	}
	return env
}

// s3Entry is one line of "aws s3 ls" output: "PRE dir/" or
// "2014-01-01 00:00:00 1234 file".
type s3Entry struct {
	Name string
	Dir  bool
}

func parseS3Listing(out string) []s3Entry {
	var entries []s3Entry
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		switch {
		case len(fields) == 2 && fields[0] == "PRE":
			entries = append(entries, s3Entry{Name: strings.TrimSuffix(fields[1], "/"), Dir: true})
		case len(fields) >= 4:
			entries = append(entries, s3Entry{Name: strings.Join(fields[3:], " ")})
		}
	}
	return entries
}
