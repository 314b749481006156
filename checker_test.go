package mrflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerAccumulates(t *testing.T) {
	c := NewChecker()
	assert.True(t, c.Checkf(true, "never reported"))
	assert.NoError(t, c.Err())

	assert.False(t, c.Checkf(false, "first %d", 1))
	assert.Equal(t, 1, c.Len())
	c.Checkf(false, "second")
	c.Checkf(false, "second")
	assert.Equal(t, 3, c.Len(), "errors are never deduplicated")

	var verr *ValidationError
	require.ErrorAs(t, c.Err(), &verr)
	assert.Equal(t, []string{"first 1", "second", "second"}, verr.Errors)
	assert.Equal(t, "1) first 1\n2) second\n3) second", verr.Error())

	// the report is a snapshot
	c.Checkf(false, "third")
	assert.Len(t, verr.Errors, 3)
}

func TestCheckerRequire(t *testing.T) {
	c := NewChecker()
	c.Checkf(false, "earlier problem")
	assert.NoError(t, c.Require(true, "fine", "never"))
	assert.NoError(t, c.Require(false, "soft problem", ""))
	assert.Equal(t, 2, c.Len())

	err := c.Require(false, "no credentials", "the output directory is on S3")
	var herr *HardError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, []string{"earlier problem", "soft problem", "no credentials"}, herr.Errors)
	assert.Contains(t, err.Error(), "3) no credentials")
	assert.Contains(t, err.Error(), "Validation stopped because the output directory is on S3.")
}

func TestCheckerCapabilityVerifiedOnce(t *testing.T) {
	loc := newFakeLocator()
	loc.capErrs[AWSCLI] = errors.New("The AWS CLI executable was not found.")
	c := NewChecker()
	ctx := context.Background()

	_, err := c.Capability(ctx, loc, AWSCLI, "", "running in cluster mode")
	var herr *HardError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, AWSCLI, herr.Capability)
	assert.Contains(t, err.Error(), "Note that AWS CLI is needed because running in cluster mode.")
	assert.Contains(t, err.Error(), "dependence on S3")

	exe, err := c.Capability(ctx, loc, AWSCLI, "", "the manifest file is on S3")
	assert.NoError(t, err)
	assert.Equal(t, "", exe)
	assert.Equal(t, 1, loc.verified[AWSCLI])
	assert.Equal(t, 1, c.Len(), "a failed capability is reported once")

	exe, err = c.Capability(ctx, loc, Curl, "", "")
	assert.NoError(t, err)
	assert.Equal(t, "/usr/bin/curl", exe)
	exe, _ = c.Capability(ctx, loc, Curl, "", "")
	assert.Equal(t, "/usr/bin/curl", exe)
	assert.Equal(t, 1, loc.verified[Curl])
}

func TestCheckerProgram(t *testing.T) {
	loc := newFakeLocator()
	loc.exes["/usr/bin/bowtie"] = true
	loc.exes["/opt/bin/samtools"] = true
	c := NewChecker()

	assert.Equal(t, "/usr/bin/bowtie", c.Program(loc, "bowtie", "Bowtie 1", "--bowtie1-exe", ""))
	assert.Equal(t, "/opt/bin/samtools", c.Program(loc, "samtools", "SAMTools", "--samtools-exe", "/opt/bin/samtools"))
	assert.NoError(t, c.Err())

	c.Program(loc, "bowtie2", "Bowtie 2", "--bowtie2-exe", "")
	assert.Equal(t, "", c.Program(loc, "bedToBigBed", "BedToBigBed", "--bedtobigbed-exe", "/nope/bedToBigBed"))
	require.Equal(t, 2, c.Len())
	assert.Contains(t, c.Errors()[0], `"bowtie2"`)
	assert.Contains(t, c.Errors()[1], `"/nope/bedToBigBed"`)
}

func TestCheckerVars(t *testing.T) {
	c := NewChecker()
	c.SetString("output", "s3://bucket/out")
	vars := c.Vars()
	vars["output"] = vars["phase_input"]
	assert.Equal(t, "s3://bucket/out", c.Vars()["output"].AsString())
}
