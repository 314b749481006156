package mrflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Capability is an external tool or storage client that is verified at most
// once per compilation.
type Capability string

const (
	AWSCLI            Capability = "AWS CLI"
	Curl              Capability = "Curl"
	Hadoop            Capability = "Hadoop"
	GoogleCredentials Capability = "Google Cloud credentials"
)

// what each capability is needed for; used in the note appended to a HardError
var capabilityDependence = map[Capability]string{
	AWSCLI:            "S3",
	Curl:              "web resources",
	Hadoop:            "HDFS",
	GoogleCredentials: "Google Storage",
}

// Checker accumulates validation errors in discovery order. It is owned by a
// single compilation and must not be shared between goroutines.
type Checker struct {
	errors   []string
	verified map[Capability]string
	vars     map[string]cty.Value
}

func NewChecker() *Checker {
	return &Checker{
		verified: make(map[Capability]string),
		vars:     make(map[string]cty.Value),
	}
}

// Checkf appends a formatted error message when ok is false. It reports
// whether the check passed.
func (c *Checker) Checkf(ok bool, format string, a ...interface{}) bool {
	if !ok {
		c.errors = append(c.errors, fmt.Sprintf(format, a...))
	}
	return ok
}

// Require behaves like Checkf, but when reason is non-empty a failure returns
// a *HardError bundling every error accumulated so far. Callers must stop
// running checks when a non-nil error is returned.
func (c *Checker) Require(ok bool, msg string, reason string) error {
	if ok {
		return nil
	}
	c.errors = append(c.errors, msg)
	if reason == "" {
		return nil
	}
	return c.hardError(reason, "")
}

func (c *Checker) hardError(reason string, capability Capability) error {
	return &HardError{
		Errors:     c.Errors(),
		Reason:     reason,
		Capability: capability,
	}
}

// Len returns how many errors have been accumulated.
func (c *Checker) Len() int { return len(c.errors) }

// Errors returns a copy of the accumulated errors.
func (c *Checker) Errors() []string {
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}

// Err returns a *ValidationError when any check failed.
func (c *Checker) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: c.Errors()}
}

// Verified reports whether a capability was already checked (successfully or
// not) and the executable resolved for it.
func (c *Checker) Verified(kind Capability) (string, bool) {
	exe, ok := c.verified[kind]
	return exe, ok
}

// Capability verifies kind through loc unless it was verified before. entered
// is an explicitly configured executable (empty to search PATH). A failure is
// accumulated; when reason is non-empty it is also returned as a *HardError
// because the checks that follow can't run without the capability.
func (c *Checker) Capability(ctx context.Context, loc Locator, kind Capability, entered, reason string) (string, error) {
	if exe, ok := c.verified[kind]; ok {
		return exe, nil
	}
	exe, err := loc.VerifyCapability(ctx, kind, entered)
	c.verified[kind] = exe
	if err == nil {
		return exe, nil
	}
	c.errors = append(c.errors, err.Error())
	if reason == "" {
		return "", nil
	}
	return "", c.hardError(reason, kind)
}

// Program checks that exe (or an explicitly entered path) is executable and
// returns the resolved path. parameter names the option the user would set.
func (c *Checker) Program(loc Locator, exe, name, parameter, entered string) string {
	if entered == "" {
		p, ok := loc.LookPath(exe)
		c.Checkf(ok, "The executable %q for %s was either not found in PATH or is not executable. "+
			"Check that the program is installed properly and executable; then either add the "+
			"executable to PATH or specify it directly with %q.", exe, name, parameter)
		return p
	}
	if !c.Checkf(loc.IsExecutable(entered), "The executable %q entered for %s via %q was either not found or is not executable.",
		entered, name, parameter) {
		return ""
	}
	return entered
}

// Set records a resolved setting that step templates may reference.
func (c *Checker) Set(name string, v cty.Value) { c.vars[name] = v }

// SetString is shorthand for Set with a string value.
func (c *Checker) SetString(name, v string) { c.vars[name] = cty.StringVal(v) }

// Vars returns a copy of the resolved settings.
func (c *Checker) Vars() map[string]cty.Value {
	out := make(map[string]cty.Value, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

func numbered(errs []string) string {
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d) %s", i+1, e)
	}
	return b.String()
}

// ValidationError is the complete, ordered report of accumulated errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string { return numbered(e.Errors) }

// HardError is returned when a required capability is unusable. It still
// carries every error found before it.
type HardError struct {
	Errors     []string
	Reason     string
	Capability Capability
}

func (e *HardError) Error() string {
	if e.Capability == "" {
		return fmt.Sprintf("%s\n\nValidation stopped because %s.", numbered(e.Errors), e.Reason)
	}
	return fmt.Sprintf("%s\n\nNote that %s is needed because %s. If all dependence on %s is removed "+
		"from the pipeline, %s need not be installed.",
		numbered(e.Errors), e.Capability, e.Reason, capabilityDependence[e.Capability], e.Capability)
}
