package mrflow

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Locator is the validation collaborator that answers questions about paths,
// URLs and executables. Calls are synchronous and are not retried.
type Locator interface {
	// VerifyCapability confirms kind is usable and returns the resolved
	// executable (or credential source) for it.
	VerifyCapability(ctx context.Context, kind Capability, entered string) (string, error)
	Exists(ctx context.Context, location string) bool
	IsDir(ctx context.Context, location string) bool
	IsExecutable(p string) bool
	LookPath(exe string) (string, bool)
	// Fetch copies a remote location to the local file dest.
	Fetch(ctx context.Context, location, dest string) error
}

// Location classifies a path or URL by scheme.
type Location string

func (l Location) Scheme() string {
	s := string(l)
	i := strings.Index(s, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(s[:i])
}

func (l Location) IsLocal() bool {
	switch l.Scheme() {
	case "", "file":
		return true
	}
	return false
}

func (l Location) IsS3() bool {
	switch l.Scheme() {
	case "s3", "s3n", "s3a":
		return true
	}
	return false
}

func (l Location) IsGS() bool   { return l.Scheme() == "gs" }
func (l Location) IsHDFS() bool { return l.Scheme() == "hdfs" }

// IsCurlable reports whether the location is fetched over the web.
func (l Location) IsCurlable() bool {
	switch l.Scheme() {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// IsObjectStore reports whether the location lives on distributed object
// storage that outlives a cluster.
func (l Location) IsObjectStore() bool { return l.IsS3() || l.IsGS() }

// LocalPath strips a file:// scheme.
func (l Location) LocalPath() string {
	return strings.TrimPrefix(string(l), "file://")
}

// StorageCapability returns the capability needed to query l, if any.
func (l Location) StorageCapability() (Capability, bool) {
	switch {
	case l.IsS3():
		return AWSCLI, true
	case l.IsGS():
		return GoogleCredentials, true
	case l.IsHDFS():
		return Hadoop, true
	case l.IsCurlable():
		return Curl, true
	}
	return "", false
}

// JoinLocal joins with local filesystem rules.
func JoinLocal(root string, elem ...string) string {
	return filepath.Join(append([]string{Location(root).LocalPath()}, elem...)...)
}

// JoinURL joins with distributed storage URL rules; the scheme and host of
// root are preserved and a root without a scheme is treated as an HDFS path.
func JoinURL(root string, elem ...string) string {
	u, err := url.Parse(root)
	if err != nil || u.Scheme == "" {
		return path.Join(append([]string{root}, elem...)...)
	}
	p := path.Join(append([]string{"/", u.EscapedPath()}, elem...)...)
	if u.Host == "" {
		// hdfs:///a keeps its empty authority
		return u.Scheme + "://" + p
	}
	return u.Scheme + "://" + u.Host + p
}
