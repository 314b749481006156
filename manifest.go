package mrflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ManifestEntry is one sample line of a manifest: a single-end line has three
// tab separated fields (URL, MD5, label), a paired-end line five (URL 1, MD5
// 1, URL 2, MD5 2, label).
type ManifestEntry struct {
	Files []string
	Label string
}

// ParseManifest parses r line by line. Lines with the wrong number of fields
// are returned as invalid rather than failing the whole manifest.
func ParseManifest(r io.Reader) (entries []ManifestEntry, invalid []string, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		switch len(fields) {
		case 3:
			entries = append(entries, ManifestEntry{Files: []string{fields[0]}, Label: fields[2]})
		case 5:
			entries = append(entries, ManifestEntry{Files: []string{fields[0], fields[2]}, Label: fields[4]})
		default:
			invalid = append(invalid, line)
		}
	}
	return entries, invalid, scanner.Err()
}

// checkManifest verifies the manifest exists and is well formed. Remote
// manifests are fetched into a temporary directory that is removed before
// returning. When samples is set every listed file must exist too.
func checkManifest(ctx context.Context, c *Checker, o *Options, loc Locator, samples bool) error {
	if !c.Checkf(o.Manifest != "", "Manifest file (\"--manifest\") must be specified.") {
		return nil
	}
	m := Location(o.Manifest)
	ok, err := reach(ctx, c, o, loc, m, "the manifest file is on "+m.Where())
	if err != nil || !ok {
		return err
	}
	if !c.Checkf(loc.Exists(ctx, o.Manifest), "Manifest file (\"--manifest\") %s does not exist. Check the URL and try again.",
		o.Manifest) {
		return nil
	}

	path := m.LocalPath()
	if !m.IsLocal() {
		dir, err := os.MkdirTemp("", "mrflow-manifest")
		if err != nil {
			return fmt.Errorf("staging manifest: %w", err)
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "MANIFEST")
		if err := loc.Fetch(ctx, o.Manifest, path); err != nil {
			c.Checkf(false, "Manifest file (\"--manifest\") %s could not be fetched: %s", o.Manifest, err)
			return nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		c.Checkf(false, "Manifest file (\"--manifest\") %s could not be read: %s", o.Manifest, err)
		return nil
	}
	defer f.Close()
	entries, invalid, err := ParseManifest(f)
	if err != nil {
		c.Checkf(false, "Manifest file (\"--manifest\") %s could not be read: %s", o.Manifest, err)
		return nil
	}
	for _, line := range invalid {
		c.Checkf(false, "The following line from the manifest file %s has an invalid number of tokens:\n%s", o.Manifest, line)
	}
	if !c.Checkf(len(entries) > 0, "Manifest file (\"--manifest\") %s has no valid lines.", o.Manifest) || !samples {
		return nil
	}

	for _, e := range entries {
		for _, file := range e.Files {
			l := Location(file)
			ok, err := reach(ctx, c, o, loc, l, "at least one sample FASTA/FASTQ from the manifest file is on "+l.Where())
			if err != nil {
				return err
			}
			if ok {
				c.Checkf(loc.Exists(ctx, file), "The file %s from the manifest file %s does not exist. Check the URL and try again.",
					file, o.Manifest)
			}
		}
	}
	return nil
}
