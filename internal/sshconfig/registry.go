// Package sshconfig is the local connection registry: a mapping from
// short aliases to instance connection parameters, persisted as managed
// blocks inside the user's ~/.ssh/config.
//
// The file is the user's own; everything outside the managed block
// markers is preserved byte-for-byte. The registry is a convenience
// cache — provider tags remain the source of truth for what exists —
// and the cleanup reconciler diffs the two.
package sshconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gpulab/gpulab/internal/fault"
)

// Entry is one alias registration. Entries are created on successful
// launch, never mutated, and deleted on teardown or cleanup.
type Entry struct {
	Alias        string
	InstanceID   string
	HostName     string
	User         string
	IdentityFile string
	Port         int
}

const (
	beginMarker = "# >>> gpulab managed host "
	endMarker   = "# <<< gpulab managed host "
)

var instanceIDRe = regexp.MustCompile(`^i-[0-9a-f]{8,17}$`)

// Registry reads and rewrites the managed blocks of one SSH config file.
// A single invocation of the tool is the only expected writer; writes
// are still atomic (temp file + rename) so an interrupted run cannot
// truncate the user's config.
type Registry struct {
	path string
}

// NewRegistry returns a registry over path, defaulting to
// ~/.ssh/config.
func NewRegistry(path string) (*Registry, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "config")
	}
	return &Registry{path: path}, nil
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// List returns every managed entry in file order.
func (r *Registry) List() ([]Entry, error) {
	sections, err := r.parse()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, s := range sections {
		if s.entry != nil {
			entries = append(entries, *s.entry)
		}
	}
	return entries, nil
}

// FindByAlias returns the entry registered under alias.
func (r *Registry) FindByAlias(alias string) (*Entry, error) {
	entries, err := r.List()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Alias == alias {
			return &entries[i], nil
		}
	}
	return nil, fault.NotFoundf("no SSH config entry for alias %q", alias)
}

// FindByInstance returns the entry pointing at the given instance id.
func (r *Registry) FindByInstance(instanceID string) (*Entry, error) {
	entries, err := r.List()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].InstanceID == instanceID {
			return &entries[i], nil
		}
	}
	return nil, fault.NotFoundf("no SSH config entry for instance %s", instanceID)
}

// NextAlias returns prefix+N for the smallest unused positive N.
// Aliases freed by deletion are reused; gaps are expected.
func (r *Registry) NextAlias(prefix string) (string, error) {
	entries, err := r.List()
	if err != nil {
		return "", err
	}
	used := make(map[int]bool)
	for _, e := range entries {
		rest, ok := strings.CutPrefix(e.Alias, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return fmt.Sprintf("%s%d", prefix, n), nil
}

// Add appends a managed block for the entry. The alias must be unused.
func (r *Registry) Add(e Entry) error {
	sections, err := r.parse()
	if err != nil {
		return err
	}
	for _, s := range sections {
		if s.entry != nil && s.entry.Alias == e.Alias {
			return fault.Validationf("alias %q already registered", e.Alias)
		}
	}
	sections = append(sections, section{entry: &e})
	return r.write(sections)
}

// Remove deletes the managed block for alias. Removing an absent alias
// is not an error; the reconciler re-runs safely.
func (r *Registry) Remove(alias string) (bool, error) {
	sections, err := r.parse()
	if err != nil {
		return false, err
	}
	kept := sections[:0]
	removed := false
	for _, s := range sections {
		if s.entry != nil && s.entry.Alias == alias {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	if !removed {
		return false, nil
	}
	return true, r.write(kept)
}

// RemoveByInstance deletes the entry pointing at instanceID and returns
// the alias that was removed, or "" if none existed.
func (r *Registry) RemoveByInstance(instanceID string) (string, error) {
	sections, err := r.parse()
	if err != nil {
		return "", err
	}
	kept := sections[:0]
	alias := ""
	for _, s := range sections {
		if s.entry != nil && s.entry.InstanceID == instanceID {
			alias = s.entry.Alias
			continue
		}
		kept = append(kept, s)
	}
	if alias == "" {
		return "", nil
	}
	return alias, r.write(kept)
}

// Resolve accepts either a raw instance id or a registered alias and
// returns the instance id. Anything that matches neither shape fails
// with NotFound — this dual-mode resolution is what lets every command
// accept either identifier style.
func (r *Registry) Resolve(token string) (string, error) {
	if instanceIDRe.MatchString(token) {
		return token, nil
	}
	e, err := r.FindByAlias(token)
	if err != nil {
		return "", fault.NotFoundf("%q is not an instance id or a known SSH alias", token)
	}
	return e.InstanceID, nil
}
