package sshconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// section is either a run of unmanaged lines (kept verbatim) or one
// managed entry.
type section struct {
	raw   []string
	entry *Entry
}

// parse splits the config file into unmanaged sections and managed
// entries. A missing file parses as empty. Malformed managed blocks
// (hand-edited beyond recognition) are treated as unmanaged content and
// left alone.
func (r *Registry) parse() ([]section, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	// Trailing newline produces one empty trailing element; drop it so
	// rendering does not accumulate blank lines across rewrites.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var sections []section
	var raw []string
	flush := func() {
		if len(raw) > 0 {
			sections = append(sections, section{raw: raw})
			raw = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, beginMarker) {
			raw = append(raw, line)
			continue
		}

		entry, end, ok := parseBlock(lines, i)
		if !ok {
			raw = append(raw, line)
			continue
		}
		flush()
		sections = append(sections, section{entry: entry})
		i = end
	}
	flush()
	return sections, nil
}

// parseBlock parses one managed block starting at lines[start]. It
// returns the entry, the index of the end-marker line, and whether the
// block was well-formed.
func parseBlock(lines []string, start int) (*Entry, int, bool) {
	header := strings.TrimPrefix(lines[start], beginMarker)
	header = strings.TrimSuffix(header, " >>>")
	// header: "<alias> (<instance-id>)"
	open := strings.LastIndex(header, " (")
	if open < 0 || !strings.HasSuffix(header, ")") {
		return nil, 0, false
	}
	e := Entry{
		Alias:      header[:open],
		InstanceID: strings.TrimSuffix(header[open+2:], ")"),
		Port:       22,
	}

	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, endMarker) {
			if strings.TrimSuffix(strings.TrimPrefix(line, endMarker), " <<<") != e.Alias {
				return nil, 0, false
			}
			if e.Alias == "" || e.InstanceID == "" {
				return nil, 0, false
			}
			return &e, i, true
		}

		key, value, ok := splitKeyword(line)
		if !ok {
			continue
		}
		switch key {
		case "host":
			e.Alias = value
		case "hostname":
			e.HostName = value
		case "user":
			e.User = value
		case "identityfile":
			e.IdentityFile = value
		case "port":
			if p, err := strconv.Atoi(value); err == nil {
				e.Port = p
			}
		}
	}
	// No end marker: treat as unmanaged.
	return nil, 0, false
}

// splitKeyword splits an ssh_config "Keyword value" line, lowercasing
// the keyword.
func splitKeyword(line string) (string, string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " "), true
}

// render produces the block for one entry.
func renderEntry(e *Entry) []string {
	lines := []string{
		fmt.Sprintf("%s%s (%s) >>>", beginMarker, e.Alias, e.InstanceID),
		"Host " + e.Alias,
		"    HostName " + e.HostName,
		"    User " + e.User,
		"    IdentityFile " + e.IdentityFile,
		"    StrictHostKeyChecking no",
		"    UserKnownHostsFile /dev/null",
	}
	if e.Port != 0 && e.Port != 22 {
		lines = append(lines, "    Port "+strconv.Itoa(e.Port))
	}
	lines = append(lines, fmt.Sprintf("%s%s <<<", endMarker, e.Alias))
	return lines
}

// write rewrites the whole file atomically: temp file in the same
// directory, then rename. An interrupted write never truncates the
// user's config.
func (r *Registry) write(sections []section) error {
	var b strings.Builder
	for _, s := range sections {
		if s.entry != nil {
			for _, line := range renderEntry(s.entry) {
				b.WriteString(line)
				b.WriteString("\n")
			}
			continue
		}
		for _, line := range s.raw {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".gpulab-ssh-config-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, r.path)
}
