package handlers

import (
	"context"
	"strconv"

	"github.com/gpulab/gpulab/internal/output"
)

// aliasRecord is one registry entry in the list result document.
type aliasRecord struct {
	Alias      string `json:"alias" yaml:"alias"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
	HostName   string `json:"hostname" yaml:"hostname"`
	User       string `json:"user" yaml:"user"`
	Port       int    `json:"port" yaml:"port"`
}

// listReport is the list command's result document.
type listReport struct {
	Aliases []aliasRecord `json:"aliases" yaml:"aliases"`
}

// List handles the list command: shows the locally registered SSH
// aliases without touching AWS. The registry may be stale; cleanup
// reconciles it.
func List(_ context.Context, opts Options) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	entries, err := reg.List()
	if err != nil {
		return err
	}

	out := newUI(opts)
	printer := newPrinter(opts)

	if len(entries) == 0 {
		out.Info("no registered SSH aliases in %s", reg.Path())
		return printer.Emit(listReport{Aliases: []aliasRecord{}}, &output.Table{})
	}

	report := listReport{}
	t := &output.Table{Headers: []string{"Alias", "Instance ID", "Host", "User", "Port"}}
	for _, e := range entries {
		out.Info("%-8s %s  %s@%s", e.Alias, e.InstanceID, e.User, e.HostName)
		report.Aliases = append(report.Aliases, aliasRecord{
			Alias:      e.Alias,
			InstanceID: e.InstanceID,
			HostName:   e.HostName,
			User:       e.User,
			Port:       e.Port,
		})
		t.Rows = append(t.Rows, []string{e.Alias, e.InstanceID, e.HostName, e.User, strconv.Itoa(e.Port)})
	}
	return printer.Emit(report, t)
}
