package sshexec

import (
	"context"
	"strconv"
	"strings"
)

// GPU describes one accelerator reported by the instance.
type GPU struct {
	Name      string
	MemoryMiB int
}

const gpuQueryCommand = "nvidia-smi --query-gpu=name,memory.total --format=csv,noheader,nounits"

// QueryGPUs asks the instance for its GPU inventory. An instance whose
// driver is still settling (or a non-GPU type) returns no GPUs and no
// error; the inventory is informational.
func QueryGPUs(ctx context.Context, r Runner) ([]GPU, error) {
	out, err := r.Run(ctx, gpuQueryCommand)
	if err != nil {
		return nil, err
	}
	return parseGPUList(out), nil
}

// parseGPUList parses nvidia-smi CSV output, one "name, memory" line
// per GPU. Unparseable lines are skipped.
func parseGPUList(out string) []GPU {
	var gpus []GPU
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, mem, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		g := GPU{Name: strings.TrimSpace(name)}
		if n, err := strconv.Atoi(strings.TrimSpace(mem)); err == nil {
			g.MemoryMiB = n
		}
		gpus = append(gpus, g)
	}
	return gpus
}
