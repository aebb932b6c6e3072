package provision

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/gpulab/gpulab/internal/awsapi"
	"github.com/gpulab/gpulab/internal/fault"
)

// Probe is a single transport-level reachability attempt against a
// freshly booted instance. sshexec provides the real implementation
// (TCP connect followed by an SSH handshake).
type Probe func(ctx context.Context) error

// WaitRunning polls the provider until the instance reports running,
// then returns the refreshed instance (including its public address).
//
// A terminal state before running (the provider reclaimed or killed the
// instance) aborts immediately; waiting longer cannot help and the
// follow-up reachability wait would only produce a misleading
// "unreachable" report.
func WaitRunning(ctx context.Context, api awsapi.EC2API, instanceID string, interval, timeout time.Duration) (*Instance, error) {
	deadline := time.Now().Add(timeout)
	for {
		inst, err := Describe(ctx, api, instanceID)
		if err != nil {
			return nil, err
		}
		switch inst.State {
		case "running":
			return inst, nil
		case "shutting-down", "terminated":
			return nil, fault.Rejected("InstanceTerminated",
				"instance "+instanceID+" entered state "+inst.State+" before running", nil)
		}

		if time.Now().After(deadline) {
			return nil, fault.Timeoutf("instance %s still %s after %s", instanceID, inst.State, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// WaitReachable retries probe until it succeeds or the timeout elapses.
// Individual attempt failures (connection refused, handshake timeout,
// sshd not yet accepting the key) are expected during boot and are
// swallowed; only the final post-timeout failure surfaces.
func WaitReachable(ctx context.Context, probe Probe, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		if lastErr = probe(ctx); lastErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fault.Timeoutf("instance not reachable after %s: %v", timeout, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Describe fetches one instance by id.
func Describe(ctx context.Context, api awsapi.EC2API, instanceID string) (*Instance, error) {
	out, err := api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, err
	}
	for _, res := range out.Reservations {
		for _, in := range res.Instances {
			inst := fromSDK(in)
			return inst, nil
		}
	}
	return nil, fault.NotFoundf("instance %s not found", instanceID)
}
