package sshexec

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gpulab/gpulab/internal/netutil"
)

// Probe returns a reachability check for host. Each invocation is one
// attempt: a TCP dial to the SSH port, then a full SSH handshake with
// key authentication. TCP alone is not enough — a booting instance
// accepts connections before sshd has loaded the authorized key.
func Probe(host string, port int, user string, signer ssh.Signer, timeout time.Duration) func(context.Context) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	return func(ctx context.Context) error {
		if err := netutil.ProbePort(ctx, host, port, timeout); err != nil {
			return fmt.Errorf("port %d not open: %w", port, err)
		}
		conn, err := ssh.Dial("tcp", addr, cfg)
		if err != nil {
			return fmt.Errorf("SSH handshake: %w", err)
		}
		return conn.Close()
	}
}

// Signer returns the probe's view of the client's key so launch can
// build a probe from an already-parsed client.
func (c *Client) Signer() ssh.Signer { return c.signer }

// ProbeFunc builds a reachability probe from the client's own
// connection parameters.
func (c *Client) ProbeFunc() func(context.Context) error {
	return Probe(c.host, c.port, c.user, c.signer, c.connectTimeout)
}
