// Package netutil provides the transport-level reachability probe used
// by the readiness poller.
package netutil

import (
	"context"
	"fmt"
	"net"
	"time"
)

// ProbePort makes a single TCP connection attempt to host:port. It
// answers only "is something listening" — a fresh instance accepts TCP
// well before sshd is ready, which is why the reachability wait follows
// up with an SSH handshake.
func ProbePort(ctx context.Context, host string, port int, timeout time.Duration) error {
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	_ = conn.Close()
	return nil
}
