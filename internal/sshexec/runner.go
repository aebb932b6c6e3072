// Package sshexec executes commands on a launched instance over SSH.
//
// It carries the post-launch steps that happen on the instance itself:
// the reachability handshake, data volume formatting and mounting, the
// development environment bootstrap, and the GPU inventory query.
package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gpulab/gpulab/internal/config"
)

// Runner executes commands on a remote host. The production
// implementation is Client; tests substitute a script recorder.
type Runner interface {
	// Run executes a single shell command and returns its combined
	// output.
	Run(ctx context.Context, command string) (string, error)
	// RunScript pipes a script to a remote shell, passing args as
	// positional parameters.
	RunScript(ctx context.Context, script string, args ...string) (string, error)
	Close() error
}

// Client is an SSH-backed Runner with a lazily established, reused
// connection.
type Client struct {
	host           string
	port           int
	user           string
	signer         ssh.Signer
	connectTimeout time.Duration
	commandTimeout time.Duration

	mu   sync.Mutex // protects conn
	conn *ssh.Client
}

// NewClient builds a Runner for host using the private key at keyPath.
// No connection is made until the first command runs.
func NewClient(host string, port int, user, keyPath string, t *config.Timeouts) (*Client, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read SSH private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse SSH private key %s: %w", keyPath, err)
	}
	return &Client{
		host:           host,
		port:           port,
		user:           user,
		signer:         signer,
		connectTimeout: t.SSHConnect,
		commandTimeout: t.SSHCommand,
	}, nil
}

// connect establishes the SSH connection if not already connected.
func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_, _, err := c.conn.SendRequest("keepalive@gpulab", true, nil)
		if err == nil {
			return nil
		}
		c.conn.Close()
		c.conn = nil
	}

	conn, err := ssh.Dial("tcp", c.addr(), c.clientConfig())
	if err != nil {
		return fmt.Errorf("SSH dial %s: %w", c.addr(), err)
	}
	c.conn = conn
	return nil
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Client) clientConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User: c.user,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		// Fresh instances have fresh host keys; pinning them would
		// break every launch.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.connectTimeout,
	}
}

// Run executes command on the remote host and returns combined
// stdout/stderr.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	return c.exec(ctx, command, nil)
}

// RunScript pipes script into a remote bash, with args available as $1,
// $2, ... inside the script. Scripts never land on the remote disk.
func (c *Client) RunScript(ctx context.Context, script string, args ...string) (string, error) {
	command := "bash -s"
	for _, a := range args {
		command += " " + shellQuote(a)
	}
	return c.exec(ctx, command, []byte(script))
}

func (c *Client) exec(ctx context.Context, command string, stdin []byte) (string, error) {
	if err := c.connect(); err != nil {
		return "", err
	}

	c.mu.Lock()
	session, err := c.conn.NewSession()
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err := <-done:
		if err != nil {
			return out.String(), fmt.Errorf("remote command failed: %w (output: %s)", err, out.String())
		}
		return out.String(), nil
	case <-ctx.Done():
		// Kill the session; the goroutine's result is discarded.
		session.Close()
		return out.String(), fmt.Errorf("remote command timed out: %w", ctx.Err())
	}
}

// Close closes the underlying SSH connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// shellQuote wraps s in single quotes, escaping embedded quotes, so
// script arguments survive the remote shell.
func shellQuote(s string) string {
	b := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			b = append(b, '\'', '\\', '\'', '\'')
			continue
		}
		b = append(b, s[i])
	}
	return string(append(b, '\''))
}
