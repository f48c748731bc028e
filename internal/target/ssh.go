package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SSHTarget executes commands on a remote node over SSH. The connection is
// established lazily on first use and reused for subsequent commands.
type SSHTarget struct {
	host       string
	addr       string
	user       string
	port       int
	privateKey []byte

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHTarget creates a target for a remote node. host is the node's
// declared hostname (used for logging), addr the address to dial.
func NewSSHTarget(host, addr, user string, port int, privateKey []byte) *SSHTarget {
	return &SSHTarget{
		host:       host,
		addr:       addr,
		user:       user,
		port:       port,
		privateKey: privateKey,
	}
}

// Name implements Target.
func (t *SSHTarget) Name() string { return t.host }

// IsLocal implements Target.
func (t *SSHTarget) IsLocal() bool { return false }

func (t *SSHTarget) connect(ctx context.Context) (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	signer, err := ssh.ParsePrivateKey(t.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: t.user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106 -- provisioning targets are operator-declared hosts
		Timeout:         10 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", t.addr, t.port)

	var client *ssh.Client
	for attempt := 0; attempt < 3; attempt++ {
		client, err = ssh.Dial("tcp", addr, config)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	if client == nil {
		return nil, fmt.Errorf("failed to dial ssh %s: %w", addr, err)
	}

	t.client = client
	return client, nil
}

// Run implements Target.
func (t *SSHTarget) Run(ctx context.Context, command string) (Result, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return Result{}, err
	}

	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr safeBuffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case err = <-done:
	}

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		return res, fmt.Errorf("failed to execute command: %w", err)
	}

	return res, nil
}

// Copy implements Target using SFTP.
func (t *SSHTarget) Copy(ctx context.Context, localPath, remotePath string) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("failed to open sftp session: %w", err)
	}
	defer sftpClient.Close()

	// #nosec G304
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	if err := sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}

	dst, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to transfer file: %w", err)
	}

	return nil
}

// Close implements Target.
func (t *SSHTarget) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// safeBuffer is a goroutine-safe byte buffer for session output.
type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
