package vcsadapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/xrefdb/elixir/pkg/xhash"
)

// SSHConfig describes how to reach a remote host exposing a read-only
// object-store endpoint over SSH. SSHAdapter shells out, over SSH, to a
// remote command rather than to a local subprocess.
type SSHConfig struct {
	Addr           string // host:port
	User           string
	PrivateKeyPath string
	// RemoteCommand is the command run for every request; Adapter
	// appends a single verb and argument, e.g. "elixir-objectd blob <hex>".
	RemoteCommand string
}

// SSHAdapter implements Adapter by running RemoteCommand over a shared
// SSH connection for every call. It is safe for concurrent use: each call
// opens its own session on the shared connection.
type SSHAdapter struct {
	client *ssh.Client
	cmd    string
}

// DialSSH connects to cfg.Addr and authenticates with the private key at
// cfg.PrivateKeyPath.
func DialSSH(cfg SSHConfig) (*SSHAdapter, error) {
	raw, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read ssh key %q: %w", ErrRepoUnavailable, cfg.PrivateKeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ssh key: %w", ErrRepoUnavailable, err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // trusted fixture hosts only; real deployments supply a known_hosts callback
	}
	client, err := ssh.Dial("tcp", cfg.Addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrRepoUnavailable, cfg.Addr, err)
	}

	cmd := cfg.RemoteCommand
	if cmd == "" {
		cmd = "elixir-objectd"
	}
	return &SSHAdapter{client: client, cmd: cmd}, nil
}

// Close closes the underlying SSH connection.
func (a *SSHAdapter) Close() error {
	return a.client.Close()
}

func (a *SSHAdapter) run(ctx context.Context, args ...string) ([]byte, error) {
	session, err := a.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: open ssh session: %w", ErrRepoUnavailable, err)
	}
	defer session.Close()

	done := make(chan struct{})
	var out, errOut bytes.Buffer
	session.Stdout = &out
	session.Stderr = &errOut

	var runErr error
	go func() {
		runErr = session.Run(a.cmd + " " + strings.Join(args, " "))
		close(done)
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return nil, ctx.Err()
	case <-done:
	}

	if runErr != nil {
		return nil, fmt.Errorf("vcsadapter: remote command %q failed: %w (stderr: %s)", a.cmd, runErr, errOut.String())
	}
	return out.Bytes(), nil
}

// BlobBytes implements Adapter.
func (a *SSHAdapter) BlobBytes(ctx context.Context, h xhash.Hash) ([]byte, error) {
	out, err := a.run(ctx, "blob", h.String())
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, wrapMissing(h, err)
		}
		return nil, err
	}
	return out, nil
}

// ListTags implements Adapter.
func (a *SSHAdapter) ListTags(ctx context.Context) ([]string, error) {
	out, err := a.run(ctx, "tags")
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

// Latest implements Adapter.
func (a *SSHAdapter) Latest(ctx context.Context) (string, error) {
	out, err := a.run(ctx, "latest")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// TagTree implements Adapter.
func (a *SSHAdapter) TagTree(ctx context.Context, tag string) ([]FileEntry, error) {
	out, err := a.run(ctx, "tree", tag)
	if err != nil {
		return nil, err
	}
	return parseManifest(out)
}

func splitNonEmptyLines(b []byte) []string {
	var out []string
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			out = append(out, string(line))
		}
	}
	return out
}
