// Package engine manages the JS toolchain sidecar used for bundling and
// server-side rendering. The sidecar is spawned once per build and speaks
// JSON over HTTP on a unix socket whose path it receives via environment.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/winterholm/staticpress/internal/logfields"
)

// SocketEnv is the environment variable carrying the socket path to the
// harness script.
const SocketEnv = "STATICPRESS_SOCKET"

const defaultWaitTimeout = 5 * time.Second

// Options configures the sidecar process.
type Options struct {
	Runtime     string        // runtime binary resolved via PATH, e.g. "bun"
	Harness     string        // harness script executed by the runtime
	Args        []string      // extra runtime arguments placed before the script
	Dir         string        // working directory; empty means inherit
	WaitTimeout time.Duration // how long to wait for the socket, 0 = 5s
}

// Engine is a handle to a running sidecar. Safe for concurrent use; the
// underlying HTTP client serializes nothing and the harness is expected to
// handle parallel requests.
type Engine struct {
	cmd    *exec.Cmd
	socket string
	client *http.Client
}

// Start spawns the sidecar and waits until its socket accepts requests.
// The process is bound to ctx: cancellation kills it.
func Start(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Harness == "" {
		return nil, fmt.Errorf("engine: no harness script configured")
	}
	runtime := opts.Runtime
	if runtime == "" {
		runtime = "bun"
	}
	timeout := opts.WaitTimeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	socket := filepath.Join(os.TempDir(), fmt.Sprintf("staticpress-%d.sock", os.Getpid()))
	args := append([]string{"run"}, opts.Args...)
	args = append(args, opts.Harness)

	cmd := exec.CommandContext(ctx, runtime, args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), SocketEnv+"="+socket)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.Debug("Starting render runtime", logfields.Name(runtime), logfields.Path(opts.Harness))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("engine: start %s: %w", runtime, err)
	}

	if err := waitForSocket(ctx, socket, timeout); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return net.Dial("unix", socket)
		},
	}

	return &Engine{
		cmd:    cmd,
		socket: socket,
		client: &http.Client{Transport: transport},
	}, nil
}

func waitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("engine: timeout waiting for runtime socket at %s", path)
}

// PostJSON sends one JSON request to the sidecar and decodes the JSON
// response into result. Endpoint semantics belong to the caller.
func (e *Engine) PostJSON(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("engine: encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://localhost"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("engine: decode %s response: %w", endpoint, err)
	}
	return nil
}

// Close kills the sidecar and removes its socket. Callers defer it as soon
// as Start succeeds.
func (e *Engine) Close() error {
	if e.socket != "" {
		defer os.Remove(e.socket)
	}
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	return e.cmd.Process.Kill()
}
