// Package docker starts throwaway service containers for integration tests.
package docker

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Container describes an image built from a Dockerfile at the repo root and
// published on a fixed host port.
type Container struct {
	Dockerfile    string
	Image         string
	Name          string
	HostPort      string
	ContainerPort string
	// Ready is polled until it returns nil or ReadyTimeout elapses.
	Ready        func() error
	ReadyTimeout time.Duration

	mu      sync.Mutex
	started bool
	err     error
}

// Start builds and runs the container once; later calls return the first result.
func (c *Container) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return c.err
	}
	c.started = true
	c.err = c.start()
	return c.err
}

func (c *Container) start() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker executable not found: %w", err)
	}
	_ = c.stop()
	root := RepoRoot()
	if err := run("build", "-f", filepath.Join(root, c.Dockerfile), "-t", c.Image, root); err != nil {
		return err
	}
	if err := run("run", "-d", "--rm", "--name", c.Name, "-p", c.HostPort+":"+c.ContainerPort, c.Image); err != nil {
		return err
	}
	return c.waitReady()
}

// Stop removes the container if Start succeeded.
func (c *Container) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.err != nil {
		return c.err
	}
	c.started = false
	return c.stop()
}

func (c *Container) stop() error {
	cmd := exec.Command("docker", "stop", c.Name)
	cmd.Dir = RepoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func (c *Container) waitReady() error {
	if c.Ready == nil {
		return nil
	}
	timeout := c.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := c.Ready(); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New(c.Name + " did not become ready in time")
}

func run(args ...string) error {
	cmd := exec.Command("docker", args...)
	cmd.Dir = RepoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

// RepoRoot returns the module root directory.
func RepoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}
