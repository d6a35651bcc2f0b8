package rediscontainer

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/adeilh/carefeed/internal/testutil/docker"
)

const hostPort = "6390"

var container = &docker.Container{
	Dockerfile:    "Dockerfile.redis.test",
	Image:         "carefeed-redis-test",
	Name:          "carefeed-redis-test",
	HostPort:      hostPort,
	ContainerPort: "6379",
	Ready:         ping,
	ReadyTimeout:  5 * time.Second,
}

// Addr exposes the Redis host:port combination used by integration tests.
func Addr() string { return "127.0.0.1:" + hostPort }

// Setup builds the Redis test image, runs it, and waits for PING/PONG.
func Setup() error { return container.Start() }

// Teardown stops the Redis container if it is running.
func Teardown() error { return container.Stop() }

func ping() error {
	conn, err := net.DialTimeout("tcp", Addr(), 200*time.Millisecond)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.Contains(line, "PONG") {
		return errors.New("unexpected ping reply: " + line)
	}
	return nil
}
