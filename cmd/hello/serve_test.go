package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jimmyptl-jer/Docker/internal/config"
	"github.com/jimmyptl-jer/Docker/internal/port"
	"github.com/jimmyptl-jer/Docker/internal/responder"
)

const greeting = "Hello from Node.js in a Docker container!"

// syncBuffer is a bytes.Buffer safe for one writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

type running struct {
	stdout *syncBuffer
	errCh  chan error
	cancel context.CancelFunc
}

// startServe runs serve in the background and waits until addr answers.
func startServe(t *testing.T, env map[string]string, addr string) *running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{stdout: &syncBuffer{}, errCh: make(chan error, 1), cancel: cancel}

	opts := config.Options{Getenv: envMap(env)}
	go func() {
		r.errCh <- serve(ctx, opts, r.stdout, io.Discard)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-r.errCh:
		case <-time.After(5 * time.Second):
			t.Error("serve did not return after cancel")
		}
	})

	waitForBody(t, "http://"+addr+"/", greetingFor(env), r.errCh)
	return r
}

func greetingFor(env map[string]string) string {
	if g := env["HELLO_GREETING"]; g != "" {
		return g
	}
	return greeting
}

func waitForBody(t *testing.T, url, want string, errCh chan error) {
	t.Helper()
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			t.Fatalf("serve exited early: %v", err)
		default:
		}
		resp, err := client.Get(url)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			last = string(body)
			if resp.StatusCode == http.StatusOK && last == want {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to answer %q (last body %q)", url, want, last)
}

// pickPorts returns n distinct loopback ports that were free when checked.
// All listeners are held until every port is chosen so none repeats.
func pickPorts(t *testing.T, n int) []int {
	t.Helper()
	ports := make([]int, 0, n)
	for len(ports) < n {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("reserving port: %v", err)
		}
		defer ln.Close()
		ports = append(ports, ln.Addr().(*net.TCPAddr).Port)
	}
	return ports
}

func localAddr(p int) string {
	return fmt.Sprintf("127.0.0.1:%d", p)
}

func TestServeUsesPortFromEnv(t *testing.T) {
	ports := pickPorts(t, 2)
	configured, other := ports[0], ports[1]
	defaultFree := port.Available("127.0.0.1", port.Default)

	r := startServe(t, map[string]string{"PORT": fmt.Sprint(configured)}, localAddr(configured))

	want := fmt.Sprintf("Server is running on http://localhost:%d\n", configured)
	if got := r.stdout.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}

	if _, err := net.DialTimeout("tcp", localAddr(other), time.Second); err == nil {
		t.Errorf("connection to unconfigured port %d succeeded", other)
	}
	if defaultFree {
		if _, err := net.DialTimeout("tcp", localAddr(port.Default), time.Second); err == nil {
			t.Errorf("connection to default port %d succeeded while PORT=%d", port.Default, configured)
		}
	}
}

func TestServeDefaultPort(t *testing.T) {
	if !port.Available("", port.Default) {
		t.Skipf("port %d is in use on this host", port.Default)
	}
	r := startServe(t, nil, localAddr(port.Default))

	if got := r.stdout.String(); got != "Server is running on http://localhost:3000\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestServeInvalidPortFallsBackToDefault(t *testing.T) {
	if !port.Available("", port.Default) {
		t.Skipf("port %d is in use on this host", port.Default)
	}
	startServe(t, map[string]string{"PORT": "not-a-port"}, localAddr(port.Default))
}

func TestServeStrictPortRejectsInvalid(t *testing.T) {
	err := serve(context.Background(), config.Options{
		Getenv:     envMap(map[string]string{"PORT": "not-a-port"}),
		StrictPort: true,
	}, io.Discard, io.Discard)
	var bindErr *responder.BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected *responder.BindError, got %v", err)
	}
	if bindErr.Reason != responder.BindInvalid {
		t.Errorf("Reason = %q, want %q", bindErr.Reason, responder.BindInvalid)
	}
	var perr *port.Error
	if !errors.As(err, &perr) || perr.Value != "not-a-port" {
		t.Errorf("expected wrapped *port.Error for %q, got %v", "not-a-port", err)
	}
}

func TestServeScenario(t *testing.T) {
	p := pickPorts(t, 1)[0]
	startServe(t, map[string]string{"PORT": fmt.Sprint(p)}, localAddr(p))

	req, err := http.NewRequest(http.MethodGet, "http://"+localAddr(p)+"/anything", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Test", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /anything: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != greeting {
		t.Errorf("body = %q, want %q", body, greeting)
	}
}

func TestServeSecondInstanceFailsToBind(t *testing.T) {
	p := pickPorts(t, 1)[0]
	env := map[string]string{"PORT": fmt.Sprint(p)}
	startServe(t, env, localAddr(p))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := serve(ctx, config.Options{Getenv: envMap(env)}, io.Discard, io.Discard)

	var bindErr *responder.BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected *responder.BindError, got %v", err)
	}

	// First instance is unaffected.
	waitForBody(t, "http://"+localAddr(p)+"/", greeting, make(chan error))
}

func TestServeGreetingFromEnv(t *testing.T) {
	p := pickPorts(t, 1)[0]
	startServe(t, map[string]string{
		"PORT":           fmt.Sprint(p),
		"HELLO_GREETING": "custom greeting",
	}, localAddr(p))
}

func TestServeReloadsGreetingFromFile(t *testing.T) {
	p := pickPorts(t, 1)[0]
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.yaml")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("port: %d\ngreeting: first\n", p)), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, config.Options{ConfigFile: path, Getenv: envMap(nil)}, io.Discard, io.Discard)
	}()

	url := "http://" + localAddr(p) + "/"
	waitForBody(t, url, "first", errCh)

	// Let the watcher register before rewriting
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("port: %d\ngreeting: second\n", p)), 0644); err != nil {
		t.Fatal(err)
	}
	waitForBody(t, url, "second", errCh)

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("serve returned %v after cancel", err)
	}
}

func TestServeCancelReturnsNil(t *testing.T) {
	p := pickPorts(t, 1)[0]
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, config.Options{Getenv: envMap(map[string]string{"PORT": fmt.Sprint(p)})}, io.Discard, io.Discard)
	}()
	waitForBody(t, "http://"+localAddr(p)+"/", greeting, errCh)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("serve = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	if _, err := net.DialTimeout("tcp", localAddr(p), time.Second); err == nil {
		t.Error("port still accepting after shutdown")
	}
}
