package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/taskstream/core"
	"pkt.systems/taskstream/internal/appconfig"
	"pkt.systems/taskstream/internal/enginegrpc"
	"pkt.systems/taskstream/internal/script"
	"pkt.systems/taskstream/schema"
)

const runScript = `
task_id: task-42
steps:
  - mode: plan
    messages:
      - {type: say, say: text, text: "", partial: true, index: 0}
  - messages:
      - {type: say, say: api_req_started, text: "{}", index: 0}
      - {type: say, say: text, text: hello, index: 0}
  - raw: "{broken"
  - messages:
      - {type: say, say: api_req_started, text: "{}", index: 0}
      - {type: say, say: text, text: hello, index: 0}
      - {type: say, say: completion_result, text: done, index: 1}
`

func TestRunCommandEndToEnd(t *testing.T) {
	engine, address := startScriptEngine(t, runScript)

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"run", "-c", missingConfig(t), "--addr", address, "--dial-timeout", "5s", "write", "a", "haiku"})
	if err := root.ExecuteContext(testContext(t)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := stdout.String(); got != "...\nhello\nresult:\ndone\n" {
		t.Fatalf("unexpected stdout %q", got)
	}
	if !strings.Contains(stderr.String(), "warning: state decode") {
		t.Fatalf("expected decode warning on stderr, got %q", stderr.String())
	}
	tasks := engine.Tasks()
	if len(tasks) != 1 || tasks[0].Text != "write a haiku" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if tasks[0].Settings.Mode != schema.ModeAct || !tasks[0].Settings.AutoApproval.Actions.ReadFiles {
		t.Fatalf("expected default settings, got %+v", tasks[0].Settings)
	}
	if toggles := engine.Toggles(); len(toggles) != 1 || toggles[0] != schema.ModeAct {
		t.Fatalf("expected one toggle to act, got %v", toggles)
	}
}

func TestRunTaskStreamClosedWithoutCompletion(t *testing.T) {
	_, address := startScriptEngine(t, "steps:\n  - messages:\n      - {type: say, say: text, text: hi, index: 0}\n")
	cfg := loadTestConfig(t, address)
	cfg.Task.Mode = "plan"

	var stdout bytes.Buffer
	outcome, err := runTask(testContext(t), cfg, "hi", &stdout, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("runTask: %v", err)
	}
	if outcome.Status != core.StatusStreamClosed || outcome.Watermark != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if stdout.String() != "hi\n" {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
}

func TestRunTaskUnreachableEngine(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	address := listener.Addr().String()
	_ = listener.Close()

	cfg := loadTestConfig(t, address)
	cfg.Engine.DialTimeoutSeconds = 1
	_, err = runTask(testContext(t), cfg, "hi", &bytes.Buffer{}, &bytes.Buffer{})
	if core.ErrorKind(err) != core.EngineErrorConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestLoadRunConfigFlagOverrides(t *testing.T) {
	cmd := newRunCmd()
	if err := cmd.ParseFlags([]string{"--addr", "10.1.1.1:9", "--mode", "plan", "--no-auto-approve", "--max-requests", "7", "--dial-timeout", "3s"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	opts := runOptions{cfgPath: missingConfig(t), address: "10.1.1.1:9", mode: "plan", noAutoApprove: true, maxRequests: 7, dialTimeout: 3 * time.Second}
	cfg, err := loadRunConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.Engine.Address != "10.1.1.1:9" || cfg.Task.Mode != "plan" || cfg.Engine.DialTimeoutSeconds != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Task.AutoApproval.Enabled || cfg.Task.AutoApproval.MaxRequests != 7 {
		t.Fatalf("unexpected approval: %+v", cfg.Task.AutoApproval)
	}

	opts.mode = "build"
	if _, err := loadRunConfig(cmd, opts); err == nil {
		t.Fatalf("expected invalid mode to fail validation")
	}
}

func TestLoadRunConfigRejectsSubSecondDialTimeout(t *testing.T) {
	for _, value := range []string{"400ms", "1500ms", "-2s"} {
		cmd := newRunCmd()
		if err := cmd.ParseFlags([]string{"--dial-timeout", value}); err != nil {
			t.Fatalf("ParseFlags(%s): %v", value, err)
		}
		timeout, err := cmd.Flags().GetDuration("dial-timeout")
		if err != nil {
			t.Fatalf("GetDuration: %v", err)
		}
		opts := runOptions{cfgPath: missingConfig(t), dialTimeout: timeout}
		if _, err := loadRunConfig(cmd, opts); err == nil || !strings.Contains(err.Error(), "whole number of seconds") {
			t.Fatalf("%s: expected whole-seconds error, got %v", value, err)
		}
	}

	cmd := newRunCmd()
	if err := cmd.ParseFlags([]string{"--dial-timeout", "0"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	cfg, err := loadRunConfig(cmd, runOptions{cfgPath: missingConfig(t)})
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.Engine.DialTimeoutSeconds != 0 {
		t.Fatalf("expected explicit zero to disable the check, got %d", cfg.Engine.DialTimeoutSeconds)
	}
}

func TestTaskText(t *testing.T) {
	got, err := taskText([]string{"-"}, strings.NewReader("  from stdin\n"))
	if err != nil || got != "from stdin" {
		t.Fatalf("stdin: got %q, %v", got, err)
	}
	got, err = taskText([]string{"a", "b"}, nil)
	if err != nil || got != "a b" {
		t.Fatalf("args: got %q, %v", got, err)
	}
}

func TestWriterSinkStopsAfterWriteError(t *testing.T) {
	sink := newWriterSink(failingWriter{}, nil)
	sink.Display(context.Background(), schema.Message{Subkind: schema.SubkindText, Text: schema.StringPtr("hi")})
	if err := sink.writeErr(); err == nil || !errors.Is(err, errWriteFailed) {
		t.Fatalf("expected write error, got %v", err)
	}
	sink.Report(context.Background(), errors.New("ignored"))
}

var errWriteFailed = errors.New("write failed")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func startScriptEngine(t *testing.T, data string) (*script.Engine, string) {
	t.Helper()
	parsed, err := script.Parse([]byte(data))
	if err != nil {
		t.Fatalf("script.Parse: %v", err)
	}
	engine, err := script.NewEngine(parsed)
	if err != nil {
		t.Fatalf("script.NewEngine: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- enginegrpc.NewServer(enginegrpc.Config{}, engine).Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return engine, listener.Addr().String()
}

func loadTestConfig(t *testing.T, address string) appconfig.Config {
	t.Helper()
	cmd := newRunCmd()
	cfg, err := loadRunConfig(cmd, runOptions{cfgPath: missingConfig(t)})
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	cfg.Engine.Address = address
	return cfg
}

func missingConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("config unexpectedly exists at %s", path)
	}
	return path
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
