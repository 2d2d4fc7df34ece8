package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"timedtext/internal/descriptor"
	"timedtext/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	docPath    string
	storePath  string
	logDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TIMEDTEXT_LOG_LEVEL", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "timedtext.toml"),
		storePath:  filepath.Join(base, "data", "captions.db"),
		logDir:     filepath.Join(base, "logs"),
	}
	writeTestConfig(t, env)

	doc := descriptor.Document{
		Title: "Interview",
		Segments: []descriptor.Segment{
			testsupport.Segment("intro", "a.mp4", 0, 4,
				testsupport.Child("p1", 0, 4, "Hello there. Welcome back."),
			),
			testsupport.Segment("outro", "a.mp4", 6, 10,
				testsupport.Child("p2", 6, 10, "Thanks for watching."),
			),
		},
	}
	env.docPath = testsupport.WriteDocument(t, base, "interview.yaml", doc)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
log_dir = %q

[store]
path = %q

[simulation]
buffer_ms = 20
seek_ms = 5
update_hz = 20.0
speed = 4.0

[logging]
level = "warn"
`, env.logDir, env.storePath)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
