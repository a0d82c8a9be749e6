package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"slowmovie/internal/config"
	"slowmovie/internal/extract"
	"slowmovie/internal/media/ffprobe"
	"slowmovie/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	extractor  *testsupport.FakeExtractor
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	fake := testsupport.NewFakeExtractor(100)
	previous := newExtractor
	newExtractor = func(*config.Config) extract.Extractor { return fake }
	t.Cleanup(func() { newExtractor = previous })

	return &cliTestEnv{cfg: cfg, configPath: configPath, extractor: fake}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func stubInspect(t *testing.T, payload string) {
	t.Helper()
	previous := inspectVideo
	inspectVideo = func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		return ffprobe.Parse([]byte(payload))
	}
	t.Cleanup(func() { inspectVideo = previous })
}
