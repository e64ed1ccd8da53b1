package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigman78/webextract/internal/extract"
)

// subprocessEnv is set in the re-executed subprocess so it knows to call main()
// directly instead of spawning another child.
const subprocessEnv = "WEBEXTRACT_TEST_SUBPROCESS"

// runSubprocess re-executes the test binary running only the named test,
// with subprocessEnv set so the test calls main() and lets os.Exit fire.
// Returns the *exec.ExitError (nil means exit 0).
func runSubprocess(t *testing.T, testName string) error {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run="+testName)
	cmd.Env = append(os.Environ(), subprocessEnv+"=1")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// TestHelpExitsZero verifies that --help prints usage and exits with code 0.
func TestHelpExitsZero(t *testing.T) {
	if os.Getenv(subprocessEnv) == "1" {
		os.Args = []string{"webextract", "--help"}
		main()
		return // unreachable; main calls os.Exit
	}
	if err := runSubprocess(t, "TestHelpExitsZero"); err != nil {
		t.Fatalf("expected exit 0 for --help, got: %v", err)
	}
}

// TestUnknownFlagExitsTwo verifies that an unrecognised flag exits with code 2.
func TestUnknownFlagExitsTwo(t *testing.T) {
	if os.Getenv(subprocessEnv) == "1" {
		os.Args = []string{"webextract", "--this-flag-does-not-exist"}
		main()
		return // unreachable; main calls os.Exit
	}
	err := runSubprocess(t, "TestUnknownFlagExitsTwo")
	if err == nil {
		t.Fatal("expected non-zero exit for unknown flag, got exit 0")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() != 2 {
		t.Fatalf("expected exit code 2, got %d", exitErr.ExitCode())
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"too many arguments", []string{"a.com", "out", "extra"}, 2},
		{"bad flag value", []string{"--threads", "many", "a.com"}, 2},
		{"missing URL", nil, 1},
		{"zero threads", []string{"--threads", "0", "a.com"}, 1},
		{"unsupported scheme", []string{"ftp://a.com/"}, 1},
		{"unknown output mode", []string{"--mode", "pdf", "a.com"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tc.args...)
			assert.Equal(t, tc.code, code, stderr)
			assert.Contains(t, stderr, "error")
		})
	}
}

func TestVersionFlag(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "webextract dev")
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><link rel="stylesheet" href="s.css"></head><body><img src="a.png"></body></html>`))
		case "/s.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte(`p{background:url(a.png)}`))
		case "/a.png":
			_, _ = w.Write([]byte("png"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunWritesHTMLPage(t *testing.T) {
	srv := newTestSite(t)
	out := filepath.Join(t.TempDir(), "site")

	code, stdout, stderr := runCLI(t, srv.URL, out, "--html", "--loglevel", "error")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "index.html")
	assert.Contains(t, stdout, "2 fetched")

	page, err := os.ReadFile(filepath.Join(out, extract.HTMLFileName))
	require.NoError(t, err)
	assert.Contains(t, string(page), "images/a-"+extract.Fingerprint(srv.URL+"/a.png")+".png")
	assert.FileExists(t, filepath.Join(out, extract.WhitelistFileName))
	assert.FileExists(t, filepath.Join(out, extract.ManifestFileName))
}

func TestRunDefaultsToTemplate(t *testing.T) {
	srv := newTestSite(t)
	out := t.TempDir()

	code, _, stderr := runCLI(t, "--url", srv.URL, "--directory", out, "--loglevel", "error")
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(out, extract.TemplateFileName))
}

func TestRunMissingSuppliedFile(t *testing.T) {
	out := t.TempDir()
	code, _, stderr := runCLI(t, "http://example.invalid/", out, "--file", filepath.Join(out, "nope.html"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "supplied HTML file not found")
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("WEBEXTRACT_THREADS", "0")
	code, _, stderr := runCLI(t, "a.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--threads")
}

func TestConfigFile(t *testing.T) {
	srv := newTestSite(t)
	out := t.TempDir()
	conf := filepath.Join(t.TempDir(), "webextract.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("html: true\nloglevel: error\ndirectory: "+out+"\n"), 0o600))

	code, _, stderr := runCLI(t, srv.URL, "--config", conf)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(out, extract.HTMLFileName))
}

func TestBuildConfig(t *testing.T) {
	v := viper.New()
	v.Set("threads", 3)
	v.Set("timeout", "5s")
	v.Set("videos", true)
	log := logrus.New()

	cfg, err := buildConfig(v, []string{"www.example.com/shop"}, log)
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.com/shop", cfg.SourceURL)
	assert.Equal(t, filepath.Join("websites", "example.com"), cfg.Directory)
	assert.Equal(t, extract.OutputTemplate, cfg.OutputMode)
	assert.Equal(t, 3, cfg.Workers)
	assert.True(t, cfg.DownloadVideos)
	assert.Same(t, log, cfg.Logger)

	// Explicit --url and --directory win over positional arguments.
	v.Set("url", "http://other.org/")
	v.Set("directory", "explicit")
	cfg, err = buildConfig(v, []string{"www.example.com", "positional"}, log)
	require.NoError(t, err)
	assert.Equal(t, "http://other.org/", cfg.SourceURL)
	assert.Equal(t, "explicit", cfg.Directory)
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("chatty", &buf)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.True(t, strings.Contains(buf.String(), "not recognized"))

	assert.Equal(t, logrus.DebugLevel, newLogger("debug", &buf).GetLevel())
}

func TestRunModeFlag(t *testing.T) {
	srv := newTestSite(t)
	out := t.TempDir()

	code, _, stderr := runCLI(t, srv.URL, out, "--mode", "html", "--loglevel", "error")
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(out, extract.HTMLFileName))
	assert.NoFileExists(t, filepath.Join(out, extract.TemplateFileName))
}

func TestBuildConfigMode(t *testing.T) {
	cases := []struct {
		mode string
		html bool
		want extract.OutputMode
	}{
		{"", false, extract.OutputTemplate},
		{"ftl", false, extract.OutputTemplate},
		{"HTML", false, extract.OutputHTML},
		{"template", true, extract.OutputHTML},
	}
	for _, tc := range cases {
		v := viper.New()
		v.Set("threads", 1)
		v.Set("timeout", "1s")
		v.Set("mode", tc.mode)
		v.Set("html", tc.html)
		cfg, err := buildConfig(v, []string{"example.com"}, logrus.New())
		require.NoError(t, err)
		assert.Equal(t, tc.want, cfg.OutputMode, "mode %q html %v", tc.mode, tc.html)
	}

	t.Setenv("WEBEXTRACT_MODE", "nonsense")
	code, _, stderr := runCLI(t, "a.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--mode")
}
