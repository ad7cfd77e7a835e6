// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/cli/config"
	"github.com/leapstack-labs/workbench/internal/cli/output"
	"github.com/leapstack-labs/workbench/internal/profiles"
	itestutil "github.com/leapstack-labs/workbench/internal/testutil"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// SetupConfigDir creates a config directory holding a connections file with
// a seeded SQLite profile called name.
func SetupConfigDir(t *testing.T, name string) (dir string, profile core.ConnectionProfile) {
	t.Helper()

	dir = t.TempDir()
	profile = itestutil.SQLiteProfile(t, name)
	store := profiles.NewStore(dir + "/" + config.DefaultConnectionsFile)
	if err := store.Add(profile); err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}
	return dir, profile
}

// Result is the captured outcome of a command run.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// Run executes cmd below a root carrying the global flags, loading the
// config from configDir the way the real root command does. stdin may be
// nil.
func Run(t *testing.T, configDir string, stdin io.Reader, cmd *cobra.Command, args ...string) Result {
	t.Helper()

	root := &cobra.Command{
		Use:           "workbench",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "")
	flags.String("config-dir", "", "")
	flags.StringP("connection", "c", "", "")
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.String("log-level", "", "")

	root.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		cfg, err := config.Load("", c.Root().PersistentFlags())
		if err != nil {
			return err
		}
		ctx := config.WithConfig(c.Context(), cfg)
		ctx = config.WithLogger(ctx, itestutil.NewTestLogger(t))
		c.SetContext(ctx)
		return nil
	}
	root.AddCommand(cmd)

	if stdin == nil {
		stdin = strings.NewReader("")
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetIn(stdin)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(append([]string{"--config-dir", configDir}, args...))

	err := root.ExecuteContext(context.Background())
	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
