package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docent"
	"github.com/poiesic/docent/ai/mock"
)

type harness struct {
	gen *mock.MockGenerator
	db  string
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range []string{"DOCENT_LLM_API_KEY", "DOCENT_LLM_BACKEND", "DOCENT_LLM_HOST", "DOCENT_LLM_MODEL", "DOCENT_WATCH_ROOT", "DOCENT_STORAGE_PATH"} {
		t.Setenv(key, "")
	}
	return &harness{
		gen: mock.NewMockGenerator(),
		db:  filepath.Join(t.TempDir(), "db"),
		dir: t.TempDir(),
	}
}

// run executes the CLI with a fresh app and returns its output.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp(docent.WithProvider(mock.NewMockProviderWithGenerator(h.gen)))
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"docent", "--config", filepath.Join(h.dir, "absent.toml"), "--db", h.db}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "--log-level", "verbose", "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	for _, level := range []string{"debug", "INFO", "warn", "error"} {
		_, err := h.run(t, "--log-level", level, "docs")
		assert.NoError(t, err, level)
	}
}

func TestIngestAskHistory(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "q1_report.txt"), []byte("Q1 revenue grew 12%."), 0o644))

	out, err := h.run(t, "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "no documents")

	out, err = h.run(t, "ingest", h.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "q1_report.txt")

	out, err = h.run(t, "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "q1 report")
	assert.Contains(t, out, "topics: general")

	out, err = h.run(t, "docs", "--topic", "astronomy")
	require.NoError(t, err)
	assert.Contains(t, out, "no documents")

	h.gen.Enqueue(`{"action": "final_answer", "answer": "Revenue grew 12%."}`)
	out, err = h.run(t, "ask", "--session", "s1", "How", "did", "revenue", "change?")
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue grew 12%.")
	assert.Contains(t, out, "session: s1")

	out, err = h.run(t, "history", "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Q: How did revenue change?")
	assert.Contains(t, out, "A: Revenue grew 12%.")

	out, err = h.run(t, "history", "--session", "unknown")
	require.NoError(t, err)
	assert.Contains(t, out, "no history")
}

func TestAsk_NewSession(t *testing.T) {
	h := newHarness(t)
	h.gen.Enqueue(`{"action": "final_answer", "answer": "Nothing yet."}`)

	out, err := h.run(t, "ask", "Anything?")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing yet.")
	assert.Regexp(t, `session: [0-9a-f-]{36}`, out)
}

func TestCommandArguments(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "ask")
	assert.ErrorContains(t, err, "question is required")

	_, err = h.run(t, "ingest")
	assert.ErrorContains(t, err, "at least one path")

	_, err = h.run(t, "history")
	assert.ErrorContains(t, err, "session")
}

func TestIngest_FailureExitCode(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "broken.pdf"), []byte("not a pdf"), 0o644))

	out, err := h.run(t, "ingest", h.dir)
	require.Error(t, err)
	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode())
	assert.Contains(t, out, "failed")
	assert.Equal(t, 0, h.gen.CallCount(), "nothing reaches the provider")
}

func TestReenrich(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "notes.md"), []byte("# Notes\n\nShip the beta."), 0o644))

	_, err := h.run(t, "ingest", h.dir)
	require.NoError(t, err)

	h.gen.Enqueue(`{"topics": ["planning"]}`, "Beta ships soon.")
	out, err := h.run(t, "reenrich", "--batch-size", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "re-enriched 1 documents (0 skipped)")

	out, err = h.run(t, "docs", "--topic", "planning")
	require.NoError(t, err)
	assert.Contains(t, out, "topics: planning")

	out, err = h.run(t, "reenrich", "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "re-enriched 1 documents")
}
