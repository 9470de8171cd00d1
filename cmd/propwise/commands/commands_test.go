package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oeditus/propwise/pkg/report"
)

const codecSource = `defmodule Shop.Codec do
  def double(x), do: x * 2

  def save(data, path), do: File.write!(path, data)

  def encode(term), do: term |> :erlang.term_to_binary()

  def decode(bin), do: :erlang.binary_to_term(bin)
end
`

// project writes a one-file Elixir project and an empty config file and
// returns both paths.
func project(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	lib := filepath.Join(root, "lib", "shop")
	require.NoError(t, os.MkdirAll(lib, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "codec.ex"), []byte(codecSource), 0o600))

	return root, writeFile(t, ".propwise.yaml", "")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()

	return stdout.String(), err
}

func TestAnalyze_TextReport(t *testing.T) {
	t.Parallel()

	root, cfgPath := project(t)

	out, err := execute(t, "analyze", "--config", cfgPath, "--no-color", root)
	require.NoError(t, err)

	assert.Contains(t, out, "Shop.Codec.encode/1")
	assert.Contains(t, out, "Shop.Codec.encode/1 <-> Shop.Codec.decode/1")
	assert.NotContains(t, out, "Shop.Codec.save/2")
}

func TestAnalyze_JSONReportValidates(t *testing.T) {
	t.Parallel()

	root, cfgPath := project(t)

	out, err := execute(t, "analyze", "--config", cfgPath, "--format", "json", "--min-score", "4", root)
	require.NoError(t, err)

	var doc report.Document

	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 4, doc.Summary.TotalFunctions)
	assert.Equal(t, 4, doc.Summary.MinScore)
	assert.Equal(t, 1, doc.Summary.Impure)

	reportPath := writeFile(t, "report.json", out)

	validated, err := execute(t, "validate", "--no-color", reportPath)
	require.NoError(t, err)
	assert.Contains(t, validated, "Report is valid")
}

func TestAnalyze_ConfigAndFlagPrecedence(t *testing.T) {
	t.Parallel()

	root, _ := project(t)
	cfgPath := writeFile(t, ".propwise.yaml", "analysis:\n  min_score: 100\noutput:\n  no_color: true\n")

	out, err := execute(t, "analyze", "--config", cfgPath, root)
	require.NoError(t, err)
	assert.Contains(t, out, "consider lowering the threshold")

	out, err = execute(t, "analyze", "--config", cfgPath, "--min-score", "1", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Shop.Codec.double/1")
}

func TestAnalyze_RulesFile(t *testing.T) {
	t.Parallel()

	root, cfgPath := project(t)
	rulesPath := writeFile(t, "rules.yaml", "mode: replace\ninverse_conventions: []\n")

	out, err := execute(t, "analyze", "--config", cfgPath, "--no-color", "--rules", rulesPath, root)
	require.NoError(t, err)
	assert.NotContains(t, out, "<->")
}

func TestAnalyze_Errors(t *testing.T) {
	t.Parallel()

	root, cfgPath := project(t)

	_, err := execute(t, "analyze", "--config", cfgPath, "--format", "html", root)
	require.ErrorIs(t, err, report.ErrUnknownFormat)

	_, err = execute(t, "analyze", "--config", cfgPath, "--min-score", "-1", root)
	require.ErrorIs(t, err, ErrNegativeMinScore)

	_, err = execute(t, "analyze", "--config", cfgPath, "--rules", filepath.Join(root, "absent.yaml"), root)
	require.Error(t, err)
}

func TestAnalyze_ZeroMinScoreListsImpure(t *testing.T) {
	t.Parallel()

	root, cfgPath := project(t)

	out, err := execute(t, "analyze", "--config", cfgPath, "--format", "json", "--min-score", "0", root)
	require.NoError(t, err)

	var doc report.Document

	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 4, doc.Summary.Candidates)
	assert.Equal(t, "Shop.Codec.save/2", doc.Candidates[3].Function)
}

func TestMCP_NegativeMinScore(t *testing.T) {
	t.Parallel()

	_, cfgPath := project(t)

	_, err := execute(t, "mcp", "--config", cfgPath, "--min-score", "-1")
	require.ErrorIs(t, err, ErrNegativeMinScore)
}

func TestRules_PrintsEffectiveSet(t *testing.T) {
	t.Parallel()

	_, cfgPath := project(t)

	out, err := execute(t, "rules", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "side_effects:")
	assert.Contains(t, out, "inverse_conventions:")
	assert.Contains(t, out, "qualifier: IO")

	rulesPath := writeFile(t, "rules.yaml", "inverse_conventions:\n  - forward: wrap\n    inverse: unwrap\n")

	out, err = execute(t, "rules", "--config", cfgPath, "--rules", rulesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "forward: wrap")
	assert.Contains(t, out, "forward: encode")
}

func TestValidate_InvalidReport(t *testing.T) {
	t.Parallel()

	reportPath := writeFile(t, "report.json", `{"summary": {}, "candidates": []}`)

	out, err := execute(t, "validate", "--no-color", reportPath)
	require.ErrorIs(t, err, ErrReportInvalid)
	assert.Contains(t, out, "Report validation failed")
	assert.Contains(t, out, "inverse_pairs")
}

func TestValidate_NotJSON(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "validate", writeFile(t, "report.json", "nope"))
	require.ErrorIs(t, err, report.ErrInvalidReport)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "propwise ")
}
