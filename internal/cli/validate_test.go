package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/schema"
)

const danglingSketch = `{
  "model": {
    "variables": [{"id": "A", "name": "A", "annotation": "", "update_fn": ""}],
    "regulations": [
      {"source": "A", "target": "Ghost", "essential": "Unknown", "monotonicity": "Dual"}
    ],
    "uninterpreted_fns": null,
    "layout": {"id": "default", "name": "default", "nodes": {"A": {"x": 0, "y": 0}}}
  },
  "datasets": null,
  "stat_properties": null,
  "dyn_properties": null
}`

func TestValidateValidSketch(t *testing.T) {
	path := filepath.Join(scenarioDir, "two_nodes.json")

	out, err := execute(t, &RootOptions{Format: "text"}, NewValidateCommand, path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path+" (2 variables)")
	assert.Contains(t, out, "All sketches valid")
}

func TestValidateValidSketchJSON(t *testing.T) {
	path := filepath.Join(scenarioDir, "two_nodes.json")

	out, err := execute(t, &RootOptions{Format: "json"}, NewValidateCommand, path)
	require.NoError(t, err)

	var result ValidationResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	require.Len(t, result.Files, 1)
	assert.Equal(t, 2, result.Files[0].Variables)
}

func TestValidateIntegrityViolation(t *testing.T) {
	path := writeFile(t, "dangling.json", danglingSketch)

	out, err := execute(t, &RootOptions{Format: "text"}, NewValidateCommand, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+path)
	assert.Contains(t, out, "["+schema.ErrIntegrity+"]")
}

func TestValidateSyntaxError(t *testing.T) {
	path := writeFile(t, "broken.json", `{"model": `)

	out, err := execute(t, &RootOptions{Format: "json"}, NewValidateCommand, path)
	require.Error(t, err)

	var result ValidationResult
	resp := decode(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidSketch, resp.Error.Code)
	require.Len(t, result.Files, 1)
	assert.False(t, result.Files[0].Valid)
	require.NotEmpty(t, result.Files[0].Errors)
	assert.Equal(t, schema.ErrSyntax, result.Files[0].Errors[0].Code)
}

func TestValidateMixedFiles(t *testing.T) {
	valid := filepath.Join(scenarioDir, "two_nodes.json")
	invalid := writeFile(t, "dangling.json", danglingSketch)

	out, err := execute(t, &RootOptions{Format: "json"}, NewValidateCommand, valid, invalid)
	require.Error(t, err)

	var result ValidationResult
	decode(t, out, &result)
	assert.False(t, result.Valid)
	require.Len(t, result.Files, 2)
	assert.True(t, result.Files[0].Valid)
	assert.False(t, result.Files[1].Valid)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewValidateCommand, "/nonexistent/sketch.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "cannot read /nonexistent/sketch.json")
}

func TestValidateRequiresArgs(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewValidateCommand)
	require.Error(t, err)
}
