package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptCmd_Random(t *testing.T) {
	out, _, err := runCLI(t, "prompt", "--count", "3", "--input-length", "10", "--seed", "7")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 30)
		assert.True(t, strings.HasPrefix(l, "Please explain"), l)
	}

	again, _, err := runCLI(t, "prompt", "--count", "3", "--input-length", "10", "--seed", "7")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestPromptCmd_Fixed(t *testing.T) {
	out, _, err := runCLI(t, "prompt", "--type", "fixed", "--fixed", "Say hello", "--estimate")
	require.NoError(t, err)
	assert.Equal(t, "[~2 tokens] Say hello\n", out)
}

func TestPromptCmd_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompt:\n  prompt_type: fixed\n  fixed_prompt: from config\n"), 0644))

	out, _, err := runCLI(t, "prompt", "--config", path, "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "from config\nfrom config\n", out)
}

func TestPromptCmd_Errors(t *testing.T) {
	_, _, err := runCLI(t, "prompt", "--count", "0")
	assert.Error(t, err)

	_, _, err = runCLI(t, "prompt", "--type", "lorem")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt.prompt_type")
}
