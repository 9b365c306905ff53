package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumematch/internal/common"
	"resumematch/internal/errors"
)

func setJobFlags(t *testing.T, file, text string) {
	t.Helper()
	prevFile, prevText := checkJobFile, checkJobText
	checkJobFile, checkJobText = file, text
	t.Cleanup(func() { checkJobFile, checkJobText = prevFile, prevText })
}

func TestReadJobDescription(t *testing.T) {
	fp := common.NewFileProcessor(nil)

	t.Run("from flag text", func(t *testing.T) {
		setJobFlags(t, "", "Go developer")
		got, err := readJobDescription(fp, strings.NewReader("ignored"))
		require.NoError(t, err)
		assert.Equal(t, "Go developer", got)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "job.txt")
		require.NoError(t, os.WriteFile(path, []byte("Kubernetes operator"), 0o600))
		setJobFlags(t, path, "")

		got, err := readJobDescription(fp, strings.NewReader("ignored"))
		require.NoError(t, err)
		assert.Equal(t, "Kubernetes operator", got)
	})

	t.Run("from stdin", func(t *testing.T) {
		setJobFlags(t, "", "")
		got, err := readJobDescription(fp, strings.NewReader("Python and Docker\n"))
		require.NoError(t, err)
		assert.Equal(t, "Python and Docker\n", got)
	})

	t.Run("empty stdin", func(t *testing.T) {
		setJobFlags(t, "", "")
		_, err := readJobDescription(fp, strings.NewReader("  \n"))
		require.Error(t, err)
		assert.Equal(t, errors.MsgMissingInput, errors.UserMessage(err))
	})

	t.Run("missing file", func(t *testing.T) {
		setJobFlags(t, filepath.Join(t.TempDir(), "nope.txt"), "")
		_, err := readJobDescription(fp, strings.NewReader(""))
		require.Error(t, err)
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "resumematch version "+Version)
}

func TestContextHelpersWithoutRuntime(t *testing.T) {
	ctx := t.Context()

	_, err := getConfigFromContext(ctx)
	require.Error(t, err)
	_, err = getLoggerFromContext(ctx)
	require.Error(t, err)
	assert.Nil(t, getSecretsFromContext(ctx))
}
