package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), runtime.Version())

	info := Get()
	require.Equal(t, Version, info.Version)
	require.NotEmpty(t, info.Commit)
	require.NotEmpty(t, info.BuildTime)
}

// TestVersionCommand prints the full and short forms.
func TestVersionCommand(t *testing.T) {
	t.Parallel()

	run := func(args ...string) string {
		root := &cobra.Command{Use: "alarm-gateway"}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer

		root.SetOut(&out)
		root.SetArgs(args)
		require.NoError(t, root.Execute())

		return strings.TrimSpace(out.String())
	}

	require.Equal(t, Short(), run("version", "--short"))
	require.Equal(t, Full(), run("version"))
}
