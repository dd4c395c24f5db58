package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInspectCommand(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "UE_0210.csv"),
		[]byte("Location,Order Date,Account,Amount\nFlatiron,02/04/2025,UE Delivery,10.00\n"), 0o644))

	out, err := execute(t, "inspect", "--in", in, "--out", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "UE_0210.csv")
	assert.Contains(t, out, "UE-JE-input")
}

func TestDeliveryUnknownPlatform(t *testing.T) {
	_, err := execute(t, "delivery", "--platform", "postmates", "--in", t.TempDir(), "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postmates")
}

func TestRunFailureWritesNothing(t *testing.T) {
	out := t.TempDir()
	stdout, err := execute(t, "royalty", "--in", t.TempDir(), "--out", out, "--no-audit")
	require.Error(t, err)
	assert.Contains(t, stdout, "royalty failed")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir() && e.Name()[0] == '.', "unexpected output %s", e.Name())
	}
}

func TestDueToFromHelpNamesGLInput(t *testing.T) {
	assert.Contains(t, dueToFromCmd.Long, "Due To/From rows of the ERP general ledger")
	assert.NotContains(t, dueToFromCmd.Long, "ACH batch")
}
