package inspect

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/carrotexpress/backoffice/pkg/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"UE_0210.csv": "Location,Order Date,Account,Amount\n" +
			"Flatiron,02/04/2025,UE Delivery,10.00\n" +
			",,,\n" +
			"Flatiron,02/04/2025,UE Delivery,5.00\n",
		"Grubhub_0117.csv": "Restaurant,Subtotal\nBrickell,1.00\n",
		"notes.txt":        "not an export\n",
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	return dir
}

func TestFiles(t *testing.T) {
	reports, err := Files(context.Background(), []string{writeInputs(t)})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	gh := reports[0]
	assert.Equal(t, tabular.RoleGrubHub, gh.Role)
	assert.False(t, gh.OK())
	assert.Equal(t, reconerr.KindMissingColumn, reconerr.KindOf(gh.Err))
	assert.Contains(t, gh.Missing, "Merchant net total")
	assert.Equal(t, "MissingColumn", gh.Status())

	ue := reports[1]
	assert.Equal(t, tabular.RoleUberEats, ue.Role)
	assert.True(t, ue.OK())
	assert.Equal(t, tabular.EncodingUTF8, ue.Encoding)
	assert.Equal(t, 2, ue.Rows)

	assert.Equal(t, "notes.txt", filepath.Base(reports[2].Path))
	assert.Equal(t, "IGNORED", reports[2].Status())
}

func TestPrint(t *testing.T) {
	reports, err := Files(context.Background(), []string{writeInputs(t)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, reports))
	out := buf.String()
	assert.Contains(t, out, "UE_0210.csv")
	assert.Contains(t, out, "IGNORED")
	assert.Contains(t, out, "Re-export the report")
}

func TestFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Files(ctx, []string{writeInputs(t)})
	assert.ErrorIs(t, err, context.Canceled)
}
