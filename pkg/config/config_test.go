package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RECON_OUTPUT_ROOT", "RECON_DEBUG", "RECON_LOG_JSON", "RECON_AUDIT_DB",
		"RECON_NACHA", "RECON_ODFI_ROUTING", "RECON_COMPANY_ID", "RECON_COMPANY_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./output", cfg.Output.Root)
	assert.True(t, cfg.Output.Audit)
	assert.False(t, cfg.NACHA.Enabled)
	assert.NoError(t, cfg.Validate([]string{"output", "root"}))
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"RECON_OUTPUT_ROOT=/tmp/recon\nRECON_AUDIT_DB=false\nRECON_NACHA=true\n"+
			"RECON_ODFI_ROUTING=067014822\nRECON_COMPANY_ID=1650000001\nRECON_COMPANY_NAME=CARROT EXPRESS\n"), 0o644))
	// godotenv does not override variables that are already set, even to "".
	for _, k := range []string{"RECON_OUTPUT_ROOT", "RECON_AUDIT_DB", "RECON_NACHA", "RECON_ODFI_ROUTING", "RECON_COMPANY_ID", "RECON_COMPANY_NAME"} {
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/recon", cfg.Output.Root)
	assert.False(t, cfg.Output.Audit)
	assert.True(t, cfg.NACHA.Enabled)
	assert.NoError(t, cfg.Validate([]string{"nacha", "odfiRouting"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"nacha off needs nothing", Config{Output: OutputConfig{Root: "out"}}, false},
		{"nacha on needs originator", Config{Output: OutputConfig{Root: "out"}, NACHA: NACHAConfig{Enabled: true}}, true},
		{"routing must be nine digits", Config{Output: OutputConfig{Root: "out"}, NACHA: NACHAConfig{Enabled: true, ODFIRouting: "12345", CompanyID: "1", CompanyName: "X"}}, true},
		{"complete", Config{Output: OutputConfig{Root: "out"}, NACHA: NACHAConfig{Enabled: true, ODFIRouting: "067014822", CompanyID: "1650000001", CompanyName: "CARROT"}}, false},
		{"missing root", Config{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvalidBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECON_NACHA", "maybe")
	chdir(t, t.TempDir())

	_, err := Load()
	assert.ErrorContains(t, err, "RECON_NACHA")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
