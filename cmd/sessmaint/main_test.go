package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupCmdFlags(t *testing.T) {
	tests := []struct {
		name            string
		args            []string
		wantFormat      string
		wantMaxAgeHours int64
	}{
		{
			name:            "defaults",
			args:            []string{},
			wantFormat:      "text",
			wantMaxAgeHours: 0,
		},
		{
			name:            "format override",
			args:            []string{"--format", "json"},
			wantFormat:      "json",
			wantMaxAgeHours: 0,
		},
		{
			name:            "policy override",
			args:            []string{"--max-age-hours", "72", "--format", "yaml"},
			wantFormat:      "yaml",
			wantMaxAgeHours: 72,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags
			cleanupFormat = "text"
			cleanupMaxAgeHours = 0

			_ = cleanupCmd.ParseFlags(tt.args)

			if cleanupFormat != tt.wantFormat {
				t.Errorf("cleanupFormat = %v, want %v", cleanupFormat, tt.wantFormat)
			}
			if cleanupMaxAgeHours != tt.wantMaxAgeHours {
				t.Errorf("cleanupMaxAgeHours = %v, want %v", cleanupMaxAgeHours, tt.wantMaxAgeHours)
			}
		})
	}
}

func TestCommandStructure(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}

	expectedCommands := []string{"version", "config", "analyze", "cleanup", "migrate", "serve"}
	foundCommands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected command '%s' not found in rootCmd", expected)
		}
	}
}

func TestRootRunsCleanupByDefault(t *testing.T) {
	require.NotNil(t, rootCmd.Run, "bare invocation must run a pass, not print help")

	tempDir := t.TempDir()
	storePath := filepath.Join(tempDir, "sessions.json")
	require.NoError(t, os.WriteFile(storePath, []byte(`{"sessions": []}`), 0644))

	flagConfigPath = ""
	flagStorePath = storePath
	flagLogLevel = "error"
	cleanupFormat = "text"
	cleanupMaxAgeHours = 0
	cleanupMaxInactiveHours = 0
	cleanupSizeThreshold = 0
	t.Cleanup(func() {
		flagStorePath = ""
		flagLogLevel = ""
		cleanupFormat = "text"
	})

	rootCmd.Run(rootCmd, nil)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	backups := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup.") {
			backups++
		}
	}
	assert.Equal(t, 1, backups, "default mode must run the backup-guarded cleanup pass")
}

func TestLoadSetupDefaults(t *testing.T) {
	flagConfigPath = ""
	flagStorePath = ""
	flagLogLevel = ""
	t.Cleanup(func() {
		flagConfigPath = ""
		flagStorePath = ""
		flagLogLevel = ""
	})

	cfg, log, err := loadSetup()
	require.NoError(t, err)
	require.NotNil(t, log)

	assert.Equal(t, int64(168), cfg.Policy.MaxSessionAgeHours)
	assert.Equal(t, int64(24), cfg.Policy.MaxInactiveAgeHours)
	assert.Equal(t, 10*1024, cfg.Optimizer.SessionSizeThresholdBytes)
}

func TestLoadSetupFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sessmaint.toml")
	configContent := `
[store]
path = "/tmp/sessions.json"

[policy]
max_session_age_hours = 72

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	flagConfigPath = configPath
	flagStorePath = ""
	flagLogLevel = ""
	t.Cleanup(func() {
		flagConfigPath = ""
	})

	cfg, _, err := loadSetup()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/sessions.json", cfg.Store.Path)
	assert.Equal(t, int64(72), cfg.Policy.MaxSessionAgeHours)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset sections fall back to defaults.
	assert.Equal(t, int64(24), cfg.Policy.MaxInactiveAgeHours)
}

func TestLoadSetupFlagOverrides(t *testing.T) {
	flagConfigPath = ""
	flagStorePath = "/tmp/other-sessions.json"
	flagLogLevel = "warn"
	t.Cleanup(func() {
		flagStorePath = ""
		flagLogLevel = ""
	})

	cfg, _, err := loadSetup()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other-sessions.json", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadSetupRejectsInvalidLevel(t *testing.T) {
	flagConfigPath = ""
	flagStorePath = ""
	flagLogLevel = "loud"
	t.Cleanup(func() {
		flagLogLevel = ""
	})

	_, _, err := loadSetup()
	assert.Error(t, err)
}
