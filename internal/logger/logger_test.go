package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WithValidConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid json config stdout",
			config: Config{
				Level:  "debug",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "valid text config stderr",
			config: Config{
				Level:  "info",
				Format: "text",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: true,
		},
		{
			name: "invalid format",
			config: Config{
				Level:  "debug",
				Format: "xml",
				Output: "stdout",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger without error")
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sessmaint.log")

	logger, err := New(Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("pass finished", Field{Key: "removed", Value: 3})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"removed":3`) {
		t.Errorf("log file missing structured field: %s", data)
	}
	if !strings.Contains(string(data), "pass finished") {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessmaint.log")

	logger, err := New(Config{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.With(Field{Key: "pass_id", Value: "abc"}).Info("evicting session")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"pass_id":"abc"`) {
		t.Errorf("attached field missing: %s", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessmaint.log")

	logger, err := New(Config{Level: "warn", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("not recorded")
	logger.Info("also not recorded")
	logger.Warn("recorded")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "not recorded") {
		t.Errorf("filtered levels leaked: %s", data)
	}
	if !strings.Contains(string(data), "recorded") {
		t.Errorf("warn message missing: %s", data)
	}
}
