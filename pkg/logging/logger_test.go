package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogLevel_UnmarshalText(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"Warning", LevelWarn, false},
		{"error", LevelError, false},
		{"disabled", LevelDisabled, false},
		{"verbose", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got LogLevel
			err := got.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("UnmarshalText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{LevelDisabled, zerolog.Disabled},
		{"WARNING", zerolog.WarnLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   LogLevel
		visible []string
		hidden  []string
	}{
		{LevelDebug, []string{"conditional", "fetched", "store down", "blocked"}, nil},
		{LevelInfo, []string{"fetched", "store down", "blocked"}, []string{"conditional"}},
		{LevelWarn, []string{"store down", "blocked"}, []string{"conditional", "fetched"}},
		{LevelError, []string{"blocked"}, []string{"conditional", "fetched", "store down"}},
		{LevelDisabled, nil, []string{"conditional", "fetched", "store down", "blocked"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			Setup(Config{Level: tt.level, Output: buf})
			defer Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})

			logger := NewLogger(ComponentClient)
			logger.Debug().Msg("conditional")
			logger.Info().Msg("fetched")
			logger.Warn().Msg("store down")
			logger.Error().Msg("blocked")

			output := buf.String()
			for _, msg := range tt.visible {
				if !strings.Contains(output, msg) {
					t.Errorf("expected %q at level %s, got %q", msg, tt.level, output)
				}
			}
			for _, msg := range tt.hidden {
				if strings.Contains(output, msg) {
					t.Errorf("did not expect %q at level %s", msg, tt.level)
				}
			}
		})
	}
}

func TestSetup_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:   LevelInfo,
		Output:  buf,
		Service: "gitfeed-proxy",
	})

	logger := ForURI(NewLogger(ComponentGrace), "https://api.github.com/user")
	logger.Info().Msg("Within grace period")

	output := buf.String()
	for _, want := range []string{
		`"service":"gitfeed-proxy"`,
		`"component":"grace-period"`,
		`"uri":"https://api.github.com/user"`,
		`"time":`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %s, got %q", want, output)
		}
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger := NewLogger(ComponentServer)
	logger.Info().Msg("gitfeed proxy ready")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("pretty output should not be JSON, got %q", output)
	}
	if !strings.Contains(output, "gitfeed proxy ready") {
		t.Errorf("missing message in %q", output)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo || cfg.Pretty || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}
