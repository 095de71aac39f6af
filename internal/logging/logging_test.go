package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "", want: slog.LevelInfo},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: " warn ", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on a bare context")
	}

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)
	ctx := ContextWithLogger(context.Background(), logger)
	FromContext(ctx).Debug("hidden")
	FromContext(ctx).Info("visible", "room", "ten@example.com")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %s", out)
	}
	if !strings.Contains(out, `"room":"ten@example.com"`) {
		t.Fatalf("expected JSON attribute in output: %s", out)
	}
}
