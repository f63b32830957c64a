package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompact(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"select 1", "select 1"},
		{"  select   1  ", "select 1"},
		{"SELECT discord_id\n\tFROM users\r\nWHERE status = $1", "SELECT discord_id FROM users WHERE status = $1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := compact(c.in); got != c.want {
			t.Fatalf("compact(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTracer_Levels(t *testing.T) {
	t.Parallel()

	type logLine struct {
		Level     string  `json:"level"`
		ElapsedMS float64 `json:"elapsed_ms"`
		Slow      bool    `json:"slow"`
		SQL       string  `json:"sql"`
		Error     string  `json:"error"`
		Message   string  `json:"message"`
		Component string  `json:"component"`
	}

	cases := []struct {
		name  string
		ev    QueryEvent
		level string
	}{
		{"plain", QueryEvent{SQL: "select 1", ElapsedUS: 1500}, "info"},
		{"slow", QueryEvent{SQL: "select 1", ElapsedUS: 900000, Slow: true}, "warn"},
		{"failed", QueryEvent{SQL: "select 1", Err: errors.New("boom"), Slow: true}, "error"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			// root level above debug must not hide traced statements
			tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))
			tr.OnQuery(context.Background(), c.ev)

			var line logLine
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
				t.Fatalf("unmarshal: %v raw=%s", err, buf.String())
			}
			if line.Level != c.level {
				t.Fatalf("level = %q, want %q", line.Level, c.level)
			}
			if line.Message != "pg query" || line.Component != "pg" || line.SQL != "select 1" {
				t.Fatalf("unexpected line: %+v", line)
			}
			if line.ElapsedMS != float64(c.ev.ElapsedUS)/1000.0 {
				t.Fatalf("elapsed_ms = %v", line.ElapsedMS)
			}
			if c.ev.Err != nil && line.Error != "boom" {
				t.Fatalf("error field = %q", line.Error)
			}
		})
	}
}
