package rtc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestPionLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	t.Cleanup(func() { log.Logger = orig })
	log.Logger = zerolog.New(&buf).Level(zerolog.TraceLevel)

	l := NewLoggerFactory().NewLogger("ice")
	l.Warnf("pair %d of %s", 3, "host")
	l.Infof("gathering %s", "done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	for _, want := range []string{`"level":"warn"`, `"scope":"ice"`, `"message":"pair 3 of host"`} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("warn line %s lacks %s", lines[0], want)
		}
	}
	// pion info is demoted to debug
	if !strings.Contains(lines[1], `"level":"debug"`) || !strings.Contains(lines[1], `"message":"gathering done"`) {
		t.Fatalf("info line = %s", lines[1])
	}
}
