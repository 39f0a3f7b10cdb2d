package obslog

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewPrefixesComponentName(t *testing.T) {
	logger := New("orchestrator")

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetFlags(0)
	logger.Print("hello")

	if got := buf.String(); !strings.HasPrefix(got, "[orchestrator] ") {
		t.Fatalf("expected a prefixed log line, got %q", got)
	}
}
