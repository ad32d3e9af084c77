package report

import (
	"bytes"
	"testing"
)

func TestReporter(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"quiet", false, "[build] warning: 2 phantom classes\n"},
		{"verbose", true, "[build] loaded 3 classes\n[build] warning: 2 phantom classes\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := New(&buf, tt.verbose)
			r.Infof("build", "loaded %d classes", 3)
			r.Warnf("build", "%d phantom classes", 2)
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}
