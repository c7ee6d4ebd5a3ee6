package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Track", "Status", "Message"}, [][]string{
		{"0", "captured"},
		{"1", "absent", "index pulses 2/3", "dropped"},
	}, []columnAlignment{alignRight})
	for _, want := range []string{"TRACK", "captured", "index pulses 2/3"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if strings.Contains(out, "dropped") {
		t.Fatalf("expected extra cell to be dropped:\n%s", out)
	}
	if lines := strings.Count(out, "\n") + 1; lines != 6 {
		t.Fatalf("expected 6 rendered lines, got %d:\n%s", lines, out)
	}
}

func TestRenderTableWithoutHeaders(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
