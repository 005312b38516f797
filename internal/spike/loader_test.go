package spike

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadRecordingCSV(t *testing.T) {
	in := "s,mV\n0.000,-60.0\n0.001,-59.5\n0.002,-58.0\n"
	tr, err := ReadRecordingCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRecordingCSV: %v", err)
	}
	if tr.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tr.Len())
	}
	if math.Abs(tr.SampleInterval()-0.001) > 1e-12 {
		t.Errorf("SampleInterval = %v, want 0.001", tr.SampleInterval())
	}
	if tr.StartOffset() != 0 {
		t.Errorf("StartOffset = %v, want 0", tr.StartOffset())
	}
	if tr.Voltage(2) != -58.0 {
		t.Errorf("Voltage(2) = %v, want -58.0", tr.Voltage(2))
	}
}

func TestReadRecordingCSV_NoHeader(t *testing.T) {
	in := "0.5,-60\n0.502,-55\n"
	tr, err := ReadRecordingCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRecordingCSV: %v", err)
	}
	if tr.Len() != 2 || tr.StartOffset() != 0.5 {
		t.Errorf("got Len=%d offset=%v, want 2 and 0.5", tr.Len(), tr.StartOffset())
	}
}

func TestReadRecordingCSV_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"bad column count", "0.0,-60\n0.001\n"},
		{"non-numeric body", "0.0,-60\n0.001,abc\n"},
		{"non-increasing time", "0.0,-60\n0.0,-59\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadRecordingCSV(strings.NewReader(tc.in)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestScanRecordings(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.CSV", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("0,0\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	names, err := ScanRecordings(dir)
	if err != nil {
		t.Fatalf("ScanRecordings: %v", err)
	}
	want := []string{"a.CSV", "b.csv"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
