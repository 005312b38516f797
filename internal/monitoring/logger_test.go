package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("failed to persist run for %s: %v")
	if got == "" {
		t.Error("replacement logger was not called")
	}

	// nil installs a no-op, not a nil func.
	got = ""
	SetLogger(nil)
	Logf("dropped")
	if got != "" {
		t.Error("no-op logger should not forward to the previous one")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf must be callable without SetLogger")
	}
}
