package wire

import "testing"

func TestCheckFileVersionMissingFieldIsOK(t *testing.T) {
	start := &ScanStart{Extra: map[string]any{}}
	ok, found, err := CheckFileVersion(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || found != "" {
		t.Fatalf("CheckFileVersion() = (%v, %q), want (true, \"\")", ok, found)
	}
}

func TestCheckFileVersionAtOrAboveMinimum(t *testing.T) {
	start := &ScanStart{Extra: map[string]any{"File Ver": "1.0.0"}}
	ok, found, err := CheckFileVersion(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || found != "1.0.0" {
		t.Fatalf("CheckFileVersion() = (%v, %q), want (true, \"1.0.0\")", ok, found)
	}

	start = &ScanStart{Extra: map[string]any{"File Ver": "2.1.0"}}
	ok, _, err = CheckFileVersion(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a newer File Ver to satisfy MinSupportedFileVer")
	}
}

func TestCheckFileVersionBelowMinimum(t *testing.T) {
	start := &ScanStart{Extra: map[string]any{"File Ver": "0.9.0"}}
	ok, found, err := CheckFileVersion(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected an older File Ver to fail the minimum-version check")
	}
	if found != "0.9.0" {
		t.Fatalf("found = %q, want 0.9.0", found)
	}
}

func TestCheckFileVersionUnparseableStringReturnsError(t *testing.T) {
	start := &ScanStart{Extra: map[string]any{"File Ver": "not-a-version"}}
	ok, found, err := CheckFileVersion(start)
	if err == nil {
		t.Fatal("expected an error for an unparseable File Ver string")
	}
	if !ok {
		t.Fatal("a parse error is advisory, not a version-gate failure: ok should stay true")
	}
	if found != "not-a-version" {
		t.Fatalf("found = %q, want the raw unparsed string", found)
	}
}

func TestCheckFileVersionNonStringValueIsOK(t *testing.T) {
	start := &ScanStart{Extra: map[string]any{"File Ver": 1.0}}
	ok, found, err := CheckFileVersion(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || found != "1" {
		t.Fatalf("CheckFileVersion() = (%v, %q), want (true, \"1\")", ok, found)
	}
}
