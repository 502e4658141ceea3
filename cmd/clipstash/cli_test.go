package main

import "testing"

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Fatalf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-1", "x", ""} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q) succeeded", bad)
		}
	}
}

func TestPrintClipsRejectsUnknownFormat(t *testing.T) {
	if err := printClips("xml", 10, nil); err == nil {
		t.Fatal("printClips(xml) succeeded")
	}
}
