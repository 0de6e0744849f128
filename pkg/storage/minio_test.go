package storage

import "testing"

func TestObjectName(t *testing.T) {
	got := ObjectName("alice@example.com", "0b6f-42")
	if got != "transcripts/alice@example.com/0b6f-42.json" {
		t.Errorf("ObjectName = %q", got)
	}
	if got := ObjectName("Alice@Example.com", "0b6f-42"); got != "transcripts/alice@example.com/0b6f-42.json" {
		t.Errorf("identities must be case-insensitive, got %q", got)
	}
	if got := ObjectName("a/b", "c"); got != "transcripts/a%2Fb/c.json" {
		t.Errorf("path separators in identities must be escaped, got %q", got)
	}
}
