package minio

import "testing"

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	if _, err := New("", "key", "secret", "documents", false); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := New("localhost:9000", "key", "secret", " ", false); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}

func TestNewBuildsClient(t *testing.T) {
	store, err := New("localhost:9000", "key", "secret", "documents", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.bucket != "documents" {
		t.Fatalf("unexpected bucket %q", store.bucket)
	}
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"/u/essay_v1.pdf":  "u/essay_v1.pdf",
		" u/essay_v1.pdf ": "u/essay_v1.pdf",
		"":                 "",
	}
	for in, want := range cases {
		if got := cleanKey(in); got != want {
			t.Fatalf("cleanKey(%q) = %q, want %q", in, got, want)
		}
	}
}
