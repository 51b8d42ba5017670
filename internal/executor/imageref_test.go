package executor

import "testing"

func TestNormalizeImageRef(t *testing.T) {
	cases := map[string]string{
		"python:3.11":             "python:3.11",
		"python":                  "python:latest",
		"registry:5000/app":       "registry:5000/app:latest",
		"registry:5000/app:1.0":   "registry:5000/app:1.0",
		"ghcr.io/org/img:v1":      "ghcr.io/org/img:v1",
	}
	for in, want := range cases {
		if got := normalizeImageRef(in); got != want {
			t.Fatalf("normalizeImageRef(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitImageRef(t *testing.T) {
	repo, tag := splitImageRef("registry:5000/app:1.0")
	if repo != "registry:5000/app" || tag != "1.0" {
		t.Fatalf("unexpected split: %s %s", repo, tag)
	}
	repo, tag = splitImageRef("python")
	if repo != "python" || tag != "latest" {
		t.Fatalf("unexpected split: %s %s", repo, tag)
	}
}
