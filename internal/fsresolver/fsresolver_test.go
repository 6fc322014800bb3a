package fsresolver

import "testing"

func TestParseLocationLocalPath(t *testing.T) {
	loc, err := ParseLocation("/var/run/newton")
	if err != nil {
		t.Fatalf("ParseLocation: %v", err)
	}
	if loc.Scheme != "file" {
		t.Fatalf("scheme = %q, want file", loc.Scheme)
	}
	if loc.Path != "/var/run/newton" {
		t.Fatalf("path = %q", loc.Path)
	}
}

func TestParseLocationS3URI(t *testing.T) {
	loc, err := ParseLocation("s3://my-bucket/env/prod")
	if err != nil {
		t.Fatalf("ParseLocation: %v", err)
	}
	if loc.Scheme != "s3" {
		t.Fatalf("scheme = %q, want s3", loc.Scheme)
	}
	if loc.Bucket != "my-bucket" {
		t.Fatalf("bucket = %q, want my-bucket", loc.Bucket)
	}
	if loc.Path != "env/prod" {
		t.Fatalf("path = %q, want env/prod (leading slash trimmed)", loc.Path)
	}
}

func TestParseLocationSFTPURI(t *testing.T) {
	loc, err := ParseLocation("sftp://host.example.com:2222/srv/workspace")
	if err != nil {
		t.Fatalf("ParseLocation: %v", err)
	}
	if loc.Scheme != "sftp" {
		t.Fatalf("scheme = %q, want sftp", loc.Scheme)
	}
	if loc.Host != "host.example.com" {
		t.Fatalf("host = %q", loc.Host)
	}
	if loc.Port != "2222" {
		t.Fatalf("port = %q, want 2222", loc.Port)
	}
	if loc.Path != "/srv/workspace" {
		t.Fatalf("path = %q", loc.Path)
	}
}

// ResolveWorkspace's s3/sftp branches dial real network backends and are
// exercised at the integration level; here we only cover the local path,
// which is what every test in this module actually runs against.
func TestResolveWorkspaceLocalRootsAtParsedPath(t *testing.T) {
	fs, root, err := ResolveWorkspace("/tmp/newton-workspace", nil)
	if err != nil {
		t.Fatalf("ResolveWorkspace: %v", err)
	}
	if fs == nil {
		t.Fatal("fs is nil")
	}
	if root != "/tmp/newton-workspace" {
		t.Fatalf("root = %q, want /tmp/newton-workspace", root)
	}
}
