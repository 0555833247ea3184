package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xrefdb/elixir/pkg/xhash"
)

func writeUpdateCmdObject(t *testing.T, repoDir string, data []byte) xhash.Hash {
	t.Helper()
	h := xhash.Sum(data)
	hex := h.String()
	dir := filepath.Join(repoDir, "objects", hex[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, hex[2:]), data, 0o644); err != nil {
		t.Fatalf("write object: %v", err)
	}
	return h
}

func writeUpdateCmdTag(t *testing.T, repoDir, tag string, manifest xhash.Hash) {
	t.Helper()
	dir := filepath.Join(repoDir, "refs", "tags")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir refs/tags: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tag), []byte(manifest.String()+"\n"), 0o644); err != nil {
		t.Fatalf("write tag ref: %v", err)
	}
}

func TestUpdateCmdIndexesEveryTag(t *testing.T) {
	repoDir := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("LXR_REPO_DIR", repoDir)
	t.Setenv("LXR_DATA_DIR", dataDir)

	aHash := writeUpdateCmdObject(t, repoDir, []byte("int x;\n"))
	manifestHash := writeUpdateCmdObject(t, repoDir, []byte(aHash.String()+" a.c\n"))
	writeUpdateCmdTag(t, repoDir, "v1", manifestHash)

	var output bytes.Buffer
	updateCmd := newUpdateCmd()
	updateCmd.SetOut(&output)
	updateCmd.SetErr(&output)
	updateCmd.SetArgs([]string{"5"})
	if err := updateCmd.Execute(); err != nil {
		t.Fatalf("update Execute: %v\noutput:\n%s", err, output.String())
	}
	if !strings.Contains(output.String(), "v1") {
		t.Fatalf("update output = %q, want to contain tag v1", output.String())
	}
}

func TestUpdateCmdAbortsOnRepoUnavailableInsteadOfSkipping(t *testing.T) {
	repoDir := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("LXR_REPO_DIR", repoDir)
	t.Setenv("LXR_DATA_DIR", dataDir)

	aHash := writeUpdateCmdObject(t, repoDir, []byte("int x;\n"))
	manifestHash := writeUpdateCmdObject(t, repoDir, []byte(aHash.String()+" a.c\n"))
	// Reverse-lexicographic order puts v3 first, then v2, then v1.
	writeUpdateCmdTag(t, repoDir, "v3", manifestHash)
	writeUpdateCmdTag(t, repoDir, "v2", manifestHash)
	writeUpdateCmdTag(t, repoDir, "v1", manifestHash)

	// Replace v2's ref with a dangling symlink: ListTags still lists v2,
	// but RunTag fails resolving its tree with ErrRepoUnavailable partway
	// through the run.
	v2Ref := filepath.Join(repoDir, "refs", "tags", "v2")
	if err := os.Remove(v2Ref); err != nil {
		t.Fatalf("remove tag ref: %v", err)
	}
	if err := os.Symlink(filepath.Join(repoDir, "no-such-ref"), v2Ref); err != nil {
		t.Fatalf("symlink tag ref: %v", err)
	}

	var output bytes.Buffer
	updateCmd := newUpdateCmd()
	updateCmd.SetOut(&output)
	updateCmd.SetErr(&output)
	updateCmd.SetArgs([]string{"5"})
	err := updateCmd.Execute()
	if err == nil {
		t.Fatal("update should fail once a tag's tree becomes unreachable")
	}

	out := output.String()
	if !strings.Contains(out, "v3") {
		t.Fatalf("update output = %q, want the already-indexed tag v3 reported", out)
	}
	if strings.Contains(out, "v1") {
		t.Fatalf("update output = %q, want no tag after the aborted one to be attempted", out)
	}
}
