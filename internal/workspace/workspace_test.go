package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_Lifecycle(t *testing.T) {
	base := t.TempDir()
	mgr := NewManager(base)

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	dir := mgr.Path()
	if !strings.HasPrefix(filepath.Base(dir), "themebuilder-stage-") {
		t.Errorf("unexpected workspace name %s", dir)
	}
	if filepath.Dir(dir) != base {
		t.Errorf("workspace %s not under base %s", dir, base)
	}
	if err := mgr.Create(); err == nil {
		t.Error("second Create() should fail")
	}

	sub, err := mgr.CreateSubdir("theme")
	if err != nil {
		t.Fatalf("CreateSubdir() failed: %v", err)
	}
	if st, err := os.Stat(sub); err != nil || !st.IsDir() {
		t.Fatalf("subdir missing: %v", err)
	}

	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after cleanup: %s", dir)
	}
	if err := mgr.Cleanup(); err != nil {
		t.Errorf("repeated Cleanup() should be a no-op: %v", err)
	}
}

func TestManager_SubdirBeforeCreate(t *testing.T) {
	if _, err := NewManager(t.TempDir()).CreateSubdir("x"); err == nil {
		t.Fatal("expected error before Create()")
	}
}
