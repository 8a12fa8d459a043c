package utils_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/KaramelBytes/parish-explorer/internal/utils"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b", "out.json")
	if err := utils.SafeWriteFile(p, []byte("{}")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "{}" {
		t.Fatalf("read back %q, %v", b, err)
	}
	info, err := os.Stat(p)
	if err != nil || info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v, %v", info.Mode(), err)
	}
	assertNoTempFiles(t, filepath.Dir(p))
}

func TestSafeWriteFileConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sess.json")
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"writer":%d,"pad":%q}`, i, strings.Repeat("x", 512))
			if err := utils.SafeWriteFile(p, []byte(body)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.HasPrefix(string(b), `{"writer":`) || !strings.HasSuffix(string(b), `"}`) {
		t.Fatalf("torn file: %q", b)
	}
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	left, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(left) > 0 {
		t.Fatalf("temp files left behind: %v", left)
	}
}

func TestInitOnceRetriesUntilSuccess(t *testing.T) {
	var once utils.InitOnce
	calls := 0
	step := func() error {
		calls++
		if calls == 1 {
			return errors.New("bucket check: connection reset")
		}
		return nil
	}
	if err := once.Do(step); err == nil {
		t.Fatal("expected the first attempt to fail")
	}
	if err := once.Do(step); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if err := once.Do(step); err != nil {
		t.Fatalf("after success: %v", err)
	}
	if calls != 2 {
		t.Fatalf("setup ran %d times, want 2", calls)
	}
}

func TestValidID(t *testing.T) {
	ok := []string{"default", "3f2b6c1e-8d7a-4c55-9a0e-1b2c3d4e5f60", "team_a.v2"}
	bad := []string{"", "..", "../etc", "a/b", ".hidden", strings.Repeat("x", 200)}
	for _, s := range ok {
		if !utils.ValidID(s) {
			t.Errorf("ValidID(%q) = false", s)
		}
	}
	for _, s := range bad {
		if utils.ValidID(s) {
			t.Errorf("ValidID(%q) = true", s)
		}
	}
}
