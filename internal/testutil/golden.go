// Package testutil provides testing utilities for botctl: golden files and
// an in-process fake of the bot backend.
package testutil

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "rewrite golden files under testdata/")

// AssertGolden compares got with testdata/<name>. Run the tests with -update
// to rewrite the file from got.
func AssertGolden(t *testing.T, got, name string) {
	t.Helper()

	path := filepath.Join("testdata", name)

	if *update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create testdata: %v", err)
		}

		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("write golden %s: %v", path, err)
		}

		return
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("golden %s missing; run with -update to create it", path)
	}

	if err != nil {
		t.Fatalf("read golden %s: %v", path, err)
	}

	want := string(raw)
	if got == want {
		return
	}

	line, gotLine, wantLine := firstDifference(got, want)
	t.Errorf("%s differs at line %d\n got: %q\nwant: %q\n\nfull output:\n%s\nrun with -update to refresh", path, line, gotLine, wantLine, got)
}

// firstDifference returns the 1-based number of the first line where got and
// want disagree, with both versions of that line.
func firstDifference(got, want string) (int, string, string) {
	g := strings.Split(got, "\n")
	w := strings.Split(want, "\n")

	for i := 0; i < max(len(g), len(w)); i++ {
		var gl, wl string
		if i < len(g) {
			gl = g[i]
		}

		if i < len(w) {
			wl = w[i]
		}

		if gl != wl || i >= len(g) || i >= len(w) {
			return i + 1, gl, wl
		}
	}

	return 0, "", ""
}
