package rwfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

func tempFile(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "data.yaml")
	if err := os.WriteFile(name, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(name, mode); err != nil {
		t.Fatal(err)
	}
	return name
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// shrink drops every "x" rune, so the output is shorter than the input.
var shrink = runes.Remove(runes.Predicate(func(r rune) bool { return r == 'x' }))

type failing struct{ transform.NopResetter }

func (failing) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	return 0, 0, errors.New("boom")
}

func TestWrite(t *testing.T) {
	const testMode = os.FileMode(0664)
	name := tempFile(t, "abcd", testMode)

	if err := WriteFile(name, []byte("ABCD"), 0); err != nil {
		t.Fatal(err)
	}

	if got, want := readFile(t, name), "ABCD"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	st, err := os.Stat(name)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := st.Mode(), testMode; got != want {
		t.Errorf("got: %v, want: %v", got, want)
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(name), ".*~"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %q", leftovers)
	}
}

func TestRewrite(t *testing.T) {
	testCases := []struct {
		name  string
		write func(string, transform.Transformer) error
		t     transform.Transformer
		src   string
		want  string
	}{
		{"inplace/upper", InPlace, runes.Map(unicode.ToUpper), "abcd", "ABCD"},
		{"inplace/shrink", InPlace, shrink, "axbxcxdxxxxxxxxx\n", "abcd\n"},
		{"inplace/same", InPlace, transform.Nop, "abcd", "abcd"},
		{"atomic/upper", Atomic, runes.Map(unicode.ToUpper), "abcd", "ABCD"},
		{"atomic/shrink", Atomic, shrink, "axbxcxdxxxxxxxxx\n", "abcd\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			name := tempFile(t, tc.src, 0644)
			if err := tc.write(name, tc.t); err != nil {
				t.Fatal(err)
			}
			if got, want := readFile(t, name), tc.want; got != want {
				t.Errorf("got: %q, want: %q", got, want)
			}
		})
	}
}

func TestRewriteError(t *testing.T) {
	for i, write := range []func(string, transform.Transformer) error{InPlace, Atomic} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			const src = "untouched\n"
			name := tempFile(t, src, 0644)
			if err := write(name, failing{}); err == nil {
				t.Fatalf("expecting error")
			}
			if got, want := readFile(t, name), src; got != want {
				t.Errorf("got: %q, want: %q", got, want)
			}
		})
	}
}

func TestRewriteMissing(t *testing.T) {
	name := filepath.Join(t.TempDir(), "missing.yaml")
	if err := InPlace(name, transform.Nop); !os.IsNotExist(err) {
		t.Errorf("got: %v, want not exist error", err)
	}
	if err := Atomic(name, transform.Nop); !os.IsNotExist(err) {
		t.Errorf("got: %v, want not exist error", err)
	}
}

func TestStdio(t *testing.T) {
	var out strings.Builder
	if err := Stdio(runes.Map(unicode.ToUpper), &out, strings.NewReader("abcd")); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "ABCD"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}
