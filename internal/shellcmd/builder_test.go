package shellcmd

import (
	"strings"
	"testing"
)

// unquote reads a POSIX shell word made of single-quoted segments and
// backslash-escaped characters, returning the literal value and the rest
// of the input after the first unquoted space.
func unquote(t *testing.T, s string) (string, string) {
	t.Helper()
	var out strings.Builder
	i := 0
	for i < len(s) {
		switch c := s[i]; c {
		case '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				t.Fatalf("unterminated quote in %q", s)
			}
			out.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case '\\':
			if i+1 >= len(s) {
				t.Fatalf("dangling backslash in %q", s)
			}
			out.WriteByte(s[i+1])
			i += 2
		case ' ':
			return out.String(), s[i+1:]
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), ""
}

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"'",
		"''",
		"it's",
		"'leading and trailing'",
		"127.0.0.1 lichess.org\n# it's blocked\n127.0.0.1 chess.com",
		`mixed "double" and 'single' \ backslash`,
	}
	for _, in := range inputs {
		word := "'" + Escape(in) + "'"
		got, rest := unquote(t, word)
		if got != in {
			t.Errorf("round trip of %q produced %q", in, got)
		}
		if rest != "" {
			t.Errorf("quote terminated early for %q, rest %q", in, rest)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := Escape("it's"); got != `it'\''s` {
		t.Errorf("unexpected escape: %s", got)
	}
	if got := Escape("none"); got != "none" {
		t.Errorf("text without quotes must be unchanged: %s", got)
	}
}

func TestKill(t *testing.T) {
	if got := Kill([]string{"firefox", "brave"}); got != "pkill -f 'firefox brave' || true" {
		t.Errorf("unexpected kill command: %s", got)
	}
	if got := Kill(nil); got != "pkill -f '' || true" {
		t.Errorf("unexpected empty kill command: %s", got)
	}
	if got := Kill([]string{"firefox"}); got != "pkill -f 'firefox' || true" {
		t.Errorf("unexpected single kill command: %s", got)
	}
}

func TestFileReplace(t *testing.T) {
	got := FileReplace("/etc/hosts", "/etc/hosts.backup", "")
	want := `cp /etc/hosts /etc/hosts.backup && printf '%s\n' '' > /etc/hosts`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	got = FileReplace("/etc/hosts", "/etc/hosts.backup", "127.0.0.1 it's")
	if !strings.Contains(got, `'127.0.0.1 it'\''s'`) {
		t.Errorf("content not escaped: %s", got)
	}
}

func TestPrivileged(t *testing.T) {
	got := Privileged("pa'ss", "pkill -f 'firefox' || true")
	want := `echo 'pa'\''ss' | sudo -S bash -c 'pkill -f '\''firefox'\'' || true'`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	// The sub-shell must receive the inner command verbatim.
	idx := strings.Index(got, "bash -c ")
	inner, _ := unquote(t, got[idx+len("bash -c "):])
	if inner != "pkill -f 'firefox' || true" {
		t.Errorf("inner command mangled: %q", inner)
	}
}
