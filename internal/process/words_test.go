package process

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{"simple", "echo hello world", []string{"echo", "hello", "world"}},
		{"extra spaces", "  echo   hello  ", []string{"echo", "hello"}},
		{"tabs and newlines", "echo\thello\nworld", []string{"echo", "hello", "world"}},
		{"double quotes", `ffmpeg -i "my clip.mp4" out.mp4`, []string{"ffmpeg", "-i", "my clip.mp4", "out.mp4"}},
		{"single quotes", `sh -c 'echo "hi"'`, []string{"sh", "-c", `echo "hi"`}},
		{"adjacent quotes join", `a"b c"d`, []string{"ab cd"}},
		{"empty quoted arg", `printf "" x`, []string{"printf", "", "x"}},
		{"escaped space", `ls my\ file`, []string{"ls", "my file"}},
		{"escaped quote in double quotes", `echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"windows path in double quotes", `tool "C:\Users\me\clip.mp4"`, []string{"tool", `C:\Users\me\clip.mp4`}},
		{"backslash literal in single quotes", `echo 'a\b'`, []string{"echo", `a\b`}},
		{"shell operators are literal", "echo a | wc > out", []string{"echo", "a", "|", "wc", ">", "out"}},
		{"empty", "", nil},
		{"whitespace only", " \t ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitWords(tt.command)
			if err != nil {
				t.Fatalf("splitWords(%q) error = %v", tt.command, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitWords(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestSplitWordsUnclosedQuote(t *testing.T) {
	for _, command := range []string{`echo "hello`, `echo 'hello`, `"`} {
		if _, err := splitWords(command); !errors.Is(err, errUnclosedQuote) {
			t.Errorf("splitWords(%q) error = %v, want unclosed quote", command, err)
		}
	}
}

func TestErrorIs(t *testing.T) {
	err := newError(ErrCodeSpawnFailed, "failed to spawn process", "nope", errors.New("not found"))

	if !errors.Is(err, ErrSpawn) {
		t.Error("errors.Is(spawn error, ErrSpawn) = false")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Error("errors.Is(spawn error, ErrInvalidState) = true")
	}

	var perr *Error
	if !errors.As(err, &perr) || perr.Command != "nope" {
		t.Errorf("errors.As() = %v, want command nope", perr)
	}

	want := `SPAWN_FAILED: failed to spawn process "nope": not found`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
