package location

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		file string
		line int
		fn   string
	}{
		{"main.c:42", Line, "main.c", 42, ""},
		{"main", Function, "", 0, "main"},
		{`C:\src\main.c:42`, Line, `C:\src\main.c`, 42, ""},
		{"pkg.Func", Function, "", 0, "pkg.Func"},
		{"main.c:", Function, "", 0, "main.c:"},
		{"a/b/c.go:7", Line, "a/b/c.go", 7, ""},
	}

	for _, c := range cases {
		got := Parse(c.in)
		if got.Kind != c.kind {
			t.Errorf("Parse(%q).Kind = %v, want %v", c.in, got.Kind, c.kind)

			continue
		}

		if c.kind == Line {
			if got.File != c.file || got.LineNo != c.line {
				t.Errorf("Parse(%q) = {%q,%d}, want {%q,%d}", c.in, got.File, got.LineNo, c.file, c.line)
			}
		} else if got.FuncName != c.fn {
			t.Errorf("Parse(%q).FuncName = %q, want %q", c.in, got.FuncName, c.fn)
		}
	}
}
