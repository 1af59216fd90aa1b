package store

import "testing"

func TestRebindPositional(t *testing.T) {
	got := rebindPositional("SELECT value FROM t WHERE a = ? AND b = ?")
	want := "SELECT value FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRebindSkipsQuotedText(t *testing.T) {
	cases := map[string]string{
		// ? inside a string literal is data, not a placeholder.
		`SELECT value FROM t WHERE note = 'why?' AND a = ?`: `SELECT value FROM t WHERE note = 'why?' AND a = $1`,
		// Same for quoted identifiers.
		`SELECT "odd?col" FROM t WHERE a = ?`: `SELECT "odd?col" FROM t WHERE a = $1`,
		// Doubled single quotes close and reopen; the ? between stays quoted.
		`SELECT value FROM t WHERE note = 'it''s ok?'`: `SELECT value FROM t WHERE note = 'it''s ok?'`,
	}
	for in, want := range cases {
		if got := rebindPositional(in); got != want {
			t.Errorf("rebind %q: expected %q, got %q", in, want, got)
		}
	}
}
