package sym

import (
	"testing"
	"unicode/utf8"
)

func TestSymbolToCommandAndCommandToSymbolAreBidirectional(t *testing.T) {
	for symbol, cmd := range SymbolToCommand {
		got, ok := CommandToSymbol[cmd]
		if !ok {
			t.Errorf("SymbolToCommand has %q → %q, but CommandToSymbol has no entry for %q", symbol, cmd, cmd)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToCommand[%q] = %q, but CommandToSymbol[%q] = %q", symbol, cmd, cmd, got)
		}
	}
}

func TestGlyphsAreSingleRunes(t *testing.T) {
	for _, e := range registry {
		if n := utf8.RuneCountInString(e.glyph); n != 1 {
			t.Errorf("glyph for %q has %d runes, want 1", e.command, n)
		}
		if Describe(e.command) == "" {
			t.Errorf("command %q has no description", e.command)
		}
	}
}
