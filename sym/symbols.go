// Package sym defines canonical glyphs for Yanantin subsystems.
// These glyphs are stable across CLI output, log fields and documentation.
package sym

// Store and record glyphs.
const (
	Tensor     = "⊗" // tensor record: an authored compression
	Strand     = "≋" // one thematic strand of a tensor
	Compose    = "∘" // composition edge between tensors
	Correction = "↻" // correction record
	Dissent    = "≠" // dissent or negation
	DB         = "⊔" // storage backend
	Gateway    = "⇄" // remote gateway traffic
)

// Pipeline glyphs.
const (
	Chasqui = "⟶" // scout/scour messenger pipeline
	Glean   = "⋔" // claim extraction from reports
	Weave   = "⨝" // edge extraction from tensor prose
	Pulse   = "꩜" // reactive heartbeat and work queue
	Capture = "▣" // context-boundary compaction record
	Audit   = "⊨" // succession audit against the blueprint
	Anchor  = "⚓" // OpenTimestamps anchoring
)

// entry binds a glyph to its CLI command and description.
type entry struct {
	glyph       string
	command     string
	description string
}

// registry lists glyphs that front a CLI command, in help order.
var registry = []entry{
	{Tensor, "ingest", "Ingest authored tensor markdown into the store"},
	{DB, "query", "Run a named query against the store"},
	{Glean, "glean", "Extract verifiable claims from scout reports"},
	{Weave, "weave", "Extract composition edges from tensor prose"},
	{Anchor, "ots", "Anchor commits with OpenTimestamps proofs"},
	{Pulse, "pulse", "Run one pulse of the reactive work queue"},
	{Capture, "capture", "Write a compaction record for a finished session"},
	{Audit, "audit", "Compare the blueprint against the filesystem"},
	{Gateway, "server", "Serve a store over the HTTP gateway"},
}

// Lookup tables built from the registry at init time.
var (
	// SymbolToCommand maps a glyph to its CLI command.
	SymbolToCommand map[string]string
	// CommandToSymbol maps a CLI command to its glyph.
	CommandToSymbol map[string]string
)

func init() {
	SymbolToCommand = make(map[string]string, len(registry))
	CommandToSymbol = make(map[string]string, len(registry))
	for _, e := range registry {
		SymbolToCommand[e.glyph] = e.command
		CommandToSymbol[e.command] = e.glyph
	}
}

// Describe returns the description registered for a CLI command's glyph,
// or an empty string for commands without one.
func Describe(command string) string {
	for _, e := range registry {
		if e.command == command {
			return e.description
		}
	}
	return ""
}
