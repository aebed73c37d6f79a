package display

import (
	"encoding/json"
	"flag"
)

// MarshalJSON is compact for agents and indented for people
func MarshalJSON(v interface{}) ([]byte, error) {
	// Tests always get indented output
	if flag.Lookup("test.v") != nil {
		return json.MarshalIndent(v, "", "  ")
	}
	if IsAgentEnvironment() {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
