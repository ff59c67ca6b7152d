package dsl

// Grammar returns the Lark grammar of the groove DSL
//
// SYNTAX:
//
//	pattern(drum=kick, grid="x---x---x---x---")
//	pattern(drum=snare, grid="----x-------x---", velocity=100)
//	pattern(drum=hat, grid="x-x-x-x-x-x-x-x-", section="chorus")
//
// GRID NOTATION (the grid spans one bar, each char is one equal step):
//
//	"x" = hit
//	"X" = accent
//	"o" = ghost note
//	"-" = rest
func Grammar() string {
	return `
// ---------- Start rule ----------
start: pattern_call (";" pattern_call)*

// ---------- Pattern ----------
pattern_call: "pattern" "(" pattern_params ")"

pattern_params: pattern_named_params

pattern_named_params: pattern_named_param ("," SP pattern_named_param)*
pattern_named_param: "drum" "=" DRUM_NAME
                   | "grid" "=" STRING
                   | "velocity" "=" NUMBER
                   | "section" "=" STRING

// ---------- Drum names ----------
DRUM_NAME: "kick" | "snare" | "hat_open" | "hat"
         | "tom_high" | "tom_low"
         | "crash" | "ride"

// ---------- Terminals ----------
SP: " "+
STRING: /"[^"]*"/
NUMBER: /-?\d+(\.\d+)?/
`
}
