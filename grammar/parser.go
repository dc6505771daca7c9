package grammar

import (
	"os"

	"github.com/alecthomas/participle/v2"
	pkgerrors "github.com/pkg/errors"
)

var mirParser = participle.MustBuild[Program](
	participle.Lexer(MirLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	// Lookahead disambiguates assignments from the keyword-led
	// instruction forms.
	participle.UseLookahead(3),
)

// ParseSource parses textual MIR into its syntax tree.
func ParseSource(filename, source string) (*Program, error) {
	return mirParser.ParseString(filename, source)
}

// ParseFile reads and parses a .mir file.
func ParseFile(path string) (*Program, string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "failed to read file")
	}
	program, err := ParseSource(path, string(source))
	if err != nil {
		return nil, string(source), err
	}
	return program, string(source), nil
}
