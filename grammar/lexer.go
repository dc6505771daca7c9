package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var MirLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `//[^\n]*`, nil},

		// Keywords and identifiers (block labels and slot names such as
		// bb0, var1, tmp2 lex as identifiers too)
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},

		// Integer literals
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},

		// String literals (assert messages)
		{"String", `"(\\.|[^"\\])*"`, nil},

		// Multi-character arrows must come before single operators
		{"Arrow", `->`, nil},
		{"LArrow", `<-`, nil},

		// Operators
		{"Operator", `(\|\||&&|==|!=|<=|>=|[-+*/%&|<>!])`, nil},

		// Punctuation (must come after operators)
		{"Punctuation", `[{}[\]#:,;()=.]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
