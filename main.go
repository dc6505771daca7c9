// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"sable/grammar"
	"sable/internal/mir"
	"sable/internal/session"
	"sable/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sable <file.mir>")
		os.Exit(1)
	}

	path := os.Args[1]
	program, source, err := grammar.ParseFile(path)
	if err != nil {
		reportParseError(source, err)
		os.Exit(1)
	}

	crate, err := grammar.Lower(program, source, session.Options{})
	if err != nil {
		color.Red("❌ %s", err)
		os.Exit(1)
	}

	defs := make([]types.DefID, 0, len(crate.Bodies))
	for def := range crate.Bodies {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Index < defs[j].Index })
	for _, def := range defs {
		fmt.Print(mir.Print(crate.Context.Name(def), crate.Bodies[def]))
		fmt.Println()
	}

	color.Green("✅ Successfully processed %s", path)
}

// reportParseError prints a friendly caret-style parse error message.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("Unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("Syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("❌ Syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("→ %s\n", pe.Message())
}
