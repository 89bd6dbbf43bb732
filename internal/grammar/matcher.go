package grammar

import (
	"strings"

	"github.com/keshon/driveby/internal/apperr"
)

var (
	ErrNoValidCommandFound        = apperr.New(apperr.KindParse, "no valid command found")
	ErrValidCommandExtraArguments = apperr.New(apperr.KindParse, "matched a valid command, but extra arguments were given")
)

// Pattern is one accepted command shape. Argument takes exactly one generic
// token, Arguments takes one or more and must be the last slot.
type Pattern []Kind

// Table is an ordered list of patterns. The first full match wins, so more
// specific rows go before the ones that would shadow them.
type Table []Pattern

// Commands is the accepted command surface.
var Commands = Table{
	{Help},
	{List},
	{Pause},
	{Resume},
	{Skip},
	{Clear},
	{Stop},
	{Leave},
	{Play, Search, Arguments},
	{Play, Argument},
	{Driveby, Search, Arguments},
	{Driveby, Argument},
	{Queue, Arguments},
	{Next, Arguments},
	{Goto, Argument},
	{Rm, Arguments},
}

// Command is a matched pattern: its keywords and the captured arguments.
type Command struct {
	Kinds []Kind
	Args  []string
}

// Name is the space-joined keyword sequence, e.g. "play search".
func (c Command) Name() string {
	parts := make([]string, len(c.Kinds))
	for i, k := range c.Kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, " ")
}

type outcome int

const (
	noMatch outcome = iota
	fullMatch
	extraTokens
)

// Match resolves tokens against table.
func Match(tokens []Token, table Table) (Command, error) {
	if len(tokens) == 0 {
		return Command{}, ErrNoTokensParsed
	}

	sawExtra := false
	for _, p := range table {
		cmd, res := matchPattern(tokens, p)
		switch res {
		case fullMatch:
			return cmd, nil
		case extraTokens:
			sawExtra = true
		}
	}

	if sawExtra {
		return Command{}, ErrValidCommandExtraArguments
	}
	return Command{}, ErrNoValidCommandFound
}

// Parse tokenizes line and matches it against the default command table.
func Parse(line string) (Command, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return Command{}, err
	}
	return Match(tokens, Commands)
}

func matchPattern(tokens []Token, p Pattern) (Command, outcome) {
	var cmd Command
	pos := 0

	for i, slot := range p {
		switch slot {
		case Arguments:
			if i != len(p)-1 || pos >= len(tokens) {
				return Command{}, noMatch
			}
			for _, t := range tokens[pos:] {
				if t.Kind != Generic {
					return Command{}, noMatch
				}
				cmd.Args = append(cmd.Args, t.Text)
			}
			return cmd, fullMatch

		case Argument, Generic:
			if pos >= len(tokens) || tokens[pos].Kind != Generic {
				return Command{}, noMatch
			}
			cmd.Args = append(cmd.Args, tokens[pos].Text)

		default:
			if pos >= len(tokens) || tokens[pos].Kind != slot {
				return Command{}, noMatch
			}
			cmd.Kinds = append(cmd.Kinds, slot)
		}
		pos++
	}

	if pos < len(tokens) {
		return Command{}, extraTokens
	}
	return cmd, fullMatch
}
