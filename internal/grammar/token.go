package grammar

import (
	"strings"

	"github.com/keshon/driveby/internal/apperr"
)

// Kind tags a token. Argument and Arguments are slot markers used only in
// patterns and never produced by Tokenize.
type Kind int

const (
	Help Kind = iota
	List
	Pause
	Resume
	Skip
	Clear
	Stop
	Leave
	Play
	Driveby
	Queue
	Next
	Rm
	Goto
	Search
	Generic
	Argument
	Arguments
)

var keywords = map[string]Kind{
	"help":    Help,
	"list":    List,
	"pause":   Pause,
	"resume":  Resume,
	"skip":    Skip,
	"clear":   Clear,
	"stop":    Stop,
	"leave":   Leave,
	"play":    Play,
	"driveby": Driveby,
	"queue":   Queue,
	"next":    Next,
	"rm":      Rm,
	"goto":    Goto,
	"search":  Search,
}

var names = map[Kind]string{
	Generic:   "<generic>",
	Argument:  "<argument>",
	Arguments: "<arguments>",
}

func init() {
	for word, k := range keywords {
		names[k] = word
	}
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "<unknown>"
}

// Token is one lexed word. Text is only set for Generic tokens.
type Token struct {
	Kind Kind
	Text string
}

func (t Token) String() string {
	if t.Kind == Generic {
		return "Generic(" + t.Text + ")"
	}
	return t.Kind.String()
}

var ErrNoTokensParsed = apperr.New(apperr.KindParse, "no tokens parsed in string")

// Tokenize splits line on whitespace. Exact keyword matches become keyword
// tokens, every other word becomes a Generic token.
func Tokenize(line string) ([]Token, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil, ErrNoTokensParsed
	}

	tokens := make([]Token, 0, len(words))
	for _, w := range words {
		if k, ok := keywords[w]; ok {
			tokens = append(tokens, Token{Kind: k})
			continue
		}
		tokens = append(tokens, Token{Kind: Generic, Text: w})
	}
	return tokens, nil
}
