// Package cmd is the transport-agnostic command core: a command has a name,
// a usage line and Run(ctx, invocation). The chat adapter parses input,
// looks commands up by name and invokes them.
package cmd

import "context"

// Invocation is one parsed command line and where it came from.
type Invocation struct {
	Args      []string
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	MessageID string

	// Reply, when set, posts text back to the originating channel.
	Reply func(text string) error
}

// Respond sends text through Reply if the adapter supplied one.
func (inv *Invocation) Respond(text string) error {
	if inv.Reply == nil || text == "" {
		return nil
	}
	return inv.Reply(text)
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
