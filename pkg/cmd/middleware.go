package cmd

// Middleware decorates a command: logging, throttling and so on.
type Middleware func(Command) Command

// Apply wraps c so that the last middleware in the list runs first.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}
