// Package terminal plays maze chase in a local terminal: Keyboard reads raw
// key presses and Screen draws frames with ANSI escapes.
//
//	kb, err := terminal.OpenKeyboard(os.Stdin)
//	if err != nil {
//		return err
//	}
//	defer kb.Close()
//
//	c := session.NewController(levels, terminal.NewScreen(os.Stdout), kb, session.Options{})
//	res, err := c.Run(ctx)
package terminal
