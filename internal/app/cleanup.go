package app

// cleanupStack collects close functions for resources acquired during
// initialization so a failure partway through releases everything
// already open.
type cleanupStack struct {
	fns []func()
}

func (c *cleanupStack) push(fn func()) {
	c.fns = append(c.fns, fn)
}

// run releases the collected resources in reverse acquisition order.
func (c *cleanupStack) run() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
}
