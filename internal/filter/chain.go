package filter

// Chain passes an Exchange through each filter in order and finally to the
// handler. A filter drops the frame by not calling the rest of the chain.
type Chain struct {
	filters []Filter
	handler func(*Exchange)
	current Filter
	next    *Chain
}

// NewChain builds a chain ending in handler.
func NewChain(handler func(*Exchange), filters ...Filter) *Chain {
	all := make([]Filter, len(filters))
	copy(all, filters)

	chain := &Chain{filters: all, handler: handler}
	for i := len(all) - 1; i >= 0; i-- {
		chain = &Chain{filters: all, handler: handler, current: all[i], next: chain}
	}
	return chain
}

func (c *Chain) Filters() []Filter {
	return c.filters
}

// Filter runs ex through the remaining filters.
func (c *Chain) Filter(ex *Exchange) {
	if c.current != nil && c.next != nil {
		c.current.Filter(ex, c.next)
		return
	}
	if c.handler != nil {
		c.handler(ex)
	}
}
