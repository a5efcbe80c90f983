package compute

import (
	"errors"
	"fmt"

	"quantengine/pkg/events"
	"quantengine/pkg/graphtypes"
)

// QueueItem is one entry of an AddQueue call: Attempt performs one add
// attempt against c, returning MissingKeyError to signal "not yet, retry
// later" (the only retryable class per §4.7) or any other error to fail
// the whole queue immediately. Label identifies the item in logs/events.
type QueueItem struct {
	Label   string
	Attempt func(c *Computer) error

	tries int
}

// AddQueue implements the cooperative retry loop of §4.5/§4.6: pop an
// item, attempt it; on MissingKeyError re-append until maxTries is
// exceeded, at which point the item is either discarded (logged) or the
// whole call fails, per fail ("warn", the default, or "raise"). This lets
// config sections referencing each other load in any order, as long as
// the referenced key eventually appears. Order of successful adds is at
// least FIFO, not otherwise guaranteed, matching §4.5's add_queue.
func (c *Computer) AddQueue(items []QueueItem, maxTries int, fail string) error {
	c.retryStack = append(c.retryStack, retryFrame{maxTries: maxTries, fail: fail})
	defer func() { c.retryStack = c.retryStack[:len(c.retryStack)-1] }()

	queue := append([]QueueItem(nil), items...)
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		err := item.Attempt(c)
		if err == nil {
			continue
		}

		var missing *graphtypes.MissingKeyError
		if !errors.As(err, &missing) {
			return fmt.Errorf("add_queue: item %q failed: %w", item.Label, err)
		}

		item.tries++
		if item.tries > maxTries {
			c.emit(events.QueueItemDiscarded, item.Label, err.Error())
			if fail == "raise" {
				return fmt.Errorf("add_queue: item %q exceeded %d tries: %w", item.Label, maxTries, err)
			}
			c.logger.Warn("add_queue: discarding item after max tries", "item", item.Label, "tries", item.tries, "err", err)
			continue
		}
		queue = append(queue, item)
	}
	return nil
}
