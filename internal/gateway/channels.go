package gateway

import (
	"sync"

	"github.com/msaad732/meme-coin/internal/snowflake"
)

// channelCache maps channel IDs to names as guild and channel events arrive.
type channelCache struct {
	mu    sync.RWMutex
	names map[snowflake.ID]string
}

func newChannelCache() *channelCache {
	return &channelCache{names: make(map[snowflake.ID]string)}
}

func (c *channelCache) put(ch Channel) {
	if ch.ID == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch.Name == "" {
		delete(c.names, ch.ID)
		return
	}
	c.names[ch.ID] = ch.Name
}

func (c *channelCache) remove(id snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, id)
}

func (c *channelCache) name(id snowflake.ID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[id]
}

func (c *channelCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
