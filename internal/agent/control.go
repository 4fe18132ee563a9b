// internal/agent/control.go
package agent

import (
	"sync"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// controlState is the pause/stop switchboard shared between the loop
// goroutine and whoever holds the Agent handle. Transitions are checked so a
// finished run cannot be resurrected by a late Resume.
type controlState struct {
	mu    sync.Mutex
	state schemas.RunStatus
}

func newControlState() *controlState {
	return &controlState{state: schemas.RunStatusRunning}
}

func (c *controlState) status() schemas.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *controlState) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == schemas.RunStatusRunning {
		c.state = schemas.RunStatusPaused
	}
}

func (c *controlState) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == schemas.RunStatusPaused {
		c.state = schemas.RunStatusRunning
	}
}

func (c *controlState) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == schemas.RunStatusRunning || c.state == schemas.RunStatusPaused {
		c.state = schemas.RunStatusStopped
	}
}

func (c *controlState) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != schemas.RunStatusStopped {
		c.state = schemas.RunStatusDone
	}
}
