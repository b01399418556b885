// Package videomanager keeps at most one feed video audible at a time.
package videomanager

import "sync"

// Player is a video surface the coordinator can silence.
type Player interface {
	ID() string
	Mute()
	InPictureInPicture() bool
}

// Coordinator tracks the single active player. The zero value is ready to use.
type Coordinator struct {
	mu     sync.Mutex
	active Player
}

func New() *Coordinator {
	return &Coordinator{}
}

// SetActive makes p the active player. A different previously active player is
// muted unless it is in picture-in-picture.
func (c *Coordinator) SetActive(p Player) {
	if p == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.active; prev != nil && prev.ID() != p.ID() && !prev.InPictureInPicture() {
		prev.Mute()
	}
	c.active = p
}

// ClearActive resets to no active player, but only if p is the active one.
func (c *Coordinator) ClearActive(p Player) {
	if p == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.ID() == p.ID() {
		c.active = nil
	}
}

func (c *Coordinator) Active() (Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != nil
}
