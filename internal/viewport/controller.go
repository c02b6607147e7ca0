// Package viewport turns scroll and visibility signals from a rendering
// surface into feed requests.
package viewport

import (
	"sync"

	"github.com/vedran77/pulsefeed/internal/feed"
	"go.uber.org/zap"
)

const DefaultThreshold = 200

// Observer reports when an observed item enters the visible region,
// by calling Controller.HandleVisibility.
type Observer interface {
	Observe(itemID string)
	Unobserve(itemID string)
	Disconnect()
}

// Metrics are in the surface's own units (pixels, lines).
type Metrics struct {
	ScrollHeight int
	ClientHeight int
	ScrollTop    int
}

func (m Metrics) DistanceFromBottom() int {
	return m.ScrollHeight - m.ClientHeight - m.ScrollTop
}

type Surface interface {
	Metrics() Metrics
	ScrollToBottom()
}

type PageRequester interface {
	RequestOlderPage(oldestVisibleID string)
}

// Observation is a viewport reading taken before the view changes.
type Observation struct {
	TopItemID          string
	TopItemVisible     bool
	DistanceFromBottom int
}

type Controller struct {
	observer  Observer
	surface   Surface
	requester PageRequester
	threshold int
	logger    *zap.Logger

	mu         sync.Mutex
	tracked    string
	topVisible bool
	closed     bool
}

func NewController(observer Observer, surface Surface, requester PageRequester, threshold int, logger *zap.Logger) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		observer:  observer,
		surface:   surface,
		requester: requester,
		threshold: threshold,
		logger:    logger.Named("viewport"),
	}
}

// Track moves observation to the current top item. The previous target is
// released first so it can no longer trigger loads.
func (c *Controller) Track(topID string) {
	c.mu.Lock()
	if c.closed || topID == c.tracked {
		c.mu.Unlock()
		return
	}
	prev := c.tracked
	c.tracked = topID
	c.topVisible = false
	c.mu.Unlock()

	if prev != "" {
		c.observer.Unobserve(prev)
	}
	if topID != "" {
		c.observer.Observe(topID)
	}
}

func (c *Controller) Tracked() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracked
}

// HandleVisibility receives observer callbacks. Only the tracked item
// becoming visible requests an older page.
func (c *Controller) HandleVisibility(itemID string, visible bool) {
	c.mu.Lock()
	if c.closed || itemID != c.tracked {
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			c.logger.Debug("ignoring stale visibility signal", zap.String("item_id", itemID))
		}
		return
	}
	c.topVisible = visible
	c.mu.Unlock()

	if visible {
		c.requester.RequestOlderPage(itemID)
	}
}

// Capture reads the surface before new content is rendered.
func (c *Controller) Capture() Observation {
	c.mu.Lock()
	obs := Observation{TopItemID: c.tracked, TopItemVisible: c.topVisible}
	c.mu.Unlock()

	obs.DistanceFromBottom = c.surface.Metrics().DistanceFromBottom()
	return obs
}

// Settle runs after rendering. It scrolls to the newest item when forced or
// when the reader was within the threshold of the bottom at capture time.
func (c *Controller) Settle(before Observation, force bool) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}

	if !force && before.DistanceFromBottom >= c.threshold {
		return false
	}
	c.surface.ScrollToBottom()
	return true
}

// Apply renders u between a capture and a settle and re-targets observation
// at the new top item. Prepends keep the reader's position.
func (c *Controller) Apply(u feed.Update, render func(feed.State)) bool {
	before := c.Capture()
	render(u.State)

	var top string
	if len(u.State.Messages) > 0 {
		top = u.State.Messages[0].ID
	}
	c.Track(top)

	if u.Kind == feed.UpdatePrepend {
		return false
	}
	return c.Settle(before, u.ForceScroll)
}

// Close releases all observation. Later signals are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.tracked = ""
	c.mu.Unlock()

	c.observer.Disconnect()
}
