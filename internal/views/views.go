// Package views implements the tab container: one active view per tab,
// exactly one view rendered at a time.
package views

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashureev/leadintel/internal/session"
)

// ID names a dashboard view.
type ID string

const (
	Dashboard   ID = "dashboard"
	Leads       ID = "leads"
	Analytics   ID = "analytics"
	AIModels    ID = "ai-models"
	Scoring     ID = "scoring"
	MistralChat ID = "mistral-chat"
	Config      ID = "config"
)

// Default is active on every new container and after Reset.
const Default = Dashboard

// Item is one sidebar entry.
type Item struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

var sidebar = []Item{
	{ID: Dashboard, Label: "Dashboard"},
	{ID: Leads, Label: "Leads"},
	{ID: Analytics, Label: "EDA Analytics"},
	{ID: AIModels, Label: "AI Models"},
	{ID: Scoring, Label: "AI Scoring"},
	{ID: MistralChat, Label: "Mistral Chat"},
	{ID: Config, Label: "Configuration"},
}

// Sidebar returns the fixed view list in display order.
func Sidebar() []Item {
	out := make([]Item, len(sidebar))
	copy(out, sidebar)
	return out
}

// Renderer produces the body of one view for a tab.
type Renderer interface {
	Render(ctx context.Context, key session.Key) (any, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(ctx context.Context, key session.Key) (any, error)

// Render calls f.
func (f RenderFunc) Render(ctx context.Context, key session.Key) (any, error) {
	return f(ctx, key)
}

// Panel is the rendered output of the active view. Data is nil for views
// with no registered renderer.
type Panel struct {
	ID   ID  `json:"id"`
	Data any `json:"data"`
}

// Container holds the active view of one tab.
type Container struct {
	key   session.Key
	views map[ID]Renderer

	mu     sync.RWMutex
	active ID
}

// NewContainer creates a container showing Default. views is shared and
// must not be modified afterwards.
func NewContainer(key session.Key, views map[ID]Renderer) *Container {
	return &Container{key: key, views: views, active: Default}
}

// Active returns the active view id.
func (c *Container) Active() ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetActive switches the active view. Any id is accepted.
func (c *Container) SetActive(id ID) {
	c.mu.Lock()
	c.active = id
	c.mu.Unlock()
}

// Reset returns to Default.
func (c *Container) Reset() {
	c.SetActive(Default)
}

// Render renders only the active view.
func (c *Container) Render(ctx context.Context) (Panel, error) {
	id := c.Active()
	r, ok := c.views[id]
	if !ok {
		return Panel{ID: id}, nil
	}
	data, err := r.Render(ctx, c.key)
	if err != nil {
		return Panel{ID: id}, fmt.Errorf("render %s: %w", id, err)
	}
	return Panel{ID: id, Data: data}, nil
}

// Navigator keeps one container per device tab.
type Navigator = session.Registry[*Container]

// NewNavigator creates containers on demand over a shared view set.
func NewNavigator(views map[ID]Renderer) *Navigator {
	return session.NewRegistry(func(key session.Key) *Container {
		return NewContainer(key, views)
	})
}
