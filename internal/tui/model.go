// Package tui renders a conversation feed in the terminal. The model is the
// viewport controller's surface and observer: scroll metrics come from a
// bubbles viewport and the top row stands in for the observed item.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	bubbleviewport "github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vedran77/pulsefeed/internal/feed"
	"github.com/vedran77/pulsefeed/internal/viewport"
	"go.uber.org/zap"
)

// rowHeight converts terminal rows into the nominal pixels the auto-scroll
// threshold is expressed in.
const rowHeight = 20

const chromeHeight = 2

// UpdateMsg carries a feed update into the program.
type UpdateMsg struct {
	Update feed.Update
}

// ErrMsg reports a failure outside the update loop, such as the initial load.
type ErrMsg struct {
	Err error
}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

type Model struct {
	title  string
	vp     bubbleviewport.Model
	ctrl   *viewport.Controller
	logger *zap.Logger

	ready   bool
	width   int
	version uint64
	state   feed.State
	lineOf  map[string]int
	err     error

	observed   string
	topVisible bool
}

// New builds a model whose visibility signals go to requester.
func New(title string, requester viewport.PageRequester, threshold int, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		title:  title,
		vp:     bubbleviewport.New(0, 0),
		logger: logger.Named("tui"),
		lineOf: make(map[string]int),
	}
	m.vp.MouseWheelEnabled = true
	m.ctrl = viewport.NewController(m, m, requester, threshold, logger)
	return m
}

func (m *Model) Controller() *viewport.Controller {
	return m.ctrl
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.ctrl.Close()
			return m, tea.Quit
		}
		m.vp, cmd = m.vp.Update(msg)

	case tea.MouseMsg:
		m.vp, cmd = m.vp.Update(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.vp.Width = msg.Width
		m.vp.Height = max(msg.Height-chromeHeight, 1)
		atBottom := m.vp.AtBottom()
		m.render(m.state)
		if !m.ready || atBottom {
			m.vp.GotoBottom()
		}
		m.ready = true

	case UpdateMsg:
		m.apply(msg.Update)

	case ErrMsg:
		m.err = msg.Err
	}

	m.checkVisibility()
	return m, cmd
}

func (m *Model) apply(u feed.Update) {
	if u.State.Version <= m.version {
		m.logger.Debug("dropping stale update",
			zap.Uint64("version", u.State.Version),
			zap.Uint64("current", m.version),
		)
		return
	}
	m.version = u.State.Version

	anchor := m.observed
	anchorLine, anchored := m.lineOf[anchor]
	offset := m.vp.YOffset

	m.ctrl.Apply(u, func(st feed.State) {
		m.render(st)
		if u.Kind != feed.UpdatePrepend || !anchored {
			return
		}
		// keep the previously first message on the same screen row
		if line, ok := m.lineOf[anchor]; ok {
			m.vp.SetYOffset(offset + line - anchorLine)
		}
	})
}

// render rebuilds the viewport content from st.
func (m *Model) render(st feed.State) {
	m.state = st
	clear(m.lineOf)

	var lines []string
	if !st.HasMoreOlder && st.Phase != feed.PhaseIdle {
		lines = append(lines, noticeStyle.Render("beginning of conversation"))
	}

	body := bodyStyle
	if m.width > 0 {
		body = body.Width(m.width)
	}
	for _, item := range feed.BuildView(st.Messages) {
		msg := item.Message
		m.lineOf[msg.ID] = len(lines)
		if !item.FollowUp {
			header := authorStyle.Render(msg.DisplayName())
			if !msg.CreatedAt.IsZero() {
				header += " " + timeStyle.Render(msg.CreatedAt.Local().Format("15:04"))
			}
			lines = append(lines, header)
		}
		lines = append(lines, strings.Split(body.Render(msg.Content), "\n")...)
	}

	m.vp.SetContent(strings.Join(lines, "\n"))
}

// checkVisibility reports the observed item entering or leaving the top of
// the viewport.
func (m *Model) checkVisibility() {
	if !m.ready || m.observed == "" {
		return
	}
	visible := m.vp.AtTop()
	if visible == m.topVisible {
		return
	}
	m.topVisible = visible
	m.ctrl.HandleVisibility(m.observed, visible)
}

func (m *Model) View() string {
	if !m.ready {
		return "connecting…"
	}

	status := fmt.Sprintf("%d messages · %s", len(m.state.Messages), m.state.Phase)
	if m.err != nil {
		status = errorStyle.Render(m.err.Error())
	} else {
		status = statusStyle.Render(status)
	}

	return titleStyle.Render(m.title) + "\n" + m.vp.View() + "\n" + status
}

// Metrics implements viewport.Surface.
func (m *Model) Metrics() viewport.Metrics {
	return viewport.Metrics{
		ScrollHeight: m.vp.TotalLineCount() * rowHeight,
		ClientHeight: m.vp.Height * rowHeight,
		ScrollTop:    m.vp.YOffset * rowHeight,
	}
}

func (m *Model) ScrollToBottom() {
	m.vp.GotoBottom()
}

// Observe implements viewport.Observer. Only the top row can be observed.
func (m *Model) Observe(itemID string) {
	m.observed = itemID
	m.topVisible = false
}

func (m *Model) Unobserve(itemID string) {
	if m.observed == itemID {
		m.observed = ""
		m.topVisible = false
	}
}

func (m *Model) Disconnect() {
	m.observed = ""
	m.topVisible = false
}
