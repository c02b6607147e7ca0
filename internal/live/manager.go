// Package live maintains the process-wide connection to the live message
// channel and fans events out to per-conversation subscribers.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vedran77/pulsefeed/internal/domain"
	"github.com/vedran77/pulsefeed/internal/transport/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	ErrClosed     = errors.New("live connection closed")
	ErrEmptyTopic = errors.New("topic is required")
)

const (
	writeWait   = 10 * time.Second
	outboxSize  = 64
	readLimit   = 64 << 10
	dialTimeout = 10 * time.Second
)

type Option func(*Manager)

// WithToken authenticates the connection. Without it the manager joins as
// an anonymous reader.
func WithToken(token string) Option {
	return func(m *Manager) {
		m.token = token
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.Named("live")
	}
}

type subscription struct {
	id uint64
	fn func(domain.LiveEvent)
}

// Manager is a single shared connection. Events for a topic are delivered
// to its subscribers in arrival order, on the manager's read goroutine.
type Manager struct {
	conn   *websocket.Conn
	token  string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	outbox chan *ws.Event

	mu     sync.Mutex
	topics map[string][]subscription
	nextID uint64
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the live endpoint at rawURL. ctx bounds the handshake
// only; the connection lives until Close.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Manager, error) {
	m := &Manager{
		logger: zap.NewNop(),
		outbox: make(chan *ws.Event, outboxSize),
		topics: make(map[string][]subscription),
	}
	for _, opt := range opts {
		opt(m)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing live url: %w", err)
	}
	if m.token != "" {
		q := u.Query()
		q.Set("token", m.token)
		u.RawQuery = q.Encode()
	}

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.Redacted(), err)
	}
	conn.SetReadLimit(readLimit)
	m.conn = conn

	base, stop := context.WithCancel(context.Background())
	m.cancel = stop
	m.group, m.ctx = errgroup.WithContext(base)
	m.group.Go(m.readPump)
	m.group.Go(m.writePump)

	m.logger.Info("connected to live channel", zap.String("url", u.Redacted()))
	return m, nil
}

// Subscribe registers fn for topic. The first subscriber of a topic asks
// the server for its events; the returned func drops fn and, for the last
// subscriber, stops them again.
func (m *Manager) Subscribe(topic string, fn func(domain.LiveEvent)) (func(), error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.ctx.Err() != nil {
		return nil, ErrClosed
	}

	m.nextID++
	id := m.nextID
	first := len(m.topics[topic]) == 0
	m.topics[topic] = append(m.topics[topic], subscription{id: id, fn: fn})

	if first {
		if err := m.enqueue(ws.EventTypeSubscribe, topic); err != nil {
			m.remove(topic, id)
			return nil, err
		}
		m.logger.Debug("subscribed", zap.String("topic", topic))
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(topic, id) })
	}, nil
}

func (m *Manager) unsubscribe(topic string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.remove(topic, id) || m.closed {
		return
	}
	if len(m.topics[topic]) > 0 {
		return
	}
	delete(m.topics, topic)
	if err := m.enqueue(ws.EventTypeUnsubscribe, topic); err != nil {
		m.logger.Debug("unsubscribe not sent", zap.String("topic", topic), zap.Error(err))
		return
	}
	m.logger.Debug("unsubscribed", zap.String("topic", topic))
}

// remove must be called with mu held.
func (m *Manager) remove(topic string, id uint64) bool {
	subs := m.topics[topic]
	for i, s := range subs {
		if s.id == id {
			m.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// enqueue must be called with mu held.
func (m *Manager) enqueue(eventType, topic string) error {
	evt, err := ws.NewEvent(eventType, "", ws.ConversationPayload{ConversationID: topic})
	if err != nil {
		return err
	}
	if m.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case m.outbox <- evt:
		return nil
	case <-m.ctx.Done():
		return ErrClosed
	}
}

// Done is closed when the connection ends, by Close or by the server.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// Close ends the connection and waits for both pumps. Later Subscribe
// calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.topics = make(map[string][]subscription)
		m.mu.Unlock()

		m.cancel()
		m.closeErr = m.group.Wait()
		m.conn.CloseNow()
		m.logger.Info("live channel closed")
	})
	return m.closeErr
}

// readPump ends the connection for both pumps when it returns, whatever
// the reason.
func (m *Manager) readPump() error {
	defer m.cancel()
	for {
		var evt ws.Event
		if err := wsjson.Read(m.ctx, m.conn, &evt); err != nil {
			if m.ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			m.logger.Warn("live channel read failed", zap.Error(err))
			return fmt.Errorf("reading live channel: %w", err)
		}
		m.dispatch(&evt)
	}
}

func (m *Manager) writePump() error {
	for {
		select {
		case evt := <-m.outbox:
			wctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := wsjson.Write(wctx, m.conn, evt)
			cancel()
			if err != nil {
				if m.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("writing %s: %w", evt.Type, err)
			}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Manager) dispatch(evt *ws.Event) {
	switch evt.Type {
	case ws.EventTypeMessage:
	case ws.EventTypeError:
		var p ws.ErrorPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			m.logger.Warn("dropping malformed live error event", zap.Error(err))
			return
		}
		m.logger.Warn("live channel error", zap.String("code", p.Code), zap.String("message", p.Message))
		return
	default:
		return
	}

	var payload ws.MessagePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		m.logger.Warn("dropping malformed live event",
			zap.String("conversation_id", evt.ConversationID),
			zap.Error(err),
		)
		return
	}

	m.mu.Lock()
	subs := append([]subscription(nil), m.topics[evt.ConversationID]...)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(payload)
	}
}
