// Package feed keeps a conversation's message log in sync with paginated
// history and the live message channel.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vedran77/pulsefeed/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrClosed        = errors.New("feed is closed")
	ErrOlderInFlight = errors.New("older page already loading")
)

const (
	DefaultPageSize       = 50
	DefaultDebounceWindow = 500 * time.Millisecond
)

// HistoryFetcher returns a page of messages in ascending id order.
// An empty before requests the newest page.
type HistoryFetcher interface {
	FetchPage(ctx context.Context, conversationID, before string) ([]domain.Message, error)
}

// LiveSource delivers live events for a topic until unsubscribed.
type LiveSource interface {
	Subscribe(topic string, fn func(domain.LiveEvent)) (unsubscribe func(), err error)
}

type NameResolver interface {
	Resolve(seed int64) string
}

type Option func(*Synchronizer)

func WithPageSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger.Named("feed")
	}
}

// WithUpdateHandler registers fn to receive every Update. fn runs outside the
// synchronizer's lock and may call back into it.
func WithUpdateHandler(fn func(Update)) Option {
	return func(s *Synchronizer) {
		s.onUpdate = fn
	}
}

// Synchronizer owns the message log of one conversation view.
type Synchronizer struct {
	conversationID string
	fetcher        HistoryFetcher
	source         LiveSource
	names          NameResolver
	pageSize       int
	debounce       time.Duration
	logger         *zap.Logger
	onUpdate       func(Update)

	ctx    context.Context
	cancel context.CancelFunc
	older  *Coalescer[string]

	mu          sync.Mutex
	state       State
	unsubscribe func()
}

func NewSynchronizer(conversationID string, fetcher HistoryFetcher, source LiveSource, names NameResolver, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		conversationID: conversationID,
		fetcher:        fetcher,
		source:         source,
		names:          names,
		pageSize:       DefaultPageSize,
		debounce:       DefaultDebounceWindow,
		logger:         zap.NewNop(),
		state:          State{Phase: PhaseIdle, HasMoreOlder: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.older = NewCoalescer(s.debounce, s.fetchOlder)
	s.logger = s.logger.With(zap.String("conversation_id", conversationID))
	return s
}

func (s *Synchronizer) ConversationID() string {
	return s.conversationID
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Open subscribes to live messages and loads the newest page.
func (s *Synchronizer) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Phase == PhaseClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	needsSubscribe := s.unsubscribe == nil && s.source != nil
	s.mu.Unlock()

	if needsSubscribe {
		unsubscribe, err := s.source.Subscribe(s.conversationID, func(ev domain.LiveEvent) {
			s.OnLiveMessage(ev)
		})
		if err != nil {
			s.logger.Error("subscribing to live messages", zap.Error(err))
			return fmt.Errorf("subscribing to live messages: %w", err)
		}

		s.mu.Lock()
		if s.state.Phase == PhaseClosed {
			s.mu.Unlock()
			unsubscribe()
			return ErrClosed
		}
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
	}

	_, err := s.LoadNewest(ctx)
	return err
}

// LoadNewest replaces the log with the newest page and asks the view to
// scroll to the bottom. On failure the state is left untouched.
func (s *Synchronizer) LoadNewest(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state.Phase == PhaseClosed {
		defer s.mu.Unlock()
		return s.state.clone(), ErrClosed
	}
	prevPhase := s.state.Phase
	s.state.Phase = PhaseLoadingNewest
	s.mu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()
	page, err := s.fetcher.FetchPage(ctx, s.conversationID, "")

	s.mu.Lock()
	if s.state.Phase == PhaseClosed {
		defer s.mu.Unlock()
		s.logger.Debug("discarding newest page after close")
		return s.state.clone(), ErrClosed
	}
	if err != nil {
		s.state.Phase = prevPhase
		st := s.state.clone()
		s.mu.Unlock()
		s.logger.Error("loading newest page", zap.Error(err))
		return st, fmt.Errorf("loading newest page: %w", err)
	}

	fresh := s.prepare(page)
	messages := fresh
	// Live messages that raced the fetch stay after the page.
	if len(s.state.Messages) > 0 {
		seen := idSet(fresh)
		var tail string
		if len(fresh) > 0 {
			tail = fresh[len(fresh)-1].ID
		}
		for _, m := range s.state.Messages {
			if _, dup := seen[m.ID]; dup || strings.Compare(m.ID, tail) <= 0 {
				continue
			}
			messages = append(messages, m)
		}
	}

	s.state.Messages = messages
	s.state.OldestID = oldestID(messages)
	s.state.HasMoreOlder = len(page) >= s.pageSize
	s.state.Phase = PhaseReady
	s.state.Version++
	st := s.state.clone()
	s.mu.Unlock()

	s.logger.Debug("loaded newest page", zap.Int("count", len(page)), zap.Bool("has_more_older", st.HasMoreOlder))
	s.emit(Update{Kind: UpdateReset, State: st, ForceScroll: true})
	return st, nil
}

// LoadOlderBefore prepends the page preceding cursor. Ids already in the
// log are skipped and ascending order is preserved.
func (s *Synchronizer) LoadOlderBefore(ctx context.Context, cursor string) (State, error) {
	s.mu.Lock()
	if s.state.Phase == PhaseClosed {
		defer s.mu.Unlock()
		return s.state.clone(), ErrClosed
	}
	if s.state.FetchingOlder {
		defer s.mu.Unlock()
		return s.state.clone(), ErrOlderInFlight
	}
	s.state.FetchingOlder = true
	s.mu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()
	page, err := s.fetcher.FetchPage(ctx, s.conversationID, cursor)

	s.mu.Lock()
	s.state.FetchingOlder = false
	if s.state.Phase == PhaseClosed {
		defer s.mu.Unlock()
		s.logger.Debug("discarding older page after close", zap.String("cursor", cursor))
		return s.state.clone(), ErrClosed
	}
	if err != nil {
		st := s.state.clone()
		s.mu.Unlock()
		s.logger.Error("loading older page", zap.String("cursor", cursor), zap.Error(err))
		return st, fmt.Errorf("loading messages before %s: %w", cursor, err)
	}

	seen := idSet(s.state.Messages)
	fresh := make([]domain.Message, 0, len(page))
	for _, m := range s.prepare(page) {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		fresh = append(fresh, m)
	}

	messages := append(fresh, s.state.Messages...)
	if !slices.IsSortedFunc(messages, compareID) {
		slices.SortStableFunc(messages, compareID)
	}

	s.state.Messages = messages
	s.state.OldestID = oldestID(messages)
	s.state.HasMoreOlder = len(page) >= s.pageSize
	s.state.Version++
	st := s.state.clone()
	s.mu.Unlock()

	s.logger.Debug("loaded older page",
		zap.String("cursor", cursor),
		zap.Int("count", len(page)),
		zap.Int("added", len(fresh)),
		zap.Bool("has_more_older", st.HasMoreOlder),
	)
	s.emit(Update{Kind: UpdatePrepend, State: st})
	return st, nil
}

// OnLiveMessage appends a live message to the tail. It reports false when
// the event was dropped as malformed, duplicate or late.
func (s *Synchronizer) OnLiveMessage(ev domain.LiveEvent) (State, bool) {
	if ev.Content == nil {
		s.logger.Warn("dropping live event without content")
		return s.State(), false
	}

	msg := *ev.Content
	if msg.ID == "" {
		s.logger.Warn("dropping live message without id")
		return s.State(), false
	}
	if msg.UserSeed == nil && ev.UserSeed != nil {
		seed := *ev.UserSeed
		msg.UserSeed = &seed
	}
	s.resolveIdentity(&msg, ev.Seed())

	s.mu.Lock()
	if s.state.Phase == PhaseClosed {
		defer s.mu.Unlock()
		return s.state.clone(), false
	}
	if s.state.Contains(msg.ID) {
		defer s.mu.Unlock()
		s.logger.Debug("dropping duplicate live message", zap.String("message_id", msg.ID))
		return s.state.clone(), false
	}

	s.state.Messages = append(s.state.Messages, msg)
	if s.state.OldestID == "" {
		s.state.OldestID = msg.ID
	}
	s.state.Version++
	st := s.state.clone()
	s.mu.Unlock()

	s.emit(Update{Kind: UpdateAppend, State: st})
	return st, true
}

// RequestOlderPage asks for the page before oldestVisibleID. Calls within
// the debounce window collapse into one load using the latest id.
func (s *Synchronizer) RequestOlderPage(oldestVisibleID string) {
	if oldestVisibleID == "" {
		return
	}

	s.mu.Lock()
	skip := s.state.Phase != PhaseReady || !s.state.HasMoreOlder || s.state.FetchingOlder
	s.mu.Unlock()
	if skip {
		return
	}

	s.older.Trigger(oldestVisibleID)
}

func (s *Synchronizer) fetchOlder(cursor string) {
	s.mu.Lock()
	skip := s.state.Phase != PhaseReady || !s.state.HasMoreOlder || s.state.FetchingOlder
	s.mu.Unlock()
	if skip {
		return
	}

	// errors are logged by LoadOlderBefore
	_, _ = s.LoadOlderBefore(s.ctx, cursor)
}

// Close tears the view down. In-flight fetches are cancelled and their
// results discarded.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.state.Phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	s.state.Phase = PhaseClosed
	s.state.Version++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	s.older.Stop()
	s.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.logger.Debug("feed closed")
}

// scoped derives a context that is also cancelled by Close.
func (s *Synchronizer) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// prepare resolves display names and drops repeated ids within one page.
func (s *Synchronizer) prepare(page []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(page))
	seen := make(map[string]struct{}, len(page))
	for _, m := range page {
		if _, dup := seen[m.ID]; dup || m.ID == "" {
			continue
		}
		seen[m.ID] = struct{}{}
		seed := domain.DefaultUserSeed
		if m.UserSeed != nil {
			seed = *m.UserSeed
		}
		s.resolveIdentity(&m, seed)
		out = append(out, m)
	}
	return out
}

func (s *Synchronizer) resolveIdentity(m *domain.Message, seed int64) {
	if m.Authenticated() || s.names == nil {
		return
	}
	m.User = &domain.User{DisplayName: s.names.Resolve(seed)}
}

func (s *Synchronizer) emit(u Update) {
	if s.onUpdate != nil {
		s.onUpdate(u)
	}
}

func compareID(a, b domain.Message) int {
	return strings.Compare(a.ID, b.ID)
}

func idSet(messages []domain.Message) map[string]struct{} {
	set := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		set[m.ID] = struct{}{}
	}
	return set
}

func oldestID(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[0].ID
}
