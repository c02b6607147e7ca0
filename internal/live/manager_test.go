package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulsefeed/internal/domain"
	"github.com/vedran77/pulsefeed/internal/transport/ws"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// scriptedServer accepts one connection and hands it to script. The
// connection stays open until the client goes away.
func scriptedServer(t *testing.T, script func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		script(ctx, conn)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func message(id, conv string) *domain.Message {
	return &domain.Message{ID: id, ConversationID: conv, Content: "hi " + id}
}

func TestSubscribeSendsOneFramePerTopic(t *testing.T) {
	frames := make(chan ws.Event, 8)
	srv := scriptedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		for range 2 {
			var evt ws.Event
			if err := wsjson.Read(ctx, conn, &evt); err != nil {
				return
			}
			frames <- evt
		}
	})

	m, err := Dial(context.Background(), wsURL(srv, "/ws"))
	require.NoError(t, err)
	defer m.Close()

	unsubA, err := m.Subscribe("general", func(domain.LiveEvent) {})
	require.NoError(t, err)
	unsubB, err := m.Subscribe("general", func(domain.LiveEvent) {})
	require.NoError(t, err)

	unsubA()
	unsubA()
	unsubB()

	var got []ws.Event
	for range 2 {
		select {
		case evt := <-frames:
			got = append(got, evt)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}

	assert.Equal(t, ws.EventTypeSubscribe, got[0].Type)
	assert.JSONEq(t, `{"conversation_id":"general"}`, string(got[0].Payload))
	assert.Equal(t, ws.EventTypeUnsubscribe, got[1].Type)
	assert.JSONEq(t, `{"conversation_id":"general"}`, string(got[1].Payload))
}

func TestDispatchKeepsOrderAndSkipsMalformed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	srv := scriptedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		var sub ws.Event
		if err := wsjson.Read(ctx, conn, &sub); err != nil {
			return
		}

		first, _ := ws.NewEvent(ws.EventTypeMessage, "general", ws.MessagePayload{Content: message("m1", "general")})
		other, _ := ws.NewEvent(ws.EventTypeMessage, "random", ws.MessagePayload{Content: message("x1", "random")})
		last, _ := ws.NewEvent(ws.EventTypeMessage, "general", ws.MessagePayload{Content: message("m2", "general")})

		_ = wsjson.Write(ctx, conn, first)
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"message","conversation_id":"general","payload":"oops"}`))
		_ = wsjson.Write(ctx, conn, other)
		_ = wsjson.Write(ctx, conn, last)
	})

	m, err := Dial(context.Background(), wsURL(srv, "/ws"), WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer m.Close()

	got := make(chan string, 8)
	_, err = m.Subscribe("general", func(ev domain.LiveEvent) {
		got <- ev.Content.ID
	})
	require.NoError(t, err)

	var ids []string
	for range 2 {
		select {
		case id := <-got:
			ids = append(ids, id)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for live events")
		}
	}
	assert.Equal(t, []string{"m1", "m2"}, ids)
	assert.Equal(t, 1, logs.FilterMessage("dropping malformed live event").Len())
}

func TestSubscribeAfterClose(t *testing.T) {
	srv := scriptedServer(t, func(context.Context, *websocket.Conn) {})

	m, err := Dial(context.Background(), wsURL(srv, "/ws"))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Subscribe("general", func(domain.LiveEvent) {})
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestServerClosureEndsConnection(t *testing.T) {
	srv := scriptedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(websocket.StatusNormalClosure, "shutting down")
	})

	m, err := Dial(context.Background(), wsURL(srv, "/ws"))
	require.NoError(t, err)

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after the server closed the connection")
	}

	_, err = m.Subscribe("general", func(domain.LiveEvent) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, m.Close())
}

func TestMalformedErrorFrameIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	srv := scriptedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"error","payload":"oops"}`))
		conn.Close(websocket.StatusNormalClosure, "")
	})

	m, err := Dial(context.Background(), wsURL(srv, "/ws"), WithLogger(zap.New(core)))
	require.NoError(t, err)

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not end")
	}
	require.NoError(t, m.Close())

	assert.Equal(t, 1, logs.FilterMessage("dropping malformed live error event").Len())
	assert.Zero(t, logs.FilterMessage("live channel error").Len())
}

func TestSubscribeRequiresTopic(t *testing.T) {
	srv := scriptedServer(t, func(context.Context, *websocket.Conn) {})

	m, err := Dial(context.Background(), wsURL(srv, "/ws"))
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Subscribe("", func(domain.LiveEvent) {})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestRoundTripThroughHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(nil)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, "secret"))
	srv := httptest.NewServer(mux)

	m, err := Dial(context.Background(), wsURL(srv, "/ws"))
	require.NoError(t, err)

	got := make(chan domain.LiveEvent, 16)
	_, err = m.Subscribe("general", func(ev domain.LiveEvent) {
		select {
		case got <- ev:
		default:
		}
	})
	require.NoError(t, err)

	seed := int64(42)
	notifier := ws.NewHubNotifier(hub)
	msg := &domain.Message{ID: "0192", ConversationID: "general", Content: "hello", UserSeed: &seed}

	var received domain.LiveEvent
	require.Eventually(t, func() bool {
		notifier.NotifyNewMessage(msg)
		select {
		case received = <-got:
			return true
		default:
			return false
		}
	}, 3*time.Second, 25*time.Millisecond)

	require.NotNil(t, received.Content)
	assert.Equal(t, "hello", received.Content.Content)
	assert.Equal(t, int64(42), received.Seed())

	require.NoError(t, m.Close())
	srv.Close()
	cancel()
	<-hubDone
}
