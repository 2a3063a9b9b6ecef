package lyria

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// startServer runs script against each upgraded connection and returns
// a ws:// endpoint for the dialer.
func startServer(t *testing.T, script func(t *testing.T, conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(t, conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readFrame decodes one client frame into a generic map.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	var frame map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func ackSetup(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}))
}

func TestConnectSendsSetupAndKey(t *testing.T) {
	gotModel := make(chan string, 1)
	gotKey := make(chan string, 1)

	endpoint := startServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		gotKey <- r.URL.Query().Get("key")

		frame := readFrame(t, conn)
		var setup setupPayload
		require.NoError(t, json.Unmarshal(frame["setup"], &setup))
		gotModel <- setup.Model

		ackSetup(t, conn)
		time.Sleep(50 * time.Millisecond)
	})

	d := Dialer{APIKey: "secret-key", Endpoint: endpoint}
	sess, err := d.Connect(context.Background(), Callbacks{})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, "secret-key", <-gotKey)
	assert.Equal(t, DefaultModel, <-gotModel)
}

func TestConnectTimesOutWithoutSetupComplete(t *testing.T) {
	endpoint := startServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		readFrame(t, conn)
		// Never acknowledge.
		time.Sleep(500 * time.Millisecond)
	})

	d := Dialer{APIKey: "k", Endpoint: endpoint, SetupTimeout: 50 * time.Millisecond}
	_, err := d.Connect(context.Background(), Callbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setupComplete")
}

func TestSessionDispatchesAudioChunks(t *testing.T) {
	endpoint := startServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		readFrame(t, conn)
		ackSetup(t, conn)
		require.NoError(t, conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"audioChunks": []map[string]any{{"data": "AAAA", "mimeType": "audio/pcm"}},
			},
		}))
		time.Sleep(100 * time.Millisecond)
	})

	chunks := make(chan []AudioChunk, 4)
	d := Dialer{APIKey: "k", Endpoint: endpoint}
	sess, err := d.Connect(context.Background(), Callbacks{
		OnMessage: func(msg *ServerMessage) {
			if msg.ServerContent != nil {
				chunks <- msg.ServerContent.AudioChunks
			}
		},
	})
	require.NoError(t, err)
	defer sess.Close()

	select {
	case got := <-chunks:
		require.Len(t, got, 1)
		assert.Equal(t, "AAAA", got[0].Data)
	case <-time.After(time.Second):
		t.Fatal("no audio chunk dispatched")
	}
}

func TestSessionWriteFrames(t *testing.T) {
	frames := make(chan map[string]json.RawMessage, 8)
	endpoint := startServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		readFrame(t, conn) // setup
		ackSetup(t, conn)
		for i := 0; i < 4; i++ {
			frames <- readFrame(t, conn)
		}
	})

	d := Dialer{APIKey: "k", Endpoint: endpoint}
	sess, err := d.Connect(context.Background(), Callbacks{})
	require.NoError(t, err)
	defer sess.Close()

	ctx := context.Background()
	require.NoError(t, sess.SetWeightedPrompts(ctx, []WeightedPrompt{{Text: "rain", Weight: 1}}))
	require.NoError(t, sess.SetMusicGenerationConfig(ctx, GenerationConfig{BPM: 120}))
	require.NoError(t, sess.Play(ctx))
	require.NoError(t, sess.ResetContext(ctx))

	frame := <-frames
	var content clientContent
	require.NoError(t, json.Unmarshal(frame["clientContent"], &content))
	require.Len(t, content.WeightedPrompts, 1)
	assert.Equal(t, "rain", content.WeightedPrompts[0].Text)

	frame = <-frames
	var cfg GenerationConfig
	require.NoError(t, json.Unmarshal(frame["musicGenerationConfig"], &cfg))
	assert.Equal(t, 120, cfg.BPM)

	frame = <-frames
	var verb string
	require.NoError(t, json.Unmarshal(frame["playbackControl"], &verb))
	assert.Equal(t, "PLAY", verb)

	frame = <-frames
	require.NoError(t, json.Unmarshal(frame["playbackControl"], &verb))
	assert.Equal(t, "RESET_CONTEXT", verb)
}

func TestServerCloseFiresOnClose(t *testing.T) {
	endpoint := startServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		readFrame(t, conn)
		ackSetup(t, conn)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	closed := make(chan struct{})
	d := Dialer{APIKey: "k", Endpoint: endpoint}
	sess, err := d.Connect(context.Background(), Callbacks{
		OnClose: func() { close(closed) },
	})
	require.NoError(t, err)
	defer sess.Close()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose never fired")
	}
}

func TestLocalCloseSuppressesCallbacks(t *testing.T) {
	endpoint := startServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		readFrame(t, conn)
		ackSetup(t, conn)
		time.Sleep(200 * time.Millisecond)
	})

	fired := make(chan struct{}, 2)
	d := Dialer{APIKey: "k", Endpoint: endpoint}
	sess, err := d.Connect(context.Background(), Callbacks{
		OnClose: func() { fired <- struct{}{} },
		OnError: func(error) { fired <- struct{}{} },
	})
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close()) // idempotent

	select {
	case <-fired:
		t.Fatal("local teardown must not fire callbacks")
	case <-time.After(100 * time.Millisecond):
	}
}
