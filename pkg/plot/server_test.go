package plot

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/feed"
	logzero "github.com/raykavin/nsechart/pkg/logger/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource map[string][]core.Bar

func (m memorySource) History(_ context.Context, ticker, _, _ string) ([]core.Bar, error) {
	ticker, err := feed.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	bars, ok := m[ticker]
	if !ok {
		return nil, feed.ErrNotFound
	}
	return bars, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	source := memorySource{
		"TCS":   testBars(60),
		"INFY":  testBars(60),
		"EMPTY": {},
	}

	server, err := NewServer(logzero.Discard(), source, WithDebug(), WithDefaultWidth(900))
	require.NoError(t, err)

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return server, httpServer
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServer_Index(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, body := get(t, httpServer.URL+"/?ticker=tcs&toggles=rsi14")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "TCS")
	assert.Contains(t, string(body), "/assets/chart.js")

	resp, _ = get(t, httpServer.URL+"/?ticker=%24%24%24")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, httpServer.URL+"/nothing-here")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Script(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, body := get(t, httpServer.URL+"/assets/chart.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "/ws")
	// fixed scale ranges are pinned in the browser
	assert.Contains(t, string(body), "autoscaleInfoProvider")
}

func TestServer_PNG(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, body := get(t, httpServer.URL+"/chart.png?ticker=TCS&toggles=sma20,rsi14,volume&width=640&viewport=1280&compare=INFY")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 550, img.Bounds().Dy())
}

func TestServer_PNGColorlessSeries(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, body := get(t, httpServer.URL+"/chart.png?ticker=TCS&toggles=volume,macd&width=900&viewport=1280")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 900, img.Bounds().Dx())
	assert.Equal(t, 550, img.Bounds().Dy())
}

func TestIntParam(t *testing.T) {
	value, err := intParam("", 900, MaxWidth)
	require.NoError(t, err)
	assert.Equal(t, 900, value)

	value, err = intParam(strconv.Itoa(MaxWidth), 900, MaxWidth)
	require.NoError(t, err)
	assert.Equal(t, MaxWidth, value)

	for _, raw := range []string{"0", "-3", "wide", strconv.Itoa(MaxWidth + 1)} {
		_, err := intParam(raw, 900, MaxWidth)
		assert.Error(t, err, raw)
	}
}

func TestServer_PNGErrors(t *testing.T) {
	_, httpServer := newTestServer(t)

	tt := []struct {
		name   string
		query  string
		status int
	}{
		{"missing ticker", "", http.StatusBadRequest},
		{"unknown toggle", "ticker=TCS&toggles=bollinger", http.StatusBadRequest},
		{"bad theme", "ticker=TCS&theme=neon", http.StatusBadRequest},
		{"bad width", "ticker=TCS&width=wide", http.StatusBadRequest},
		{"oversized width", "ticker=TCS&width=200000", http.StatusBadRequest},
		{"overflowing width", "ticker=TCS&width=99999999999999999999", http.StatusBadRequest},
		{"oversized viewport", "ticker=TCS&viewport=5000", http.StatusBadRequest},
		{"unknown ticker", "ticker=WIPRO", http.StatusNotFound},
		{"empty history", "ticker=EMPTY", http.StatusNotFound},
		{"unknown comparison", "ticker=TCS&compare=WIPRO", http.StatusNotFound},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := get(t, httpServer.URL+"/chart.png?"+tc.query)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestServer_HistoryCSV(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, body := get(t, httpServer.URL+"/history.csv?ticker=tcs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	bars, err := feed.ReadCSV(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, bars, 60)
}

func TestServer_Health(t *testing.T) {
	_, httpServer := newTestServer(t)

	resp, body := get(t, httpServer.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["sessions"])
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_WebSocketSession(t *testing.T) {
	server, httpServer := newTestServer(t)
	conn := dial(t, httpServer)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:     MessageLoad,
		Ticker:   "tcs",
		Toggles:  "sma20,rsi14",
		Width:    1000,
		Viewport: 1000,
	}))

	msg := readMessage(t, conn)
	require.Equal(t, MessageChart, msg.Type, string(msg.Payload))

	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snapshot))
	assert.Equal(t, uint64(1), snapshot.ID)
	assert.Equal(t, 1000, snapshot.Width)
	assert.Equal(t, 550, snapshot.Height)
	assert.Len(t, snapshot.Series, 3)
	assert.Len(t, server.Sessions(), 1)

	var rsi *Scale
	for i := range snapshot.Scales {
		if snapshot.Scales[i].ID == ScaleRSI {
			rsi = &snapshot.Scales[i]
		}
	}
	require.NotNil(t, rsi)
	assert.Equal(t, &Range{Min: 0, Max: 100}, rsi.Range)

	// resize only changes the width of the same instance
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageResize, Width: 600, Viewport: 600}))
	msg = readMessage(t, conn)
	require.Equal(t, MessageResize, msg.Type)
	var resized resizePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &resized))
	assert.Equal(t, resizePayload{ID: 1, Width: 600}, resized)

	// a toggle flip disposes and rebuilds
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageToggles, Toggles: "sma20", Theme: "light"}))
	msg = readMessage(t, conn)
	require.Equal(t, MessageDispose, msg.Type)
	var disposed disposePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &disposed))
	assert.Equal(t, uint64(1), disposed.ID)

	msg = readMessage(t, conn)
	require.Equal(t, MessageChart, msg.Type)
	require.NoError(t, json.Unmarshal(msg.Payload, &snapshot))
	assert.Equal(t, uint64(2), snapshot.ID)
	assert.Equal(t, core.ThemeLight, snapshot.Theme)
	assert.Equal(t, 600, snapshot.Width)
	assert.Equal(t, 300, snapshot.Height)
	assert.True(t, snapshot.Series[0].Kind == KindCandlestick)
}

func TestServer_WebSocketErrors(t *testing.T) {
	_, httpServer := newTestServer(t)
	conn := dial(t, httpServer)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageLoad, Ticker: "WIPRO"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "zoom"}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)

	// empty history mounts nothing and reports it
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageLoad, Ticker: "EMPTY", Toggles: "all"}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, string(msg.Payload), "no history")
}
