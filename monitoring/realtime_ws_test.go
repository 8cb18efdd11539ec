package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterguard/ml"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastsPredictions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	hub.PublishPrediction(ml.PredictionResult{
		Schema:     ml.Schema{ml.FeaturePH, ml.FeatureFecalColiform},
		Sample:     ml.Sample{Features: []float64{7.0, 100}},
		Verdict:    ml.VerdictSafe,
		Confidence: 0.8,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, PredictionEvent, msg.Type)
	assert.NotEmpty(t, msg.ID)

	var payload PredictionMessage
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "Safe", payload.Verdict)
	assert.Equal(t, []float64{7.0, 100}, payload.Readings)
}

func TestHubBroadcastsReloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	hub.PublishReload(nil, errors.New("decode model: unexpected EOF"))
	hub.PublishReload(&ml.Artifact{Report: ml.Report{Accuracy: 0.9}, TrainedAt: time.Now()}, nil)

	failed := readMessage(t, conn)
	assert.Equal(t, ReloadFailed, failed.Type)
	var payload ReloadMessage
	require.NoError(t, json.Unmarshal(failed.Data, &payload))
	assert.Contains(t, payload.Error, "unexpected EOF")

	assert.Equal(t, ModelReloaded, readMessage(t, conn).Type)
}

func TestHubDisconnectsClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
