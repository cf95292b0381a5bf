package httpserver

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/litreview/internal/domain"
)

// readSSEEvents reads events from an SSE stream until it closes or n
// events arrive.
func readSSEEvents(t *testing.T, resp *http.Response, n int) []ProgressEvent {
	t.Helper()
	var events []ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
		if len(events) == n {
			break
		}
	}
	return events
}

func TestStreamEvents(t *testing.T) {
	runner := newStubRunner()
	runner.result = testResult()
	runner.block = make(chan struct{})
	srv, ts := newTestServer(t, runner)

	resp := postReview(t, ts, `{"topic":"gene therapy","min_references":20}`)
	var ack startReviewResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	resp.Body.Close()

	runID := uuid.MustParse(ack.RunID)
	<-runner.started
	waitForStatus(t, srv, runID, StatusRunning)
	srv.registry.Progress(ack.RunID, "Searching paper sources")

	streamResp, err := http.Get(ts.URL + "/literature-reviews/" + ack.RunID + "/events")
	require.NoError(t, err)
	defer streamResp.Body.Close()
	require.Equal(t, http.StatusOK, streamResp.StatusCode)
	assert.Equal(t, "text/event-stream", streamResp.Header.Get("Content-Type"))

	// Release the run while the stream is attached, then read history
	// plus the live terminal event.
	close(runner.block)

	events := readSSEEvents(t, streamResp, 3)
	require.Len(t, events, 3)
	assert.Equal(t, "running", events[0].EventType)
	assert.Equal(t, "progress", events[1].EventType)
	assert.Equal(t, "Searching paper sources", events[1].Message)
	assert.Equal(t, "completed", events[2].EventType)
	assert.Equal(t, ack.RunID, events[2].RunID)
}

func TestStreamEventsTerminalRunReplaysAndCloses(t *testing.T) {
	runner := newStubRunner()
	runner.result = testResult()
	srv, ts := newTestServer(t, runner)

	resp := postReview(t, ts, `{"topic":"gene therapy","min_references":20}`)
	var ack startReviewResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	resp.Body.Close()

	<-runner.started
	waitForStatus(t, srv, uuid.MustParse(ack.RunID), StatusCompleted)

	streamResp, err := http.Get(ts.URL + "/literature-reviews/" + ack.RunID + "/events")
	require.NoError(t, err)
	defer streamResp.Body.Close()

	done := make(chan []ProgressEvent, 1)
	go func() {
		done <- readSSEEvents(t, streamResp, 10)
	}()

	select {
	case events := <-done:
		require.NotEmpty(t, events)
		assert.Equal(t, "completed", events[len(events)-1].EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close for terminal run")
	}
}

func TestStreamEventsUnknownRun(t *testing.T) {
	_, ts := newTestServer(t, newStubRunner())

	resp, err := http.Get(ts.URL + "/literature-reviews/" + uuid.NewString() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegistrySubscribeDropsWhenBufferFull(t *testing.T) {
	registry := NewRegistry()
	req := domain.ReviewRequest{ID: uuid.New(), Topic: "t", MinReferences: 1, CreatedAt: time.Now()}
	registry.Create(req)
	registry.MarkRunning(req.ID)

	_, events, cancel, ok := registry.Subscribe(req.ID)
	require.True(t, ok)
	defer cancel()

	// Overrun the subscriber buffer without draining; Publish must not block.
	finished := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			registry.Publish(req.ID, "update")
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}

	// Drain what made it through.
	drained := 0
	for range len(events) {
		<-events
		drained++
	}
	assert.LessOrEqual(t, drained, subscriberBuffer)
}
