package monitor

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admin-iq/iq-agent/internal/delivery"
	"github.com/admin-iq/iq-agent/internal/security"
	"github.com/admin-iq/iq-agent/pkg/models"
)

type fakeSource struct {
	name    string
	records chan RawRecord
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{name: name, records: make(chan RawRecord, 16)}
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Next(ctx context.Context) (RawRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rec := <-s.records:
		return rec, nil
	}
}

func (s *fakeSource) Close() error { return nil }

func testDeliveryClient(t *testing.T, attempts int) *delivery.Client {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	provider, err := security.New("token", "client",
		base64.StdEncoding.EncodeToString(pemBytes))
	require.NoError(t, err)

	return delivery.New(provider, attempts, time.Second, zerolog.Nop())
}

func TestLogFeedNormalizesAndDedups(t *testing.T) {
	source := newFakeSource("journald")
	source.records <- RawRecord{
		{Name: "MESSAGE", Value: "raid degraded"},
		{Name: "PRIORITY", Value: "2"},
	}
	feed := NewLogFeed(source, NewDedup(0), "MESSAGE")

	payload, err := feed.Next(context.Background())
	require.NoError(t, err)

	var event models.LogEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "journald", event.Source)
	require.Len(t, event.Properties, 2)
	assert.Equal(t, "message", event.Properties[0].Name)
	assert.Equal(t, "raid degraded", event.Properties[0].Value)

	// The same message again is suppressed.
	source.records <- RawRecord{{Name: "MESSAGE", Value: "raid degraded"}}
	_, err = feed.Next(context.Background())
	assert.ErrorIs(t, err, errSkip)

	// An empty message is suppressed unconditionally.
	source.records <- RawRecord{{Name: "PRIORITY", Value: "2"}}
	_, err = feed.Next(context.Background())
	assert.ErrorIs(t, err, errSkip)
}

func TestLogFeedWithoutDedupField(t *testing.T) {
	source := newFakeSource("eventlog")
	source.records <- RawRecord{{Name: "eventid", Value: 6008}}
	source.records <- RawRecord{{Name: "eventid", Value: 6008}}
	feed := NewLogFeed(source, nil, "")

	// Without a dedup field both records pass through.
	_, err := feed.Next(context.Background())
	require.NoError(t, err)
	_, err = feed.Next(context.Background())
	require.NoError(t, err)
}

func TestVitalsFeed(t *testing.T) {
	feed := NewVitalsFeed(collectorFunc(func() map[string]any {
		return map[string]any{
			"memory_info": map[string]any{"total": "16.00GB"},
		}
	}), 10*time.Millisecond)
	defer feed.Stop()

	payload, err := feed.Next(context.Background())
	require.NoError(t, err)

	var event models.VitalsEvent
	require.NoError(t, json.Unmarshal(payload, &event))

	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(event.Vitals), &tree))
	assert.Contains(t, tree, "memory_info")
}

func TestVitalsFeedHonorsCancel(t *testing.T) {
	feed := NewVitalsFeed(collectorFunc(func() map[string]any { return nil }), time.Hour)
	defer feed.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := feed.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type collectorFunc func() map[string]any

func (f collectorFunc) Collect() map[string]any { return f() }

func TestMonitorDeliversInArrivalOrder(t *testing.T) {
	var received []string
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event models.LogEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received = append(received, event.Properties[0].Value)
		if len(received) == 2 {
			close(done)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	source := newFakeSource("journald")
	source.records <- RawRecord{{Name: "MESSAGE", Value: "first"}}
	source.records <- RawRecord{{Name: "MESSAGE", Value: "second"}}

	feed := NewLogFeed(source, NewDedup(0), "MESSAGE")
	m := New("journald", server.URL, feed, testDeliveryClient(t, 3), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(finished)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events not delivered")
	}
	cancel()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}

	assert.Equal(t, []string{"first", "second"}, received)
}

func TestMonitorSurvivesDeliveryFailure(t *testing.T) {
	var statuses []int
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event models.LogEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		if event.Properties[0].Value == "doomed" {
			statuses = append(statuses, 500)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		statuses = append(statuses, 201)
		w.WriteHeader(http.StatusCreated)
		close(done)
	}))
	defer server.Close()

	source := newFakeSource("journald")
	source.records <- RawRecord{{Name: "MESSAGE", Value: "doomed"}}
	source.records <- RawRecord{{Name: "MESSAGE", Value: "fine"}}

	feed := NewLogFeed(source, NewDedup(0), "MESSAGE")
	m := New("journald", server.URL, feed, testDeliveryClient(t, 2), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor stalled after delivery failure")
	}
	cancel()

	// Two failed attempts for the dropped event, then the next one.
	assert.Equal(t, []int{500, 500, 201}, statuses)
}
