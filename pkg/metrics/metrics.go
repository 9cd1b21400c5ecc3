package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics exposes a small in-memory counter set for the notification service.
type Metrics struct {
	consumed      atomic.Int64
	acked         atomic.Int64
	nacked        atomic.Int64
	unknown       atomic.Int64
	created       atomic.Int64
	emailsSent    atomic.Int64
	emailsFailed  atomic.Int64
	publishFailed atomic.Int64
	reconnects    atomic.Int64
	directoryHits atomic.Int64
	directoryMiss atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Consumed      int64 `json:"consumed"`
	Acked         int64 `json:"acked"`
	Nacked        int64 `json:"nacked"`
	UnknownEvents int64 `json:"unknown_events"`
	Created       int64 `json:"notifications_created"`
	EmailsSent    int64 `json:"emails_sent"`
	EmailsFailed  int64 `json:"emails_failed"`
	PublishFailed int64 `json:"publish_failed"`
	Reconnects    int64 `json:"reconnects"`
	DirectoryHits int64 `json:"directory_hits"`
	DirectoryMiss int64 `json:"directory_misses"`
}

// New returns a zeroed Metrics collector.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConsumed()      { m.consumed.Add(1) }
func (m *Metrics) IncAcked()         { m.acked.Add(1) }
func (m *Metrics) IncNacked()        { m.nacked.Add(1) }
func (m *Metrics) IncUnknown()       { m.unknown.Add(1) }
func (m *Metrics) IncCreated()       { m.created.Add(1) }
func (m *Metrics) IncEmailSent()     { m.emailsSent.Add(1) }
func (m *Metrics) IncEmailFailed()   { m.emailsFailed.Add(1) }
func (m *Metrics) IncPublishFailed() { m.publishFailed.Add(1) }
func (m *Metrics) IncReconnect()     { m.reconnects.Add(1) }
func (m *Metrics) IncDirectoryHit()  { m.directoryHits.Add(1) }
func (m *Metrics) IncDirectoryMiss() { m.directoryMiss.Add(1) }

// Snapshot reads every counter.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Consumed:      m.consumed.Load(),
		Acked:         m.acked.Load(),
		Nacked:        m.nacked.Load(),
		UnknownEvents: m.unknown.Load(),
		Created:       m.created.Load(),
		EmailsSent:    m.emailsSent.Load(),
		EmailsFailed:  m.emailsFailed.Load(),
		PublishFailed: m.publishFailed.Load(),
		Reconnects:    m.reconnects.Load(),
		DirectoryHits: m.directoryHits.Load(),
		DirectoryMiss: m.directoryMiss.Load(),
	}
}

// Handler exposes the counters as JSON.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
