package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"qrattend/internal/queue"
)

type memSink struct {
	events []ScanEvent
	fail   bool
}

func (m *memSink) InsertScanEvent(_ context.Context, evt ScanEvent) error {
	if m.fail {
		return errors.New("db down")
	}
	m.events = append(m.events, evt)
	return nil
}

func TestRunAuditLog_StoresScanEvents(t *testing.T) {
	msgs := make(chan queue.Message, 4)
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	msgs <- queue.Message{Type: MessageTypeScan, Body: []byte(`{"user_id":"abcd1234","outcome":"checked_in","source":"camera","scanned_at":"2026-10-14T09:00:00Z"}`)}
	msgs <- queue.Message{Type: "other", Body: []byte(`{}`)}
	msgs <- queue.Message{Type: MessageTypeScan, Body: []byte(`not json`)}
	msgs <- queue.Message{Type: MessageTypeScan, Body: []byte(`{"outcome":"unknown"}`)}
	close(msgs)

	sink := &memSink{}
	RunAuditLog(context.Background(), msgs, sink)

	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one stored event, got %+v", sink.events)
	}
	evt := sink.events[0]
	if evt.UserID != "abcd1234" || evt.Outcome != OutcomeCheckedIn || evt.Source != SourceCamera || !evt.ScannedAt.Equal(at) {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestRunAuditLog_KeepsGoingAfterStoreFailure(t *testing.T) {
	msgs := make(chan queue.Message, 2)
	msgs <- queue.Message{Type: MessageTypeScan, Body: []byte(`{"user_id":"a"}`)}
	msgs <- queue.Message{Type: MessageTypeScan, Body: []byte(`{"user_id":"b"}`)}
	close(msgs)

	done := make(chan struct{})
	go func() {
		RunAuditLog(context.Background(), msgs, &memSink{fail: true})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit loop should drain the channel even when the sink fails")
	}
}
