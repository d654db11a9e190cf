package attendance

import (
	"context"
	"encoding/json"
	"log"

	"qrattend/internal/metrics"
	"qrattend/internal/queue"
)

// EventSink stores scan audit events.
type EventSink interface {
	InsertScanEvent(ctx context.Context, evt ScanEvent) error
}

// RunAuditLog drains scan messages into sink until msgs is closed.
// Messages of other types and undecodable bodies are skipped.
func RunAuditLog(ctx context.Context, msgs <-chan queue.Message, sink EventSink) {
	for msg := range msgs {
		if msg.Type != MessageTypeScan {
			continue
		}
		var evt ScanEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil || evt.UserID == "" {
			log.Printf("audit: skipping malformed scan event: %v", err)
			metrics.AuditEvents.WithLabelValues("malformed").Inc()
			continue
		}
		if err := sink.InsertScanEvent(ctx, evt); err != nil {
			log.Printf("audit: store event for %s failed: %v", evt.UserID, err)
			metrics.AuditEvents.WithLabelValues("failed").Inc()
			continue
		}
		metrics.AuditEvents.WithLabelValues("stored").Inc()
	}
}
