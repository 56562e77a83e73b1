package events

import (
	"context"
	"testing"
)

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), SubjectOrderCreated, OrderCreated{OrderID: "ORD-1"}); err != nil {
		t.Fatalf("Nop.Publish error: %v", err)
	}
	p.Close()
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	p := &NATSPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Publish(ctx, SubjectDownloadRecorded, DownloadRecorded{}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
	p.Close()
}
