package chatws

import (
	"sync"
	"testing"
	"time"

	"github.com/cesar731/portfolio-cars-project-sub000/internal/models"
)

func TestRegisterSupersedesPriorConnection(t *testing.T) {
	registry := NewRegistry()

	first := NewClient(registry, nil, 7)
	if prior := registry.Register(7, first); prior != nil {
		t.Fatalf("expected no prior connection, got %v", prior)
	}

	second := NewClient(registry, nil, 7)
	prior := registry.Register(7, second)
	if prior != first {
		t.Fatalf("expected first connection returned as prior")
	}
	prior.Shutdown()

	current, ok := registry.Lookup(7)
	if !ok || current != second {
		t.Fatalf("expected lookup to return the superseding connection")
	}
	if first.enqueue([]byte("late")) {
		t.Fatalf("expected superseded connection to reject writes")
	}
	if !second.enqueue([]byte("fresh")) {
		t.Fatalf("expected new connection to accept writes")
	}
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	registry := NewRegistry()

	stale := NewClient(registry, nil, 7)
	registry.Register(7, stale)
	fresh := NewClient(registry, nil, 7)
	registry.Register(7, fresh)

	// A close racing the reconnect must not evict the newer connection.
	registry.Unregister(7, stale)
	if current, ok := registry.Lookup(7); !ok || current != fresh {
		t.Fatalf("expected fresh connection to survive stale unregister")
	}

	registry.Unregister(7, fresh)
	if _, ok := registry.Lookup(7); ok {
		t.Fatalf("expected matching unregister to remove the connection")
	}
}

func TestDeliverToOfflineUserIsANoOp(t *testing.T) {
	registry := NewRegistry()
	registry.Deliver(42, &models.ChatMessage{ID: 1, ConsultationID: 1, SenderID: 7, ReceiverID: 42, Content: "hi", CreatedAt: time.Now()})
}

func TestDeliverEnqueuesMessageFrame(t *testing.T) {
	registry := NewRegistry()
	client := NewClient(registry, nil, 9)
	registry.Register(9, client)

	registry.Deliver(9, &models.ChatMessage{ID: 5, ConsultationID: 1, SenderID: 7, ReceiverID: 9, Content: "hola", CreatedAt: time.Now()})

	select {
	case payload := <-client.send:
		if len(payload) == 0 {
			t.Fatalf("expected encoded frame")
		}
	default:
		t.Fatalf("expected one payload in the send queue")
	}
}

func TestDeliverDropsSlowConsumers(t *testing.T) {
	registry := NewRegistry()
	client := NewClient(registry, nil, 9)
	registry.Register(9, client)

	message := &models.ChatMessage{ID: 1, ConsultationID: 1, SenderID: 7, ReceiverID: 9, Content: "x", CreatedAt: time.Now()}
	for i := 0; i < sendQueueSize+1; i++ {
		registry.Deliver(9, message)
	}

	if _, ok := registry.Lookup(9); ok {
		t.Fatalf("expected slow consumer to be unregistered")
	}
	if client.enqueue([]byte("more")) {
		t.Fatalf("expected dropped client to be shut down")
	}
}

func TestRegistryIsSafeUnderConcurrentUse(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for userID := int64(1); userID <= 8; userID++ {
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()
				client := NewClient(registry, nil, userID)
				if prior := registry.Register(userID, client); prior != nil {
					prior.Shutdown()
				}
				registry.Lookup(userID)
				registry.Unregister(userID, client)
			}(userID)
		}
	}
	wg.Wait()

	// Every goroutine unregistered its own client; at most the last-written
	// entries may remain, and none may panic or deadlock getting here.
	for userID := int64(1); userID <= 8; userID++ {
		if client, ok := registry.Lookup(userID); ok && client == nil {
			t.Fatalf("expected no nil client left behind for user %d", userID)
		}
	}
}
