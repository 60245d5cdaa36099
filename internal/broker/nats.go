// Package broker fans new-message events out across server instances over
// NATS, so a client connected to one instance sees messages written through
// another.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/service"
)

const subjectPrefix = "rooms"

// Subject returns the NATS subject carrying a room's new messages.
func Subject(roomID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.messages", subjectPrefix, roomID)
}

// Connect dials the NATS server at url.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("onionparts"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher implements service.Notifier by publishing to NATS.
type Publisher struct {
	nc *nats.Conn
}

func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) NotifyNewMessage(msg *domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broker: marshal error: %v", err)
		return
	}
	if err := p.nc.Publish(Subject(msg.RoomID), data); err != nil {
		log.Printf("ERROR broker publish to %s: %v", Subject(msg.RoomID), err)
	}
}

// Relay delivers every message published on any room subject to a local
// notifier, normally the websocket hub.
type Relay struct {
	nc    *nats.Conn
	local service.Notifier
}

func NewRelay(nc *nats.Conn, local service.Notifier) *Relay {
	return &Relay{nc: nc, local: local}
}

// Run subscribes and blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.nc.Subscribe(subjectPrefix+".*.messages", func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Printf("broker: dropping malformed message on %s: %v", m.Subject, err)
			return
		}
		r.local.NotifyNewMessage(&msg)
	})
	if err != nil {
		return fmt.Errorf("subscribing to room messages: %w", err)
	}
	log.Printf("broker: relaying %s", sub.Subject)

	<-ctx.Done()
	return sub.Unsubscribe()
}
