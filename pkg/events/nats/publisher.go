// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package nats contains the NATS JetStream implementation of the event
// publisher.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	broker "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/voxlink/warden/pkg/events"
)

// A maximum number of reconnect attempts before NATS connection closes
// permanently. Value -1 represents an unlimited number of reconnect
// retries, i.e. the client will never give up on retrying to
// re-establish connection to NATS server.
const maxReconnects = -1

const eventsPrefix = "events"

var jsStreamConfig = jetstream.StreamConfig{
	Name:              "events",
	Description:       "Warden stream for session lifecycle events",
	Subjects:          []string{"events.>"},
	Retention:         jetstream.LimitsPolicy,
	MaxMsgsPerSubject: 1e9,
	MaxAge:            time.Hour * 24,
	MaxMsgSize:        1024 * 1024,
	Discard:           jetstream.DiscardOld,
	Storage:           jetstream.FileStorage,
}

var _ events.Publisher = (*pubEventStore)(nil)

type pubEventStore struct {
	conn   *broker.Conn
	js     jetstream.JetStream
	stream string
}

// NewPublisher returns a JetStream-backed event publisher. Events are
// published to events.<stream> with the event name as a subtopic when
// the encoded payload carries one.
func NewPublisher(ctx context.Context, url, stream string) (events.Publisher, error) {
	conn, err := broker.Connect(url, broker.MaxReconnects(maxReconnects))
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, err
	}
	if _, err := js.CreateStream(ctx, jsStreamConfig); err != nil {
		return nil, err
	}

	return &pubEventStore{
		conn:   conn,
		js:     js,
		stream: stream,
	}, nil
}

func (es *pubEventStore) Publish(ctx context.Context, event events.Event) error {
	values, err := event.Encode()
	if err != nil {
		return err
	}
	values["occurred_at"] = time.Now().UnixNano()

	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.%s", eventsPrefix, es.stream)
	if name, ok := values["name"].(string); ok && name != "" {
		subject = fmt.Sprintf("%s.%s", subject, name)
	}

	_, err = es.js.Publish(ctx, subject, data)

	return err
}

func (es *pubEventStore) Close() error {
	es.conn.Close()
	return nil
}
