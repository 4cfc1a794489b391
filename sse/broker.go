/*
The MIT License (MIT)

Copyright (c) 2017-2021 Ismael Celis and contributors

Permission is hereby granted, free of charge, to any person obtaining a copy of
this software and associated documentation files (the "Software"), to deal in
the Software without restriction, including without limitation the rights to
use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
the Software, and to permit persons to whom the Software is furnished to do so,
subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package sse

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"github.com/courtside/livevote/logging"
	"github.com/courtside/livevote/voting"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	queueSize  = 256
	clientSize = 32
)

type (
	NotificationEvent struct {
		Topic     string
		EventName string
		Payload   interface{}
	}

	NotifierChan chan NotificationEvent

	client struct {
		topic  string
		events NotifierChan
	}

	Broker struct {

		// Events are pushed to this channel by the main events-gathering routine
		Notifier NotifierChan

		// New client connections
		newClients chan *client

		// Closed client connections
		closingClients chan *client

		// Client connections registry, owned by Listen
		clients map[*client]struct{}

		registered atomic.Int32
		dropped    atomic.Int64
		done       chan struct{}
		log        *logrus.Logger
	}

	// PublicEvent is what subscribers see of a voting event: tallies and
	// transitions, never who voted for whom.
	PublicEvent struct {
		Type       voting.EventType `json:"type"`
		PollID     string           `json:"pollId"`
		MatchID    string           `json:"matchId"`
		TotalVotes int              `json:"totalVotes"`
		Trigger    voting.Trigger   `json:"trigger,omitempty"`
		At         time.Time        `json:"at"`
	}
)

var _ voting.Notifier = (*Broker)(nil)

func NewBroker(logger *logrus.Logger) (broker *Broker) {
	return &Broker{
		Notifier:       make(NotifierChan, queueSize),
		newClients:     make(chan *client),
		closingClients: make(chan *client),
		clients:        make(map[*client]struct{}),
		done:           make(chan struct{}),
		log:            logging.Resolve(logger),
	}
}

// ServeHTTP streams every event published on the :topic route parameter
// until the client goes away.
func (broker *Broker) ServeHTTP(c *gin.Context) {
	cl := &client{topic: c.Param("topic"), events: make(NotifierChan, clientSize)}
	select {
	case broker.newClients <- cl:
	case <-broker.done:
		c.AbortWithStatus(503)
		return
	}

	defer func() {
		select {
		case broker.closingClients <- cl:
		case <-broker.done:
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(200)
	c.Writer.Flush()

	gone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-gone:
			return false
		case <-broker.done:
			return false
		case event := <-cl.events:
			c.SSEvent(event.EventName, event.Payload)
			return true
		}
	})
}

// Publish queues an event for every client subscribed to topic. It never
// blocks: when the queue is full the event is dropped and counted.
func (broker *Broker) Publish(topic, name string, payload interface{}) {
	select {
	case broker.Notifier <- NotificationEvent{Topic: topic, EventName: name, Payload: payload}:
	default:
		broker.dropped.Add(1)
		broker.log.WithFields(logging.Fields("sse")).WithField("topic", topic).Warn("broker queue full, dropping event")
	}
}

// Notify publishes the public view of a voting event on its match's topic.
// Rejections concern a single voter and are not published.
func (broker *Broker) Notify(event voting.Event) {
	if event.Type == voting.VoteRejected {
		return
	}

	bytes, err := json.Marshal(PublicEvent{
		Type:       event.Type,
		PollID:     event.PollID,
		MatchID:    event.MatchID,
		TotalVotes: event.TotalVotes,
		Trigger:    event.Trigger,
		At:         event.At,
	})
	if err != nil {
		broker.log.WithFields(logging.Fields("sse")).WithField("error", err).Error("error encoding event")
		return
	}
	broker.Publish(event.MatchID, string(event.Type), string(bytes))
}

// Clients reports how many streams are currently registered.
func (broker *Broker) Clients() int {
	return int(broker.registered.Load())
}

// Dropped reports how many events were discarded because the broker queue
// or a client's buffer was full.
func (broker *Broker) Dropped() int64 {
	return broker.dropped.Load()
}

// Listen for new notifications and redistribute them to clients until ctx is done
func (broker *Broker) Listen(ctx context.Context) {
	log := broker.log.WithFields(logging.Fields("sse"))
	defer close(broker.done)

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-broker.newClients:
			broker.clients[s] = struct{}{}
			broker.registered.Store(int32(len(broker.clients)))
			log.Debugf("Client added. %d registered clients", len(broker.clients))
		case s := <-broker.closingClients:
			delete(broker.clients, s)
			broker.registered.Store(int32(len(broker.clients)))
			log.Debugf("Removed client. %d registered clients", len(broker.clients))
		case event := <-broker.Notifier:
			for cl := range broker.clients {
				if cl.topic != event.Topic {
					continue
				}
				select {
				case cl.events <- event:
				default:
					broker.dropped.Add(1)
					log.WithField("topic", event.Topic).Warn("Skipping client.")
				}
			}
		}
	}
}
