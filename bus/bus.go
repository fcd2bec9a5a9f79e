package bus

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// common bus package

type Message struct {
	ID    int
	Topic string
	Type  string
	Data  interface{}
}

type Bus struct {
	Subscribers map[string][]chan *Message //topic -> subscribers
	M           sync.Mutex
	In          chan *Message
	NextID      int
	start       sync.Once
}

var cb *Bus = &Bus{
	Subscribers: make(map[string][]chan *Message),
	In:          make(chan *Message, 1000),
	NextID:      0,
}

// Init starts the dispatcher. Send starts it on first use as well, so
// calling Init is optional.
func Init() {
	cb.start.Do(func() { go ProcessMessages() })
}

func ProcessMessages() {
	for msg := range cb.In {
		cb.M.Lock()
		subs, ok := cb.Subscribers[msg.Topic]
		if ok {
			for _, subscriber := range subs {
				select {
				case subscriber <- msg:
				default:
					log.Warn().Msgf("bus: subscriber of %s is full, dropping %04d:%s", msg.Topic, msg.ID, msg.Type)
				}
			}
		}
		cb.M.Unlock()
	}
}

func Subscribe(topic ...string) chan *Message {
	log.Trace().Msgf("bus.Subscribing to %v", topic)

	cb.M.Lock()
	defer cb.M.Unlock()

	ch := make(chan *Message, 1000)

	added := make(map[string]bool)

	for _, t := range topic {

		if _, ok := added[t]; ok { // prevent duplicate subscriptions
			continue
		}
		added[t] = true

		subs, ok := cb.Subscribers[t]
		if !ok {
			subs = make([]chan *Message, 0)
		}

		subs = append(subs, ch)
		cb.Subscribers[t] = subs
	}

	return ch
}

func Unsubscribe(ch chan *Message) {
	log.Trace().Msg("bus.Unsubscribing")

	cb.M.Lock()
	defer cb.M.Unlock()

	for t, subs := range cb.Subscribers {
		for i, subscriber := range subs {
			if subscriber == ch {
				subs = append(subs[:i], subs[i+1:]...)
				cb.Subscribers[t] = subs
				break
			}
		}
	}

	close(ch)
}

// Send queues a message for every subscriber of topic. A subscriber whose
// buffer is full misses the message.
func Send(topic, t string, data interface{}) int {
	Init()

	cb.M.Lock()
	cb.NextID++
	msg := &Message{
		ID:    cb.NextID,
		Topic: topic,
		Type:  t,
		Data:  data,
	}
	cb.M.Unlock()

	log.Trace().Msgf("   %04d->%s: %s", msg.ID, topic, t)

	cb.In <- msg
	return msg.ID
}
