package webd

import (
	"encoding/json"
	"log"
	"log/slog"

	"github.com/halocircle/guardd/events"
	"github.com/olahol/melody"
)

type websocketAction string

var websocketActionPublish websocketAction = "publish"

type broadcast struct {
	Action  websocketAction `json:"action"`
	User    string          `json:"user"`
	Feature json.RawMessage `json:"feature"`
}

// initMelody sets up the websocket handler.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// New clients get the warm current-location records up front, then
	// live publishes as they happen.
	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		log.Println("[websocket] connected", sess.Request.RemoteAddr)
		for user, f := range s.store.CachedLastKnown() {
			raw, err := json.Marshal(f)
			if err != nil {
				continue
			}
			b, _ := json.Marshal(broadcast{
				Action:  websocketActionPublish,
				User:    user.String(),
				Feature: raw,
			})
			sess.Write(b)
		}
	})

	// Don't care about incoming messages from clients. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		log.Println("[websocket] message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		log.Println("[websocket] disconnected", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		log.Println("[websocket] error", e, sess.Request.RemoteAddr)
	})

	// Broadcast published samples, as published, to all connected clients.
	// This is the post-inference record, the same one the store keeps.
	published := make(chan events.SamplePublished)
	sub := events.SamplePublishedFeed.Subscribe(published)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case e := <-published:
				raw, err := json.Marshal(e.Sample.Feature(e.User))
				if err != nil {
					slog.Error("Failed to marshal publish event", "error", err)
					continue
				}
				b, err := json.Marshal(broadcast{
					Action:  websocketActionPublish,
					User:    e.User.String(),
					Feature: raw,
				})
				if err != nil {
					slog.Error("Failed to marshal broadcast", "error", err)
					continue
				}
				if err := s.melodyInstance.Broadcast(b); err != nil {
					slog.Warn("Failed to broadcast publish event", "error", err)
				}
			case err := <-sub.Err():
				slog.Error("Sample feed subscription ended", "error", err)
				return
			}
		}
	}()
}
