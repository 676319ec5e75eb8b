package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/isqad/melody"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
)

const (
	cookieSessionName        = "livelook"
	cookieClientIDKey        = "client_id"
	wsUserSessionKey         = "user"
	wsSubscriptionSessionKey = "subscription"
)

var (
	errNoUser         = errors.New("no user in websocket session")
	errNoSubscription = errors.New("no subscription in websocket session")
)

// clientID returns the id kept in the cookie session, a new client gets one
func clientID(store sessions.Store, w http.ResponseWriter, r *http.Request) (core.UserSessionID, error) {
	session, err := store.Get(r, cookieSessionName)
	if err != nil {
		// the cookie can't be decoded, start over with a new one
		log.Warn().Err(err).Str("service", "ws").Msg("broken cookie session")
	}

	if id, ok := session.Values[cookieClientIDKey].(string); ok && id != "" {
		return core.UserSessionID(id), nil
	}

	id := uuid.NewString()
	session.Values[cookieClientIDKey] = id
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return core.UserSessionID(id), nil
}

func WsHandler(websocket *melody.Melody, store sessions.Store, subscriber eventbus.Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := clientID(store, w, r)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("can't identify the client")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		subscription, err := subscriber.SubscribeClient(userID)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("can't subscribe the user to signaling channel")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		keys := map[string]interface{}{
			wsUserSessionKey:         userID,
			wsSubscriptionSessionKey: subscription,
		}

		if err := websocket.HandleRequestWithKeys(w, r, keys); err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("can't handle request")
			subscription.Close()
		}
	}
}

// ConnectHandler relays messages for the client from the bus to the socket
func ConnectHandler() func(session *melody.Session) {
	return func(session *melody.Session) {
		userID, subscription, err := fromSession(session)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("extract session keys")
			session.Close()
			return
		}
		log.Info().Str("service", "ws").Str("userID", string(userID)).Msg("client connected")

		go func() {
			for msg := range subscription.Channel() {
				if err := session.Write([]byte(msg.Payload)); err != nil {
					// there's only session closed error can be
					log.Debug().Err(err).Str("service", "ws").Str("userID", string(userID)).Msg("stop relay")
					return
				}
			}
		}()
	}
}

// DisconnectHandler ends the bridged session of the client
func DisconnectHandler(publisher eventbus.Publisher) func(session *melody.Session) {
	return func(session *melody.Session) {
		userID, subscription, err := fromSession(session)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("extract session keys")
			return
		}
		log.Info().Str("service", "ws").Str("userID", string(userID)).Msg("client disconnected")

		if err := subscription.Close(); err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("close subscription")
		}

		message, err := rpc.NewCloseSessionRpc().ToJSON()
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("close session rpc")
			return
		}
		if err := publisher.PublishServer(eventbus.ServerMessage{UserID: userID, Message: message}); err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("publish rpc")
		}
	}
}

// HandleMessage relays client messages to the bridge
func HandleMessage(publisher eventbus.Publisher) func(s *melody.Session, msg []byte) {
	return func(s *melody.Session, msg []byte) {
		userID, _, err := fromSession(s)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("extract session keys")
			s.Close()
			return
		}
		if !json.Valid(msg) {
			log.Warn().Str("service", "ws").Str("userID", string(userID)).Msg("drop malformed message")
			return
		}

		if err := publisher.PublishServer(eventbus.ServerMessage{UserID: userID, Message: msg}); err != nil {
			log.Error().Err(err).Str("service", "ws").Str("userID", string(userID)).Msg("publish rpc")
			s.Close()
		}
	}
}

func fromSession(s *melody.Session) (core.UserSessionID, eventbus.RedisBus, error) {
	userID, ok := s.Keys[wsUserSessionKey].(core.UserSessionID)
	if !ok {
		return "", nil, errNoUser
	}
	subscription, ok := s.Keys[wsSubscriptionSessionKey].(eventbus.RedisBus)
	if !ok {
		return "", nil, errNoSubscription
	}
	return userID, subscription, nil
}
