package service

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
	"github.com/isqad/livelook-bridge/internal/media"
	"github.com/isqad/livelook-bridge/internal/rtc"
	"github.com/isqad/livelook-bridge/internal/telemetry"
)

type SessionsManagerParams struct {
	Config    *config.Config
	Publisher eventbus.Publisher
	Source    media.Source
	Forwarder *rtc.TrackForwarder
	Sessions  core.SessionsDBStorer
}

type bridgedSession struct {
	record  *core.Session
	client  *eventbus.ClientSession
	control *rtc.SessionControl
}

// SessionsManager keeps one bridged session per signaling client
type SessionsManager struct {
	cfg       *config.Config
	rtcConfig *config.WebRTCConfig
	publisher eventbus.Publisher
	source    media.Source
	forwarder *rtc.TrackForwarder
	repo      core.SessionsDBStorer

	lock     sync.RWMutex
	sessions map[core.UserSessionID]*bridgedSession
}

func NewSessionsManager(params SessionsManagerParams) (*SessionsManager, error) {
	rtcConf, err := config.NewWebRTCConfig(params.Config)
	if err != nil {
		return nil, err
	}

	s := &SessionsManager{
		cfg:       params.Config,
		rtcConfig: rtcConf,
		publisher: params.Publisher,
		source:    params.Source,
		forwarder: params.Forwarder,
		repo:      params.Sessions,
		sessions:  make(map[core.UserSessionID]*bridgedSession),
	}

	return s, nil
}

// Bind routes client messages to the manager
func (s *SessionsManager) Bind(router *eventbus.Router) {
	router.OnJoin(s.StartSession)
	router.OnOffer(s.Offer)
	router.OnAddICECandidate(s.AddICECandidate)
	router.OnSetPlayback(s.SetPlayback)
	router.OnCloseSession(s.CloseSession)
}

// StartSession bridges the source to the client. A client joining again
// gets a new session, the previous one is ended.
func (s *SessionsManager) StartSession(userID core.UserSessionID, options *core.SignalingOptions) error {
	logger := log.With().Str("service", "sessions").Str("userID", string(userID)).Logger()
	logger.Info().Msg("received message to start session")

	if previous := s.find(userID); previous != nil {
		logger.Info().Str("session_id", previous.record.ID).Msg("replace session")
		previous.control.EndSession()
	}

	record := core.NewSession(userID, rtc.AnalyzeOptions(options))
	record.Options = options
	if err := s.repo.Save(record); err != nil {
		logger.Error().Err(err).Msg("can't save session")
	}

	client := eventbus.NewClientSession(userID, options, s.publisher)
	control, err := rtc.CreatePeerConnectionSink(context.Background(), rtc.SinkParams{
		SessionID: record.ID,
		Client:    client,
		Source:    s.source,
		Forwarder: s.forwarder,
		Transport: rtc.TransportParams{
			EnabledCodecs: s.cfg.Peer.EnabledCodecs,
			Config:        s.rtcConfig,
		},
		ICEServers:    s.cfg.ICEServers(),
		OnStateChange: s.stateChanged(record.ID),
		OnReport:      s.reported(record.ID),
	})
	if err != nil {
		s.finish(record.ID)
		return err
	}

	session := &bridgedSession{
		record:  record,
		client:  client,
		control: control,
	}

	s.lock.Lock()
	s.sessions[userID] = session
	s.lock.Unlock()

	telemetry.SessionStarted()
	go s.watch(userID, session)

	return nil
}

func (s *SessionsManager) Offer(userID core.UserSessionID, offer webrtc.SessionDescription) error {
	session := s.find(userID)
	if session == nil {
		return core.ErrSessionNotFound
	}
	return session.client.DeliverOffer(offer)
}

func (s *SessionsManager) AddICECandidate(userID core.UserSessionID, candidate webrtc.ICECandidateInit) error {
	session := s.find(userID)
	if session == nil {
		return core.ErrSessionNotFound
	}
	session.client.DeliverCandidate(candidate)
	return nil
}

func (s *SessionsManager) SetPlayback(userID core.UserSessionID, playback rpc.PlaybackParams) error {
	session := s.find(userID)
	if session == nil {
		return core.ErrSessionNotFound
	}
	return session.control.SetPlayback(context.Background(), rtc.Playback{
		Audio: playback.Audio,
		Video: playback.Video,
	})
}

func (s *SessionsManager) CloseSession(userID core.UserSessionID) error {
	session := s.find(userID)
	if session == nil {
		return core.ErrSessionNotFound
	}
	session.control.EndSession()
	return nil
}

// Shutdown ends every session and waits until they are torn down
func (s *SessionsManager) Shutdown() {
	s.lock.RLock()
	sessions := make([]*bridgedSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.lock.RUnlock()

	for _, session := range sessions {
		session.control.EndSession()
		<-session.control.Done()
	}
}

func (s *SessionsManager) Count() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.sessions)
}

func (s *SessionsManager) find(userID core.UserSessionID) *bridgedSession {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.sessions[userID]
}

func (s *SessionsManager) watch(userID core.UserSessionID, session *bridgedSession) {
	<-session.control.Done()

	s.lock.Lock()
	if s.sessions[userID] == session {
		delete(s.sessions, userID)
	}
	s.lock.Unlock()

	telemetry.SessionStopped()
	s.finish(session.record.ID)

	if err := session.client.End(session.record.ID); err != nil {
		log.Warn().Err(err).Str("service", "sessions").Str("userID", string(userID)).Msg("can't notify the client")
	}
	log.Info().Str("service", "sessions").Str("userID", string(userID)).Str("session_id", session.record.ID).Msg("session ended")
}

func (s *SessionsManager) finish(id string) {
	if err := s.repo.Finish(id); err != nil {
		log.Error().Err(err).Str("service", "sessions").Str("session_id", id).Msg("can't finish session")
	}
}

func (s *SessionsManager) stateChanged(id string) func(core.SessionState) {
	return func(state core.SessionState) {
		// closed is written by finish
		if state.IsTerminal() {
			return
		}
		if err := s.repo.UpdateState(id, state); err != nil {
			log.Error().Err(err).Str("service", "sessions").Str("session_id", id).Msg("can't update session state")
		}
	}
}

func (s *SessionsManager) reported(id string) func(rtc.ForwardReport) {
	return func(report rtc.ForwardReport) {
		if err := s.repo.RecordHints(id, report.Destination, report.Tool); err != nil {
			log.Error().Err(err).Str("service", "sessions").Str("session_id", id).Msg("can't record hints")
		}
		if report.Decision.Fallback == core.FallbackNone {
			return
		}
		if err := s.repo.RecordFallback(id, report.Decision.Fallback); err != nil {
			log.Error().Err(err).Str("service", "sessions").Str("session_id", id).Msg("can't record fallback")
		}
	}
}
