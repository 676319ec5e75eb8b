package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isqad/livelook-bridge/internal/config"
	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/eventbus"
	"github.com/isqad/livelook-bridge/internal/eventbus/rpc"
	"github.com/isqad/livelook-bridge/internal/forwarder"
	"github.com/isqad/livelook-bridge/internal/media"
	"github.com/isqad/livelook-bridge/internal/rtc"
)

const testUser = core.UserSessionID("user-1")

type fakeStorer struct {
	lock     sync.Mutex
	saved    []*core.Session
	states   []core.SessionState
	finished []string
}

func (s *fakeStorer) Save(session *core.Session) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.saved = append(s.saved, session)
	return nil
}

func (s *fakeStorer) UpdateState(id string, state core.SessionState) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.states = append(s.states, state)
	return nil
}

func (s *fakeStorer) RecordHints(id string, destination core.DestinationHint, tool core.ToolHint) error {
	return nil
}

func (s *fakeStorer) RecordFallback(id string, reason core.FallbackReason) error {
	return nil
}

func (s *fakeStorer) Finish(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.finished = append(s.finished, id)
	return nil
}

func (s *fakeStorer) FindByID(id string) (*core.Session, error) {
	return nil, core.ErrSessionNotFound
}

func (s *fakeStorer) finishedIDs() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.finished...)
}

type fakePublisher struct {
	sent chan rpc.Rpc
}

func (p *fakePublisher) PublishClient(userID core.UserSessionID, r rpc.Rpc) error {
	p.sent <- r
	return nil
}

func (p *fakePublisher) PublishServer(msg eventbus.ServerMessage) error {
	return nil
}

// waitFor skips published messages until one with the method shows up
func (p *fakePublisher) waitFor(t *testing.T, method rpc.Method) rpc.Rpc {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case r := <-p.sent:
			if r.GetMethod() == method {
				return r
			}
		case <-timeout:
			t.Fatalf("%s not published", method)
			return nil
		}
	}
}

type nopStarter struct{}

func (nopStarter) Start(ctx context.Context, input *media.TranscoderInput, tracks forwarder.Tracks) (*forwarder.Handle, error) {
	return forwarder.NewHandle(nil), nil
}

func newTestManager(t *testing.T) (*SessionsManager, *fakeStorer, *fakePublisher) {
	t.Helper()

	conf := config.NewConfig()
	conf.Bridge.Source.URL = "rtsp://camera.local/stream"
	conf.Bridge.Source.VideoCodec = "h264"

	storer := &fakeStorer{}
	publisher := &fakePublisher{sent: make(chan rpc.Rpc, 64)}

	manager, err := NewSessionsManager(SessionsManagerParams{
		Config:    conf,
		Publisher: publisher,
		Source:    media.NewStaticSource(conf.Bridge.Source),
		Forwarder: rtc.NewTrackForwarder(rtc.TrackForwarderParams{
			Starter:         nopStarter{},
			VideoPacketSize: conf.Bridge.VideoPacketSize,
		}),
		Sessions: storer,
	})
	require.Nil(t, err)
	t.Cleanup(manager.Shutdown)

	return manager, storer, publisher
}

func TestStartSessionAsksForOffer(t *testing.T) {
	manager, storer, publisher := newTestManager(t)

	options := &core.SignalingOptions{Screen: &core.Screen{Width: 320}}
	require.Nil(t, manager.StartSession(testUser, options))
	assert.Equal(t, 1, manager.Count())

	created := publisher.waitFor(t, rpc.CreateOfferMethod).(*rpc.CreateOfferRpc)
	assert.Equal(t, "recvonly", created.Params.Audio)
	assert.Equal(t, "recvonly", created.Params.Video)
	assert.NotEmpty(t, created.Params.ICEServers)

	require.Len(t, storer.saved, 1)
	assert.Equal(t, 640, storer.saved[0].TranscodeWidth)
	assert.Equal(t, testUser, storer.saved[0].UserID)
}

func TestCloseSessionEndsIt(t *testing.T) {
	manager, storer, publisher := newTestManager(t)

	require.Nil(t, manager.StartSession(testUser, nil))
	publisher.waitFor(t, rpc.CreateOfferMethod)

	require.Nil(t, manager.CloseSession(testUser))

	ended := publisher.waitFor(t, rpc.SessionEndedMethod).(*rpc.SessionEndedRpc)
	assert.Equal(t, []string{ended.Params.SessionID}, storer.finishedIDs())
	assert.Eventually(t, func() bool { return manager.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRejoinReplacesSession(t *testing.T) {
	manager, storer, publisher := newTestManager(t)

	require.Nil(t, manager.StartSession(testUser, nil))
	first := manager.find(testUser)
	require.NotNil(t, first)

	require.Nil(t, manager.StartSession(testUser, nil))
	publisher.waitFor(t, rpc.SessionEndedMethod)

	second := manager.find(testUser)
	require.NotNil(t, second)
	assert.NotEqual(t, first.record.ID, second.record.ID)
	assert.Equal(t, []string{first.record.ID}, storer.finishedIDs())
}

func TestUnknownClient(t *testing.T) {
	manager, _, _ := newTestManager(t)

	assert.ErrorIs(t, manager.CloseSession(testUser), core.ErrSessionNotFound)
	assert.ErrorIs(t, manager.Offer(testUser, webrtc.SessionDescription{}), core.ErrSessionNotFound)
	assert.ErrorIs(t, manager.AddICECandidate(testUser, webrtc.ICECandidateInit{}), core.ErrSessionNotFound)
	assert.ErrorIs(t, manager.SetPlayback(testUser, rpc.PlaybackParams{Audio: true}), core.ErrSessionNotFound)
}

func TestSetPlaybackWithoutIntercom(t *testing.T) {
	manager, _, _ := newTestManager(t)

	require.Nil(t, manager.StartSession(testUser, nil))
	assert.Nil(t, manager.SetPlayback(testUser, rpc.PlaybackParams{Audio: true, Video: true}))
	assert.Equal(t, rtc.Playback{Audio: true, Video: true}, manager.find(testUser).control.Playback())
}
