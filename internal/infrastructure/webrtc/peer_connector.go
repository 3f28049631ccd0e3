package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// WebRTCConfig WebRTC configuration
type WebRTCConfig struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
}

// peerSession is the server side of one call session's peer connection.
type peerSession struct {
	SessionID domain.SessionID
	PC        *webrtc.PeerConnection
	Sender    *webrtc.RTPSender
	Sink      *SinkTrack
	CreatedAt time.Time
}

// PeerConnector publishes a session's video sink to a remote peer.
type PeerConnector struct {
	config WebRTCConfig
	api    *webrtc.API

	mu    sync.RWMutex
	peers map[domain.SessionID]*peerSession

	logger *zap.SugaredLogger
}

func NewPeerConnector(config WebRTCConfig, logger *zap.SugaredLogger) *PeerConnector {
	settingEngine := webrtc.SettingEngine{}
	if config.PortRange.Min > 0 && config.PortRange.Max > 0 {
		settingEngine.SetEphemeralUDPPortRange(config.PortRange.Min, config.PortRange.Max)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &PeerConnector{
		config: config,
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		peers:  make(map[domain.SessionID]*peerSession),
		logger: logger,
	}
}

// Connect creates a peer connection carrying sink and returns its local
// offer. A session that is already connected is replaced.
func (c *PeerConnector) Connect(ctx context.Context, sessionID domain.SessionID, sink ports.VideoSink) (webrtc.SessionDescription, ports.MediaStream, error) {
	track, ok := sink.(*SinkTrack)
	if !ok {
		return webrtc.SessionDescription{}, nil, fmt.Errorf("sink %s is not an RTP track", sink.ID())
	}

	pc, err := c.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   c.config.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	})
	if err != nil {
		return webrtc.SessionDescription{}, nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	sender, err := pc.AddTrack(track.Track())
	if err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, nil, fmt.Errorf("failed to add sink track: %w", err)
	}

	peer := &peerSession{
		SessionID: sessionID,
		PC:        pc,
		Sender:    sender,
		Sink:      track,
		CreatedAt: time.Now(),
	}

	pc.OnICEConnectionStateChange(c.handleICEConnectionState(sessionID))
	pc.OnConnectionStateChange(c.handleConnectionState(peer))
	go c.processRTCP(peer)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, nil, fmt.Errorf("failed to set local description: %w", err)
	}

	c.mu.Lock()
	previous := c.peers[sessionID]
	c.peers[sessionID] = peer
	c.mu.Unlock()

	if previous != nil {
		previous.PC.Close()
	}

	c.logger.Infow("peer offer created",
		"session_id", sessionID,
		"sink_id", track.ID(),
	)
	return offer, newSenderStream(sessionID, sender), nil
}

// Accept applies the remote answer to the session's peer connection.
func (c *PeerConnector) Accept(ctx context.Context, sessionID domain.SessionID, answer webrtc.SessionDescription) error {
	c.mu.RLock()
	peer, exists := c.peers[sessionID]
	c.mu.RUnlock()

	if !exists {
		return domain.ErrPeerNotFound
	}
	if err := peer.PC.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

func (c *PeerConnector) Disconnect(ctx context.Context, sessionID domain.SessionID) error {
	c.mu.Lock()
	peer, exists := c.peers[sessionID]
	delete(c.peers, sessionID)
	c.mu.Unlock()

	if !exists {
		return domain.ErrPeerNotFound
	}
	return peer.PC.Close()
}

// Connected reports how many sessions currently hold a peer connection.
func (c *PeerConnector) Connected() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peers)
}

func (c *PeerConnector) handleICEConnectionState(sessionID domain.SessionID) func(webrtc.ICEConnectionState) {
	return func(state webrtc.ICEConnectionState) {
		c.logger.Infow("peer ICE connection state changed",
			"session_id", sessionID,
			"ice_state", state,
		)
	}
}

func (c *PeerConnector) handleConnectionState(peer *peerSession) func(webrtc.PeerConnectionState) {
	return func(state webrtc.PeerConnectionState) {
		c.logger.Infow("peer connection state changed",
			"session_id", peer.SessionID,
			"connection_state", state,
		)

		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			c.mu.Lock()
			if current, ok := c.peers[peer.SessionID]; ok && current == peer {
				delete(c.peers, peer.SessionID)
			}
			c.mu.Unlock()
		}
	}
}

// processRTCP drains the sender's RTCP and turns keyframe requests into
// sink requests. It returns when the sender is stopped.
func (c *PeerConnector) processRTCP(peer *peerSession) {
	for {
		packets, _, err := peer.Sender.ReadRTCP()
		if err != nil {
			c.logger.Debugw("RTCP reader stopped",
				"session_id", peer.SessionID,
				"error", err,
			)
			return
		}
		c.processRTCPPackets(peer, packets)
	}
}

func (c *PeerConnector) processRTCPPackets(peer *peerSession, packets []rtcp.Packet) {
	for _, packet := range packets {
		switch p := packet.(type) {
		case *rtcp.PictureLossIndication:
			c.logger.Debugw("received PLI", "session_id", peer.SessionID, "media_ssrc", p.MediaSSRC)
			peer.Sink.RequestKeyframe()

		case *rtcp.FullIntraRequest:
			c.logger.Debugw("received FIR", "session_id", peer.SessionID, "media_ssrc", p.MediaSSRC)
			peer.Sink.RequestKeyframe()

		case *rtcp.ReceiverReport:
			for _, report := range p.Reports {
				c.logger.Debugw("received receiver report",
					"session_id", peer.SessionID,
					"fraction_lost", report.FractionLost,
					"jitter", report.Jitter,
				)
			}
		}
	}
}
