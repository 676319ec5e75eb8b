package rpc

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/pion/webrtc/v3"

	"github.com/isqad/livelook-bridge/internal/core"
)

const jsonRpcVersion = "2.0"

type Method string

const (
	JoinMethod         Method = "join"
	CreateOfferMethod  Method = "create_offer"
	SDPOfferMethod     Method = "offer"
	SDPAnswerMethod    Method = "answer"
	ICECandidateMethod Method = "iceCandidate"
	SetPlaybackMethod  Method = "set_playback"
	CloseSessionMethod Method = "close_session"
	SessionEndedMethod Method = "session_ended"
)

var (
	ErrUnknownRpcType = errors.New("unknown RPC type")
	ErrMalformedRpc   = errors.New("malformed RPC")
)

type Rpc interface {
	GetMethod() Method
	ToJSON() ([]byte, error)
}

type jsonRpcHead struct {
	Version string `json:"jsonrpc"`
	Method  Method `json:"method"`
}

type jsonRpc struct {
	jsonRpcHead
	Params json.RawMessage `json:"params"`
}

func (r jsonRpc) decodeParams(v interface{}) error {
	if len(r.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Params, v); err != nil {
		return ErrMalformedRpc
	}
	return nil
}

func RpcFromReader(reader io.Reader) (Rpc, error) {
	rpc := &jsonRpc{}

	err := json.NewDecoder(reader).Decode(rpc)
	if err != nil {
		return nil, err
	}
	if rpc.Version != jsonRpcVersion {
		return nil, ErrMalformedRpc
	}

	switch rpc.Method {
	case JoinMethod:
		options := &core.SignalingOptions{}
		if err := rpc.decodeParams(options); err != nil {
			return nil, err
		}

		return NewJoinRpc(options), nil
	case CreateOfferMethod:
		params := CreateOfferParams{}
		if err := rpc.decodeParams(&params); err != nil {
			return nil, err
		}

		return &CreateOfferRpc{jsonRpcHead: rpc.jsonRpcHead, Params: params}, nil
	case SDPOfferMethod, SDPAnswerMethod:
		sdp := webrtc.SessionDescription{}
		if err := rpc.decodeParams(&sdp); err != nil {
			return nil, err
		}
		if sdp.SDP == "" {
			return nil, ErrMalformedRpc
		}

		return &SDPRpc{jsonRpcHead: rpc.jsonRpcHead, Params: sdp}, nil
	case ICECandidateMethod:
		c := webrtc.ICECandidateInit{}
		if err := rpc.decodeParams(&c); err != nil {
			return nil, err
		}

		return NewICECandidateRpc(c), nil
	case SetPlaybackMethod:
		params := PlaybackParams{}
		if err := rpc.decodeParams(&params); err != nil {
			return nil, err
		}

		return NewSetPlaybackRpc(params), nil
	case CloseSessionMethod:
		return NewCloseSessionRpc(), nil
	case SessionEndedMethod:
		params := SessionEndedParams{}
		if err := rpc.decodeParams(&params); err != nil {
			return nil, err
		}

		return NewSessionEndedRpc(params.SessionID), nil
	default:
		return nil, ErrUnknownRpcType
	}
}
