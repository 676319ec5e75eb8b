package rpc

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// ICECandidateRpc trickles a candidate between a client and its bridge
// session, in both directions, after the offer/answer exchange
type ICECandidateRpc struct {
	jsonRpcHead
	Params webrtc.ICECandidateInit `json:"params"`
}

func NewICECandidateRpc(candidate webrtc.ICECandidateInit) *ICECandidateRpc {
	return &ICECandidateRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  ICECandidateMethod,
		},
		Params: candidate,
	}
}

func (r ICECandidateRpc) GetMethod() Method {
	return r.Method
}

func (r ICECandidateRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
