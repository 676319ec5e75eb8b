package rpc

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// CreateOfferParams is what the client's offer has to contain
type CreateOfferParams struct {
	Audio      string             `json:"audio"`
	Video      string             `json:"video"`
	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`
}

type CreateOfferRpc struct {
	jsonRpcHead
	Params CreateOfferParams `json:"params"`
}

func NewCreateOfferRpc(audio, video webrtc.RTPTransceiverDirection, iceServers []webrtc.ICEServer) *CreateOfferRpc {
	return &CreateOfferRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  CreateOfferMethod,
		},
		Params: CreateOfferParams{
			Audio:      audio.String(),
			Video:      video.String(),
			ICEServers: iceServers,
		},
	}
}

func (r CreateOfferRpc) GetMethod() Method {
	return r.Method
}

func (r CreateOfferRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
