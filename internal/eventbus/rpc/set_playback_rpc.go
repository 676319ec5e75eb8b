package rpc

import "encoding/json"

type PlaybackParams struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

type SetPlaybackRpc struct {
	jsonRpcHead
	Params PlaybackParams `json:"params"`
}

func NewSetPlaybackRpc(params PlaybackParams) *SetPlaybackRpc {
	return &SetPlaybackRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  SetPlaybackMethod,
		},
		Params: params,
	}
}

func (r SetPlaybackRpc) GetMethod() Method {
	return r.Method
}

func (r SetPlaybackRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
