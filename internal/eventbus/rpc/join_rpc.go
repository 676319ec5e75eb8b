package rpc

import (
	"encoding/json"

	"github.com/isqad/livelook-bridge/internal/core"
)

// JoinRpc opens a session, the client tells about itself in params
type JoinRpc struct {
	jsonRpcHead
	Params *core.SignalingOptions `json:"params"`
}

func NewJoinRpc(options *core.SignalingOptions) *JoinRpc {
	return &JoinRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  JoinMethod,
		},
		Params: options,
	}
}

func (r JoinRpc) GetMethod() Method {
	return r.Method
}

func (r JoinRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
