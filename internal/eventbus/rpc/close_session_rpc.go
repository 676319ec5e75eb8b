package rpc

import "encoding/json"

// CloseSessionRpc is published by the websocket gateway when a client
// goes away, the bridge tears the client's session down on it
type CloseSessionRpc struct {
	jsonRpcHead
	Params interface{} `json:"params"`
}

func NewCloseSessionRpc() *CloseSessionRpc {
	return &CloseSessionRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  CloseSessionMethod,
		},
		Params: nil,
	}
}

func (r CloseSessionRpc) GetMethod() Method {
	return r.Method
}

func (r CloseSessionRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
