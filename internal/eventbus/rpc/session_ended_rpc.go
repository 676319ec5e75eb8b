package rpc

import "encoding/json"

type SessionEndedParams struct {
	SessionID string `json:"session_id"`
}

// SessionEndedRpc tells the client the bridge has torn its session down
type SessionEndedRpc struct {
	jsonRpcHead
	Params SessionEndedParams `json:"params"`
}

func NewSessionEndedRpc(sessionID string) *SessionEndedRpc {
	return &SessionEndedRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  SessionEndedMethod,
		},
		Params: SessionEndedParams{SessionID: sessionID},
	}
}

func (r SessionEndedRpc) GetMethod() Method {
	return r.Method
}

func (r SessionEndedRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
