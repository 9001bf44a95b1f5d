package openapi

import "fmt"

// envelope is the platform's uniform response wrapper.
type envelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// APIError is a non-zero business code returned by the platform.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openapi: code %d: %s", e.Code, e.Message)
}

// GameInfo identifies one app session on the platform.
type GameInfo struct {
	GameID string `mapstructure:"game_id"`
}

// WebsocketInfo carries everything needed to join the event stream:
// the opaque auth body the first frame must carry and the candidate
// wss endpoints.
type WebsocketInfo struct {
	AuthBody string   `mapstructure:"auth_body"`
	WssLink  []string `mapstructure:"wss_link"`
}

// AnchorInfo describes the streamer the session is attached to.
type AnchorInfo struct {
	RoomID int64  `mapstructure:"room_id"`
	UID    int64  `mapstructure:"uid"`
	OpenID string `mapstructure:"open_id"`
	Uname  string `mapstructure:"uname"`
	Uface  string `mapstructure:"uface"`
}

// StartResponse is the payload of /v2/app/start.
type StartResponse struct {
	GameInfo      GameInfo      `mapstructure:"game_info"`
	WebsocketInfo WebsocketInfo `mapstructure:"websocket_info"`
	AnchorInfo    AnchorInfo    `mapstructure:"anchor_info"`
}

// BatchHeartbeatResponse is the payload of /v2/app/batchHeartbeat.
type BatchHeartbeatResponse struct {
	FailedGameIDs []string `mapstructure:"failed_game_ids"`
}
