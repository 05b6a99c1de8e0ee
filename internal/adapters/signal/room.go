package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkaras/huddle/internal/domain"
)

func (ctl *SignalWSController) handleCreateRoom(
	connID domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type createPayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).Str("identity", p.Identity).Msg("create room")
	if err := ctl.Coord.CreateRoom(connID, p.Identity); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("create room rejected")
	}
}

func (ctl *SignalWSController) handleJoinRoom(
	connID domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type     string `json:"type"`
		Identity string `json:"identity"`
		RoomID   string `json:"roomId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).Str("room", p.RoomID).Msg("join room")
	if err := ctl.Coord.JoinRoom(connID, p.Identity, domain.RoomID(p.RoomID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Str("room", p.RoomID).Msg("join rejected")
	}
}

// handleLeave tears the whole connection down. Rejoining takes a fresh
// socket; a reconnect is always a brand-new participant.
func (ctl *SignalWSController) handleLeave(connID domain.ConnectionID) {
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("leave")
	ctl.Coord.Disconnect(connID)
}
