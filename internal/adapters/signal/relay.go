package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkaras/huddle/internal/domain"
)

// The relay handlers never look inside the signal payload; it is an
// opaque offer/answer/candidate blob between the two peers.

func (ctl *SignalWSController) handleRelaySignal(
	connID domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type relayPayload struct {
		Type   string          `json:"type"`
		Target string          `json:"targetConnectionId"`
		Signal json.RawMessage `json:"signal"`
	}
	var p relayPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad relay payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	if err := ctl.Coord.RelaySignal(connID, domain.ConnectionID(p.Target), p.Signal); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("relay rejected")
	}
}

func (ctl *SignalWSController) handleInitConnection(
	connID domain.ConnectionID,
	conn *WsSignalConn,
	data []byte,
) {
	type initPayload struct {
		Type   string `json:"type"`
		Target string `json:"targetConnectionId"`
	}
	var p initPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad init payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	if err := ctl.Coord.InitConnection(connID, domain.ConnectionID(p.Target)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("init rejected")
	}
}
