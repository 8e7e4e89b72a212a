package signal

import (
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleCall forwards one call protocol message to its addressee.
func (ctl *SignalWSController) handleCall(sid domain.PeerID, conn *WsSignalConn, m core.Message) {
	if m.To == "" {
		ctl.sendError(conn, "missing recipient")
		return
	}
	if m.Type == core.TypeInitiate && !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("initiate rate limited")
		ctl.sendError(conn, "too many calls, slow down")
		return
	}
	if err := ctl.Orch.Relay(sid, m); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", string(m.Type)).Str("to", string(m.To)).Msg("relay")
		ctl.sendError(conn, err.Error())
	}
}
