package signal

import (
	"context"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.send(conn, core.Message{Type: core.TypePong})
}

func (ctl *SignalWSController) handleRegister(ctx context.Context, sid domain.PeerID, conn *WsSignalConn, m core.Message) {
	ident, err := ctl.Orch.Register(ctx, sid, m.Name, m.Role)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("name", m.Name).Msg("register refused")
		ctl.send(conn, core.Message{Type: core.TypeRegistered, Status: core.StatusError, Message: err.Error()})
		return
	}
	ctl.send(conn, core.Message{Type: core.TypeRegistered, Status: core.StatusOK, Identity: &ident})
	ctl.Orch.PushPeers(ctx)
}
