package dispatch

import (
	"fmt"

	"github.com/dl9xyz/dmrgateway/pkg/config"
	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/peer"
	"github.com/dl9xyz/dmrgateway/pkg/rewrite"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
	"github.com/dl9xyz/dmrgateway/pkg/voice"
	"github.com/dl9xyz/dmrgateway/pkg/xlx"
)

// Gateway bundles a Dispatcher with the peers and voice sources it
// owns: one object holding the modem plus however many of
// DMR-1/DMR-2/XLX-1/XLX-2 are enabled, opened in that fixed order
// before the main loop starts.
type Gateway struct {
	Dispatcher *Dispatcher
	Modem      peer.ModemPeer

	networks []peer.NetworkPeer
	voices   []*voice.Source
}

// NewGateway builds every enabled network peer, its rewrite chains, and
// (for XLX) its session and voice source from cfg, opening each
// network peer in turn, logging its startup parameters before each
// Open and its rewrite rules after it. modem must already be open and past its
// handshake (Modem.WaitForConfig) so GetID/GetConfig/GetOptions
// have real values for DMR-ID inheritance and config propagation.
//
// On any network's Open failing, NewGateway closes what it already
// opened and returns the error; there is no partially-running gateway.
func NewGateway(cfg *config.Config, modem peer.ModemPeer, log *logger.Logger, obs Observer) (*Gateway, error) {
	g := &Gateway{Modem: modem}

	dispatchCfg := Config{
		Modem:                      modem,
		Slots:                      slot.NewSlots(int64(cfg.InactivityTimeout) * 1000),
		FixXLX2ReflectorComparison: false,
		Observer:                   obs,
		Log:                        log,
	}

	if cfg.DMR1.Enabled {
		p, rf, net, err := buildDMRNetwork(&cfg.DMR1, "DMR-1", modem, log)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("open DMR-1: %w", err)
		}
		dispatchCfg.DMR1Peer, dispatchCfg.DMR1RFChain, dispatchCfg.DMR1NetChain = p, rf, net
		g.networks = append(g.networks, p)
	}

	if cfg.DMR2.Enabled {
		p, rf, net, err := buildDMRNetwork(&cfg.DMR2, "DMR-2", modem, log)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("open DMR-2: %w", err)
		}
		dispatchCfg.DMR2Peer, dispatchCfg.DMR2RFChain, dispatchCfg.DMR2NetChain = p, rf, net
		g.networks = append(g.networks, p)
	}

	if cfg.XLX1.Enabled {
		p, session, outbound, inbound, err := buildXLXNetwork(&cfg.XLX1, "XLX-1", modem, log)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("open XLX-1: %w", err)
		}
		dispatchCfg.XLX1Peer, dispatchCfg.XLX1Session = p, session
		dispatchCfg.XLX1OutboundRewrite, dispatchCfg.XLX1InboundRewrite = outbound, inbound
		g.networks = append(g.networks, p)
	}

	if cfg.XLX2.Enabled {
		p, session, outbound, inbound, err := buildXLXNetwork(&cfg.XLX2, "XLX-2", modem, log)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("open XLX-2: %w", err)
		}
		dispatchCfg.XLX2Peer, dispatchCfg.XLX2Session = p, session
		dispatchCfg.XLX2OutboundRewrite, dispatchCfg.XLX2InboundRewrite = outbound, inbound
		g.networks = append(g.networks, p)
	}

	if cfg.Voice.Enabled && (cfg.XLX1.Enabled || cfg.XLX2.Enabled) {
		log.Info("voice parameters",
			logger.String("language", cfg.Voice.Language),
			logger.String("directory", cfg.Voice.Directory))

		if cfg.XLX1.Enabled {
			v := voice.NewSource(cfg.Voice.Directory, cfg.Voice.Language, modem.GetID(), cfg.XLX1.PrimarySlot, cfg.XLX1.PrimaryTG, log)
			if err := v.Open(); err != nil {
				log.Warn("voice announcements disabled for XLX-1", logger.Error(err))
			} else {
				dispatchCfg.Voice1 = v
				g.voices = append(g.voices, v)
			}
		}
		if cfg.XLX2.Enabled {
			v := voice.NewSource(cfg.Voice.Directory, cfg.Voice.Language, modem.GetID(), cfg.XLX2.PrimarySlot, cfg.XLX2.PrimaryTG, log)
			if err := v.Open(); err != nil {
				log.Warn("voice announcements disabled for XLX-2", logger.Error(err))
			} else {
				dispatchCfg.Voice2 = v
				g.voices = append(g.voices, v)
			}
		}
	}

	g.Dispatcher = New(dispatchCfg)
	return g, nil
}

// Close releases every network and voice source this gateway opened, in
// the reverse of the order Open was called in. The modem is the
// caller's to close, since NewGateway never opened it.
func (g *Gateway) Close() error {
	var firstErr error
	for i := len(g.networks) - 1; i >= 0; i-- {
		if err := g.networks[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, v := range g.voices {
		v.Close()
	}
	return firstErr
}

func buildDMRNetwork(netCfg *config.DMRNetworkConfig, name string, modem peer.ModemPeer, log *logger.Logger) (peer.NetworkPeer, rewrite.Chain, rewrite.Chain, error) {
	id := netCfg.ResolvedID(modem.GetID())

	log.Info(name+" parameters",
		logger.Uint32("id", id),
		logger.String("address", netCfg.Address),
		logger.Int("port", netCfg.Port),
		logger.Int("local", netCfg.LocalPort))

	p := peer.NewNetwork(name, netCfg.Address, netCfg.Port, netCfg.LocalPort, id, netCfg.Password, log)
	p.SetConfig(modem.GetConfig())

	// Only the DMR master networks fall back to the repeater's own
	// options string; XLX networks never inherit it.
	options := netCfg.Options
	if options == "" {
		options = modem.GetOptions()
	}
	if options != "" {
		log.Info(name+" options", logger.String("options", options))
		p.SetOptions(options)
	}

	if err := p.Open(); err != nil {
		return nil, nil, nil, err
	}

	var rf, net rewrite.Chain
	for _, r := range netCfg.TGRewrites {
		log.Info(name+" rewrite RF", logger.Int("from_slot", r.FromSlot), logger.Uint32("from_tg", r.FromTG),
			logger.Int("to_slot", r.ToSlot), logger.Uint32("to_tg", r.ToTG), logger.Uint32("range", r.Range))
		log.Info(name+" rewrite Net", logger.Int("from_slot", r.ToSlot), logger.Uint32("from_tg", r.ToTG),
			logger.Int("to_slot", r.FromSlot), logger.Uint32("to_tg", r.FromTG), logger.Uint32("range", r.Range))
		rf = append(rf, rewrite.NewTG(name, r.FromSlot, r.FromTG, r.ToSlot, r.ToTG, r.Range))
		net = append(net, rewrite.NewTG(name, r.ToSlot, r.ToTG, r.FromSlot, r.FromTG, r.Range))
	}
	for _, r := range netCfg.PCRewrites {
		log.Info(name+" rewrite RF", logger.Int("from_slot", r.FromSlot), logger.Uint32("from_id", r.FromID),
			logger.Int("to_slot", r.ToSlot), logger.Uint32("to_id", r.ToID), logger.Uint32("range", r.Range))
		rf = append(rf, rewrite.NewPC(name, r.FromSlot, r.FromID, r.ToSlot, r.ToID, r.Range))
	}
	for _, r := range netCfg.TypeRewrites {
		log.Info(name+" rewrite RF", logger.Int("from_slot", r.FromSlot), logger.Uint32("from_tg", r.FromTG),
			logger.Int("to_slot", r.ToSlot), logger.Uint32("to_id", r.ToID))
		rf = append(rf, rewrite.NewType(name, r.FromSlot, r.FromTG, r.ToSlot, r.ToID))
	}
	for _, r := range netCfg.SrcRewrites {
		log.Info(name+" rewrite Net", logger.Int("from_slot", r.FromSlot), logger.Uint32("from_id", r.FromID),
			logger.Int("to_slot", r.ToSlot), logger.Uint32("to_tg", r.ToTG), logger.Uint32("range", r.Range))
		net = append(net, rewrite.NewSrc(name, r.FromSlot, r.FromID, r.ToSlot, r.ToTG, r.Range))
	}

	return p, rf, net, nil
}

func buildXLXNetwork(netCfg *config.XLXNetworkConfig, name string, modem peer.ModemPeer, log *logger.Logger) (peer.NetworkPeer, *xlx.Session, rewrite.Rule, rewrite.Rule, error) {
	id := netCfg.ResolvedID(modem.GetID())

	log.Info(name+" parameters",
		logger.Uint32("id", id),
		logger.String("address", netCfg.Address),
		logger.Int("port", netCfg.Port),
		logger.Int("local", netCfg.LocalPort),
		logger.Int("primary_slot", netCfg.PrimarySlot),
		logger.Uint32("primary_tg", netCfg.PrimaryTG),
		logger.Uint32("base", netCfg.Base))

	p := peer.NewNetwork(name, netCfg.Address, netCfg.Port, netCfg.LocalPort, id, netCfg.Password, log)
	p.SetConfig(modem.GetConfig())
	if netCfg.Options != "" {
		log.Info(name+" options", logger.String("options", netCfg.Options))
		p.SetOptions(netCfg.Options)
	}

	if err := p.Open(); err != nil {
		return nil, nil, nil, nil, err
	}

	session := xlx.NewSession(name, netCfg.PrimarySlot, netCfg.PrimaryTG, netCfg.Base)
	outbound := rewrite.NewIdentity(name, netCfg.PrimarySlot, netCfg.PrimaryTG, xlx.ReflectorSlot, xlx.ReflectorTG)
	inbound := rewrite.NewIdentity(name, xlx.ReflectorSlot, xlx.ReflectorTG, netCfg.PrimarySlot, netCfg.PrimaryTG)
	return p, session, outbound, inbound, nil
}
