package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Turn DMR data calls into APRS.
 *
 * Description:	The host calls HandleFrame for every frame it gets,
 *		one at a time, in the order received.
 *
 *		frame -> accepted? -> decode burst -> reassemble
 *		      -> GPS sentence? -> fix -> report -> APRS-IS
 *		      -> otherwise a text message -> commands
 *
 *		Nothing is returned to the host.  Every outcome is
 *		logged and counted.  Network and file work is queued
 *		so the next frame isn't kept waiting.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

type GatewayDeps struct {
	Logger    *log.Logger
	Metrics   *Metrics // Optional.
	Profiles  *ProfileStore
	Directory *SubscriberDirectory // Optional.  Without it reports use the radio id.
	Uplink    Uplink
	Actions   ActionRunner // Optional.
	Jobs      JobQueue     // Optional.  Without it everything is done inline.
	Now       func() time.Time
}

type Gateway struct {
	logger    *log.Logger
	metrics   *Metrics
	profiles  *ProfileStore
	directory *SubscriberDirectory
	uplink    Uplink
	jobs      JobQueue
	now       func() time.Time

	assembler *Assembler
	formatter *Formatter
	commands  *CommandProcessor
}

func NewGateway(cfg Config, deps GatewayDeps) *Gateway {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	var g = &Gateway{
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		profiles:  deps.Profiles,
		directory: deps.Directory,
		uplink:    deps.Uplink,
		jobs:      deps.Jobs,
		now:       deps.Now,
	}

	g.assembler = NewAssembler(cfg.AssemblerConfig(), deps.Logger, deps.Metrics)
	g.formatter = &Formatter{Config: cfg.ReportConfig(), Now: deps.Now}
	g.commands = NewCommandProcessor(cfg.CommandConfig(), CommandDeps{
		Profiles:  deps.Profiles,
		Formatter: g.formatter,
		Directory: deps.Directory,
		Uplink:    deps.Uplink,
		Actions:   deps.Actions,
		Jobs:      deps.Jobs,
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
	})

	return g
}

/*------------------------------------------------------------------
 *
 * Name:        HandleFrame
 *
 * Purpose:     Process one frame from the host.
 *
 * Description:	Frames not for us, and frames that are neither a data
 *		header nor a rate 1/2 data block, are ignored without
 *		touching any state.
 *
 *----------------------------------------------------------------*/

func (g *Gateway) HandleFrame(f RawFrame) {
	if !g.assembler.Accepts(f) || !(f.IsHeader() || f.IsRate12Data()) {
		g.metrics.frame("ignored")
		return
	}

	var block, err = DecodeBurst(f.Payload)
	if err != nil {
		g.metrics.frame("rejected")
		g.logger.Warn("Frame dropped", "src", f.SourceID, "stream", fmt.Sprintf("%08x", f.StreamID), "err", err)
		return
	}

	g.metrics.frame("accepted")

	var tx, perr = g.assembler.Push(f, block, g.now())
	switch {
	case errors.Is(perr, ErrNoAssembly):
		g.logger.Debug("Data block without header", "err", perr)
		return
	case perr != nil:
		g.logger.Warn("Reassembly", "err", perr)
		return
	case tx == nil:
		return
	}

	g.handleTransmission(tx)
}

func (g *Gateway) handleTransmission(tx *Transmission) {
	var logger = g.logger.With("src", tx.SourceID, "stream", fmt.Sprintf("%08x", tx.StreamID))

	var content = Classify(tx.Data)

	logger.Debug("Transmission complete", "blocks", tx.Blocks, "format", tx.HeaderFormat(), "content", content.Kind)

	if content.Kind == ContentPosition {
		g.handlePosition(logger, tx, content.Text)
		return
	}

	if tx.HeaderFormat() == HeaderFormatUDT {
		logger.Info("UDT data without a GPS sentence, possible NMEA from UDT radio", "text", content.Text)
	}

	logger.Info("Message", "text", content.Text)

	var name, err = g.commands.Handle(tx.SourceID, content.Text)
	switch {
	case err == nil:
		if name != "" {
			logger.Info("Command done", "command", name)
		}
	case errors.Is(err, ErrProfileIO), errors.Is(err, ErrUplink):
		logger.Error("Command failed", "command", name, "err", err)
	default:
		logger.Warn("Command rejected", "command", name, "err", err)
	}
}

func (g *Gateway) handlePosition(logger *log.Logger, tx *Transmission, text string) {
	var fix, err = ParseFix(text, g.now())
	if err != nil {
		g.metrics.report("unparsed")
		logger.Warn("GPS sentence not usable", "err", err)
		return
	}

	var st = Station{
		Call:    g.directory.Callsign(tx.SourceID),
		RadioID: tx.SourceID,
		Profile: g.profiles.GetOrDefault(tx.SourceID),
	}

	if g.directory != nil && !g.directory.Known(tx.SourceID) {
		logger.Warn("Radio not in subscriber directory", "id", tx.SourceID)
	}

	var report, ferr = g.formatter.FormatFix(st, fix)
	if ferr != nil {
		g.metrics.report("rejected")
		logger.Warn("Report discarded", "call", st.Call, "err", ferr)
		return
	}

	logger.Info("Position", "call", st.Call, "fix", fix.Summary(), "mgrs", MGRS(fix.Latitude, fix.Longitude))
	g.metrics.report("fix")

	if err := QueueUplink(g.jobs, g.uplink, report); err != nil {
		logger.Error("Report not queued", "err", err)
	}
}

// Expire throws away transmissions that stopped arriving.
func (g *Gateway) Expire() int {
	return g.assembler.Expire(g.now())
}

// Assembler is exposed for monitoring.
func (g *Gateway) Assembler() *Assembler {
	return g.assembler
}

// QueueUplink arranges for a report to be sent, in the background if
// there is a queue.
func QueueUplink(jobs JobQueue, uplink Uplink, packet string) error {
	if uplink == nil {
		return fmt.Errorf("%w: no uplink configured", ErrUplink)
	}

	var send = func() error {
		return uplink.Send(context.Background(), packet)
	}

	if jobs == nil {
		return send()
	}

	if !jobs.Submit("uplink", send) {
		return fmt.Errorf("%w: queue full, report dropped", ErrUplink)
	}

	return nil
}
