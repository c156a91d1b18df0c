package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Act on text messages sent to the gateway.
 *
 * Description:	Messages are matched on their start, case sensitive.
 *
 *		@ICON /> 	Map icon, symbol table then symbol.
 *		@SSID 9		SSID to put after the callsign.
 *		@COM text	Comment, up to 35 characters.
 *		@MH CM87wj	Report a position given as a grid locator.
 *
 *		ID		Log who sent it.
 *		TEST		Log that we're alive.
 *
 *		Anything exactly matching an entry in the command table
 *		runs the action configured for it, even if it was also
 *		one of the above.  Everything else is ignored.
 *
 *		Nothing is ever sent back to the radio.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
)

// Shorter than this is too vague to be worth reporting.
const MIN_GRID_LEN = 6

var ssidRE = regexp.MustCompile(`^[A-Za-z0-9]{1,2}$`)

type CommandConfig struct {
	Commands map[string]string // Exact message text to action.
}

type CommandProcessor struct {
	config    CommandConfig
	profiles  *ProfileStore
	formatter *Formatter
	directory *SubscriberDirectory
	uplink    Uplink
	actions   ActionRunner
	jobs      JobQueue // nil means run inline.
	logger    *log.Logger
	metrics   *Metrics
}

type CommandDeps struct {
	Profiles  *ProfileStore
	Formatter *Formatter
	Directory *SubscriberDirectory
	Uplink    Uplink
	Actions   ActionRunner
	Jobs      JobQueue
	Logger    *log.Logger
	Metrics   *Metrics
}

func NewCommandProcessor(config CommandConfig, deps CommandDeps) *CommandProcessor {
	return &CommandProcessor{
		config:    config,
		profiles:  deps.Profiles,
		formatter: deps.Formatter,
		directory: deps.Directory,
		uplink:    deps.Uplink,
		actions:   deps.Actions,
		jobs:      deps.Jobs,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Handle
 *
 * Purpose:     Process one message.
 *
 * Inputs:	from	- Radio id of the sender.
 *		text	- Message text.
 *
 * Returns:	Name of the command recognised, or "" for none.
 *
 * Errors:	ErrCommand for a bad argument, or whatever the profile
 *		store, formatter or uplink said.
 *
 *--------------------------------------------------------------------*/

func (c *CommandProcessor) Handle(from uint32, text string) (string, error) {
	var name, err = c.builtin(from, text)

	// The table is looked at whatever else the message was.
	if action, found := c.config.Commands[text]; found {
		if name != "none" {
			c.done(name, err)
		}
		return c.done("action", errors.Join(err, c.runAction(text, action)))
	}

	if name == "none" {
		c.logger.Debug("Not a command", "from", from, "text", text)
	}

	return c.done(name, err)
}

func (c *CommandProcessor) builtin(from uint32, text string) (string, error) {
	var logger = c.logger.With("from", from)

	switch {
	case text == "ID":
		logger.Info("ID", "call", c.directory.Callsign(from), "id", from)
		return "id", nil

	case text == "TEST":
		logger.Info("It works!", "call", c.directory.Callsign(from))
		return "test", nil

	case strings.HasPrefix(text, "@ICON"):
		var icon = strings.ReplaceAll(strings.TrimPrefix(text, "@ICON"), " ", "")
		if !validIcon(icon) {
			return "icon", fmt.Errorf("%w: icon %q must be symbol table and symbol", ErrCommand, icon)
		}
		return "icon", c.profiles.SetField(from, FieldIcon, icon)

	case strings.HasPrefix(text, "@SSID"):
		var ssid = strings.ReplaceAll(strings.TrimPrefix(text, "@SSID"), " ", "")
		if !ssidRE.MatchString(ssid) {
			return "ssid", fmt.Errorf("%w: SSID %q must be 1 or 2 letters or digits", ErrCommand, ssid)
		}
		return "ssid", c.profiles.SetField(from, FieldSuffix, strings.ToUpper(ssid))

	case strings.HasPrefix(text, "@COM"):
		var comment = strings.TrimPrefix(text, "@COM")
		comment = strings.TrimPrefix(comment, " ")
		return "comment", c.profiles.SetField(from, FieldComment, stripControl(comment))

	case strings.HasPrefix(text, "@MH"):
		var grid = strings.TrimSpace(strings.TrimPrefix(text, "@MH"))
		if len(grid) < MIN_GRID_LEN {
			logger.Debug("Grid locator too short, ignored", "grid", grid)
			return "ignored", nil
		}
		return "grid", c.reportGrid(from, grid)
	}

	return "none", nil
}

// Symbol table or overlay, then a printable symbol code.
func validIcon(icon string) bool {
	return len(icon) == 2 && validSymbolTable(icon[0]) && icon[1] >= '!' && icon[1] <= '~'
}

// Reports can't carry control characters.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func (c *CommandProcessor) done(name string, err error) (string, error) {
	if err != nil {
		c.metrics.command(name + "_failed")
	} else {
		c.metrics.command(name)
	}

	if name == "none" {
		return "", nil
	}

	return name, err
}

func (c *CommandProcessor) reportGrid(from uint32, grid string) error {
	var lat, lon, err = GridSquareToLatLon(grid)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommand, err)
	}

	var st = Station{
		Call:    c.directory.Callsign(from),
		RadioID: from,
		Profile: c.profiles.GetOrDefault(from),
	}

	var report, ferr = c.formatter.FormatGrid(st, lat, lon)
	if ferr != nil {
		c.metrics.report("rejected")
		return ferr
	}

	c.logger.Info("Grid position", "from", from, "grid", grid,
		"lat", fmt.Sprintf("%.4f", lat), "lon", fmt.Sprintf("%.4f", lon), "mgrs", MGRS(lat, lon))
	c.metrics.report("grid")

	return QueueUplink(c.jobs, c.uplink, report)
}

func (c *CommandProcessor) runAction(text string, action string) error {
	if c.actions == nil {
		return fmt.Errorf("%w: no way to run %q", ErrCommand, text)
	}

	c.logger.Info("Executing command", "command", text)

	var run = func() error {
		return c.actions.Run(context.Background(), action)
	}

	if c.jobs == nil {
		return run()
	}

	if !c.jobs.Submit("action "+text, run) {
		return fmt.Errorf("%w: queue full, %q not run", ErrCommand, text)
	}

	return nil
}
