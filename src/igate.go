package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Send position reports to APRS-IS.
 *
 * Description:	Reports are rare, a few a minute at most, so there is
 *		no long lived connection.  For each one we connect to a
 *		tier 2 server, log in, send it, and hang up.
 *
 * References:	APRS-IS (Automatic Packet Reporting System-Internet Service)
 *		http://www.aprs-is.net/Default.aspx
 *
 *		Connecting to APRS-IS
 *		http://www.aprs-is.net/Connecting.aspx
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const DEFAULT_IGATE_PORT = 14580

const DEFAULT_IGATE_TIMEOUT = 10 * time.Second

// Servers send a comment line or two before the login response.
const MAX_LOGIN_LINES = 4

// Uplink is anything that can take a report off our hands.
type Uplink interface {
	Send(ctx context.Context, packet string) error
}

type IGateConfig struct {
	Server   string
	Port     int
	Login    string // Callsign to log in as.
	Passcode string // Max. 5 digits.  Could be "-1".
	Timeout  time.Duration
}

type IGate struct {
	config  IGateConfig
	logger  *log.Logger
	metrics *Metrics
}

func NewIGate(config IGateConfig, logger *log.Logger, metrics *Metrics) *IGate {
	if config.Port == 0 {
		config.Port = DEFAULT_IGATE_PORT
	}
	if config.Timeout <= 0 {
		config.Timeout = DEFAULT_IGATE_TIMEOUT
	}

	return &IGate{config: config, logger: logger, metrics: metrics}
}

/*-------------------------------------------------------------------
 *
 * Name:        Send
 *
 * Purpose:     Send one packet to the IGate server.
 *
 * Inputs:	packet	- TNC2 format, without CR LF.
 *
 * Errors:	ErrUplink for anything that goes wrong.  No retry.
 *
 *--------------------------------------------------------------------*/

func (ig *IGate) Send(ctx context.Context, packet string) error {
	var err = ig.send(ctx, packet)
	if err != nil {
		ig.metrics.uplink("error")
		ig.logger.Error("Report not sent", "server", ig.config.Server, "packet", packet, "err", err)
		return fmt.Errorf("%w: %w", ErrUplink, err)
	}

	ig.metrics.uplink("sent")
	ig.logger.Info("Report sent", "server", ig.config.Server, "packet", packet)

	return nil
}

func (ig *IGate) send(ctx context.Context, packet string) error {
	if len(packet)+2 > IGATE_MAX_MSG {
		return fmt.Errorf("packet is %d bytes, limit is %d", len(packet), IGATE_MAX_MSG-2)
	}

	ctx, cancel := context.WithTimeout(ctx, ig.config.Timeout)
	defer cancel()

	var address = net.JoinHostPort(ig.config.Server, strconv.Itoa(ig.config.Port))

	var dialer net.Dialer
	var conn, err = dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	var reader = bufio.NewReader(conn)

	var banner, berr = reader.ReadString('\n')
	if berr != nil {
		return fmt.Errorf("reading banner from %s: %w", address, berr)
	}
	ig.logger.Debug("IGate server", "banner", strings.TrimSpace(banner))

	/*
	 * Software name and version must not contain spaces.
	 */
	var login = fmt.Sprintf("user %s pass %s vers %s %s", ig.config.Login, ig.config.Passcode, SOFTWARE_NAME, Version())
	if _, err := conn.Write([]byte(login + "\r\n")); err != nil {
		return fmt.Errorf("sending login: %w", err)
	}

	if err := ig.awaitLogin(reader); err != nil {
		return err
	}

	if _, err := conn.Write([]byte(packet + "\r\n")); err != nil {
		return fmt.Errorf("sending packet: %w", err)
	}

	return nil
}

// e.g. "# logresp N0CALL verified, server T2TEST"
func (ig *IGate) awaitLogin(reader *bufio.Reader) error {
	for range MAX_LOGIN_LINES {
		var line, err = reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("waiting for login response: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "# logresp") {
			continue
		}

		if strings.Contains(line, "unverified") {
			// Accepted, but the servers will drop what we send.
			ig.logger.Warn("Login not verified, check the passcode", "login", ig.config.Login, "response", line)
		}

		return nil
	}

	return fmt.Errorf("no login response after %d lines", MAX_LOGIN_LINES)
}

/*-------------------------------------------------------------------
 *
 * Name:        Passcode
 *
 * Purpose:     The APRS-IS passcode for a callsign.
 *
 * Description:	Everyone knows this.  It keeps out typos, not people.
 *		The SSID is not included.
 *
 *--------------------------------------------------------------------*/

func Passcode(call string) int {
	call, _, _ = strings.Cut(strings.ToUpper(call), "-")

	var hash = 0x73e2
	for i := 0; i < len(call); i += 2 {
		hash ^= int(call[i]) << 8
		if i+1 < len(call) {
			hash ^= int(call[i+1])
		}
	}

	return hash & 0x7fff
}
