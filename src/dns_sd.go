package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the metrics service using DNS-SD
 *
 * Description:
 *
 *     A gateway usually runs on a box in a cupboard next to a hotspot.
 *     Announcing the metrics endpoint lets a Prometheus on the same
 *     network find it without anyone typing in addresses.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package, so no
 *     system daemon is needed.
 */

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_dmrgps._tcp"

/* Get a default service name to publish. By default,
 * "dmrgps on <hostname>", or just "dmrgps" if hostname cannot
 * be obtained.
 */
func DNSSDDefaultServiceName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil || hostname == "" {
		return SOFTWARE_NAME
	}

	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")

	return SOFTWARE_NAME + " on " + hostname
}

// DNSSDAnnounce advertises port until ctx ends.  It returns once the
// announcement is set up; responding happens in the background.
func DNSSDAnnounce(ctx context.Context, name string, port int, logger *log.Logger) error {
	if name == "" {
		name = DNSSDDefaultServiceName()
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("DNS-SD: failed to create service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("DNS-SD: failed to create responder: %w", rpErr)
	}

	var _, addErr = rp.Add(sv)
	if addErr != nil {
		return fmt.Errorf("DNS-SD: failed to add service: %w", addErr)
	}

	logger.Info("DNS-SD: announcing metrics", "port", port, "name", name)

	go func() {
		var respondErr = rp.Respond(ctx)
		if respondErr != nil && ctx.Err() == nil {
			logger.Error("DNS-SD: responder error", "err", respondErr)
		}
	}()

	return nil
}
