package podradio

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"

	"github.com/brutella/dnssd"
)

// BridgeServiceType is the mDNS/DNS-SD service type a network-attached
// radio bridge announces itself under, and the type DiscoverBridges
// browses for. Grounded on doismellburning-samoyed's dns_sd.go, which
// announces its KISS-over-TCP TNC the same way.
const BridgeServiceType = "_podradio._tcp"

// BridgeAddress describes one bridge discovered on the local network.
type BridgeAddress struct {
	Name string
	Host string
	Port int
	IPs  []string
}

// AnnounceBridge advertises a network-attached radio bridge under
// BridgeServiceType so PDM-side hosts can find it without a configured
// address. It returns once the service is registered; the responder
// keeps running in the background until ctx is cancelled.
func AnnounceBridge(ctx context.Context, name string, port int, logger log.Logger) error {
	if name == "" {
		name = "podradio-bridge"
	}

	cfg := dnssd.Config{
		Name: name,
		Type: BridgeServiceType,
		Port: port,
	}

	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("podradio: create dns-sd service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("podradio: create dns-sd responder: %w", err)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("podradio: add dns-sd service: %w", err)
	}

	logInfo(logger, "event", "dns_sd_announce", "name", name, "port", port)

	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			logError(logger, "event", "dns_sd_responder_failed", "err", err)
		}
	}()

	return nil
}

// DiscoverBridges browses the local network for BridgeServiceType
// instances until ctx is cancelled (callers typically pass a
// context.WithTimeout), returning whatever was found.
func DiscoverBridges(ctx context.Context, logger log.Logger) ([]BridgeAddress, error) {
	var found []BridgeAddress

	add := func(e dnssd.BrowseEntry) {
		addr := BridgeAddress{Name: e.Name, Port: e.Port}
		for _, ip := range e.IPs {
			addr.IPs = append(addr.IPs, ip.String())
		}
		if len(addr.IPs) > 0 {
			addr.Host = addr.IPs[0]
		}
		logDebug(logger, "event", "dns_sd_found", "name", addr.Name, "host", addr.Host, "port", addr.Port)
		found = append(found, addr)
	}
	remove := func(e dnssd.BrowseEntry) {
		logDebug(logger, "event", "dns_sd_lost", "name", e.Name)
	}

	err := dnssd.LookupType(ctx, BridgeServiceType, add, remove)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("podradio: dns-sd lookup: %w", err)
	}

	return found, nil
}
