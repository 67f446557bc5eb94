package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Link reports whether the local network link can reach anything at all.
type Link interface {
	Up() bool
}

// interfaceLink treats the link as up when any non-loopback interface is up
// and carries an address.
type interfaceLink struct{}

func (interfaceLink) Up() bool {
	return localIPv4() != "" || hasGlobalIPv6()
}

// awaitLink blocks until link reports up, polling every interval. It never
// gives up on its own; only ctx ends the wait.
func awaitLink(ctx context.Context, link Link, interval time.Duration, logger *slog.Logger) error {
	if link.Up() {
		return nil
	}
	logger.Warn("network link down, waiting", "retry", interval)

	policy := backoff.NewConstantBackOff(interval)
	for attempt := 1; ; attempt++ {
		delay := policy.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if link.Up() {
			logger.Info("network link up", "attempts", attempt)
			return nil
		}
		logger.Debug("network link still down", "attempt", attempt, "next", delay)
	}
}

// localIPv4 returns the first IPv4 address of an up, non-loopback interface.
func localIPv4() string {
	ifs, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifs {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				ip := ipnet.IP.To4()
				if ip != nil && !ip.IsLoopback() {
					return ip.String()
				}
			}
		}
	}
	return ""
}

func hasGlobalIPv6() bool {
	ifs, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifs {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() != nil {
				continue
			}
			if ipNet.IP.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}
