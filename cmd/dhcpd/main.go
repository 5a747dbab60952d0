// dhcpd is a standalone DHCPv4 server built on pkg/dhcpv4 and
// pkg/dhcpserver, using the reference lease-allocating handler in
// internal/lease.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvid-dhcpd/corvid-dhcpd/internal/conflict"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/config"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/ddns"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/lease"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/logging"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/radius"
	"github.com/corvid-dhcpd/corvid-dhcpd/internal/statsweb"
	"github.com/corvid-dhcpd/corvid-dhcpd/pkg/dhcpserver"
)

func main() {
	configPath := flag.String("config", "/etc/corvid-dhcpd/config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Server.LogLevel, os.Stdout)
	logger.Info("corvid-dhcpd starting", "config", *configPath, "server_id", cfg.Server.ServerID)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := lease.NewStore(cfg.Server.LeaseDB)
	if err != nil {
		logger.Error("failed to open lease database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	subnets, err := buildSubnets(cfg)
	if err != nil {
		logger.Error("invalid subnet configuration", "error", err)
		os.Exit(1)
	}

	var prober *conflict.Prober
	if cfg.Conflict.Enabled {
		prober, err = conflict.NewProber(logger)
		if err != nil {
			logger.Error("failed to initialize conflict prober", "error", err)
			os.Exit(1)
		}
		defer prober.Close()
	}

	var radiusClient *radius.Client
	if cfg.RADIUS.Enabled {
		timeout, _ := config.ParseDuration(cfg.RADIUS.Timeout)
		radiusClient = radius.NewClient(cfg.RADIUS.Server, cfg.RADIUS.Secret, timeout, logger)
	}

	var ddnsClient *ddns.Client
	if cfg.DDNS.Enabled {
		timeout, _ := config.ParseDuration(cfg.DDNS.Timeout)
		ddnsClient = ddns.NewClient(cfg.DDNS.Server, cfg.DDNS.TSIGName, cfg.DDNS.TSIGAlgorithm, cfg.DDNS.TSIGSecret, timeout, logger)
	}

	probeTimeout, _ := config.ParseDuration(cfg.Conflict.ProbeTimeout)
	manager := lease.NewManager(store, subnets, logger, prober, radiusClient, ddnsClient, cfg.DDNS.Zone, cfg.DDNS.ReverseZone, probeTimeout)

	conn, err := dhcpserver.Listen(ctx, cfg.Server.BindAddress, cfg.Server.Interface, logger)
	if err != nil {
		logger.Error("failed to bind DHCP socket", "error", err)
		os.Exit(1)
	}

	srv := dhcpserver.NewServer(conn, net.ParseIP(cfg.Server.ServerID), net.IPv4bcast, manager, logger)
	defer srv.Close()

	if cfg.StatsWeb.Enabled {
		stats := statsweb.New(cfg.StatsWeb.Listen, cfg.StatsWeb.Username, cfg.StatsWeb.PasswordHash, logger)
		go func() {
			if err := stats.ListenAndServe(ctx); err != nil {
				logger.Error("stats server exited", "error", err)
			}
		}()
	}

	logger.Info("serving DHCP", "bind_address", cfg.Server.BindAddress, "interface", cfg.Server.Interface)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("server loop exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func buildSubnets(cfg *config.Config) ([]lease.Subnet, error) {
	subnets := make([]lease.Subnet, 0, len(cfg.Subnets))
	for _, sc := range cfg.Subnets {
		_, network, err := net.ParseCIDR(sc.Network)
		if err != nil {
			return nil, fmt.Errorf("subnet %q: %w", sc.Network, err)
		}
		leaseTime, err := config.ParseDuration(sc.LeaseTime)
		if err != nil {
			return nil, fmt.Errorf("subnet %q: %w", sc.Network, err)
		}

		sn := lease.Subnet{
			Network:   network,
			LeaseTime: leaseTime,
			PoolStart: net.ParseIP(sc.Pool.RangeStart),
			PoolEnd:   net.ParseIP(sc.Pool.RangeEnd),
		}
		for _, r := range sc.Routers {
			sn.Routers = append(sn.Routers, net.ParseIP(r))
		}
		for _, d := range sc.DNSServers {
			sn.DNS = append(sn.DNS, net.ParseIP(d))
		}
		subnets = append(subnets, sn)
	}
	return subnets, nil
}
