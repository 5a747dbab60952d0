// Package metrics defines the Prometheus metrics exported under the
// "corvid_dhcpd_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "corvid_dhcpd"

var (
	// PacketsReceived counts decoded inbound packets by message type.
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_received_total",
		Help:      "Total DHCP packets received, by message type.",
	}, []string{"msg_type"})

	// PacketsSent counts replies sent by message type.
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_sent_total",
		Help:      "Total DHCP packets sent, by message type.",
	}, []string{"msg_type"})
)

var (
	// LeasesActive is a gauge of currently bound leases.
	LeasesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leases_active",
		Help:      "Number of currently bound leases.",
	})

	// LeaseOperations counts lease-store state transitions by operation.
	LeaseOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lease_operations_total",
		Help:      "Total lease operations, by type (offer, ack, release).",
	}, []string{"operation"})

	// PoolExhausted counts allocation attempts that found no free address.
	PoolExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pool_exhausted_total",
		Help:      "Total times a subnet's pool had no address available to offer.",
	}, []string{"subnet"})
)

var (
	// ConflictProbesSent counts ICMP pre-ACK conflict probes sent.
	ConflictProbesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflict_probes_sent_total",
		Help:      "Total ICMP echo probes sent before acknowledging a lease.",
	})

	// ConflictsDetected counts probes that found the address already live.
	ConflictsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_detected_total",
		Help:      "Total addresses found already in use by an ICMP probe.",
	})

	// DDNSUpdates counts RFC 2136 update attempts by record type and outcome.
	DDNSUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ddns_updates_total",
		Help:      "Total dynamic DNS update attempts, by record type and outcome.",
	}, []string{"rrtype", "outcome"})

	// RADIUSChecks counts MAC-authorization checks by outcome.
	RADIUSChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "radius_checks_total",
		Help:      "Total RADIUS MAC-authorization checks, by outcome (accept, reject, error).",
	}, []string{"outcome"})
)
