package ws

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chess_sessions_active",
		Help: "Sessions currently held in the store.",
	})

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chess_clients_connected",
		Help: "Transports currently attached to a session.",
	})

	movesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chess_moves_applied_total",
		Help: "Moves accepted and committed to a board.",
	})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chess_games_finished_total",
		Help: "Finished games by termination reason.",
	}, []string{"reason"})

	protocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chess_protocol_errors_total",
		Help: "Inbound frames dropped by the codec.",
	})
)

// liveConns mirrors the gauge so handlers can read the number back.
var liveConns atomic.Int64

func connInc() {
	connectedClients.Inc()
	liveConns.Add(1)
}

func connDec() {
	connectedClients.Dec()
	liveConns.Add(-1)
}

// ConnectedClients is the number of transports currently attached.
func ConnectedClients() int64 {
	return liveConns.Load()
}
