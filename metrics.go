package main

import "sync/atomic"

// Metrics tracks coarse counters surfaced on the operational HTTP
// side-channel (§4.16). All fields are updated with atomic ops so any
// connection goroutine can bump them without a shared lock.
type Metrics struct {
	connectionsTotal   atomic.Int64
	connectionsCurrent atomic.Int64
	framesReceived     atomic.Int64
	framesRejected     atomic.Int64
	activeBridges      atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) ConnectionOpened() {
	m.connectionsTotal.Add(1)
	m.connectionsCurrent.Add(1)
}

func (m *Metrics) ConnectionClosed() {
	m.connectionsCurrent.Add(-1)
}

func (m *Metrics) FrameReceived() {
	m.framesReceived.Add(1)
}

func (m *Metrics) FrameRejected() {
	m.framesRejected.Add(1)
}

func (m *Metrics) BridgeOpened() {
	m.activeBridges.Add(1)
}

func (m *Metrics) BridgeClosed() {
	m.activeBridges.Add(-1)
}

// Snapshot is a point-in-time copy of every counter, safe to JSON-encode.
type Snapshot struct {
	ConnectionsTotal   int64 `json:"connections_total"`
	ConnectionsCurrent int64 `json:"connections_current"`
	FramesReceived     int64 `json:"frames_received"`
	FramesRejected     int64 `json:"frames_rejected"`
	ActiveBridges      int64 `json:"active_bridges"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		ConnectionsTotal:   m.connectionsTotal.Load(),
		ConnectionsCurrent: m.connectionsCurrent.Load(),
		FramesReceived:     m.framesReceived.Load(),
		FramesRejected:     m.framesRejected.Load(),
		ActiveBridges:      m.activeBridges.Load(),
	}
}
