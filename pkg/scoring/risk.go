// Package scoring turns collected signals and check verdicts into scores.
// Every function here is pure.
package scoring

import (
	"math"

	"github.com/user/gosec-posture/pkg/collector"
)

// Band is a coarse, display-only classification of a score.
type Band string

const (
	BandLow      Band = "Low"
	BandModerate Band = "Moderate"
	BandHigh     Band = "High"
)

// MaxRiskPoints is the highest attainable risk sum.
const MaxRiskPoints = 8

const (
	uptimeLimit        = 7 * 24 * 60 * 60
	memoryHigh         = 90
	memoryElevated     = 80
	processLimit       = 5
	connectionsHigh    = 5
	connectionsRaised  = 3
	cpuHigh            = 90
	riskModerateCutoff = 30
	riskHighCutoff     = 70
)

// Contribution is one rule that added points to the risk sum.
type Contribution struct {
	Signal string `json:"signal"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// RiskAssessment is the scored result of a snapshot.
type RiskAssessment struct {
	Points        int            `json:"points"`
	Score         int            `json:"score"`
	Band          Band           `json:"band"`
	Contributions []Contribution `json:"contributions,omitempty"`
}

// Risk scores a snapshot. Signals marked unknown contribute nothing.
func Risk(s collector.Snapshot) RiskAssessment {
	var cs []Contribution
	add := func(sig collector.Signal, pts int, reason string) {
		cs = append(cs, Contribution{Signal: sig.String(), Points: pts, Reason: reason})
	}

	if s.Known(collector.SignalUptime) && s.UptimeSeconds > uptimeLimit {
		add(collector.SignalUptime, 1, "High uptime without reboot. Consider restarting for updates.")
	}
	if s.Known(collector.SignalMemory) {
		switch {
		case s.MemoryUsedPct > memoryHigh:
			add(collector.SignalMemory, 2, "Critical memory usage.")
		case s.MemoryUsedPct > memoryElevated:
			add(collector.SignalMemory, 1, "High memory usage.")
		}
	}
	if s.Known(collector.SignalProcesses) && s.HighMemoryProcessCount > processLimit {
		add(collector.SignalProcesses, 1, "Too many high memory processes.")
	}
	if s.Known(collector.SignalConnections) {
		switch {
		case s.ExternalConnectionCount > connectionsHigh:
			add(collector.SignalConnections, 2, "Many external connections.")
		case s.ExternalConnectionCount > connectionsRaised:
			add(collector.SignalConnections, 1, "Multiple external connections.")
		}
	}
	if s.Known(collector.SignalCPU) && s.CPUUsedPct > cpuHigh {
		add(collector.SignalCPU, 1, "Sustained high CPU usage.")
	}

	points := 0
	for _, c := range cs {
		points += c.Points
	}
	score := RiskScore(points)
	return RiskAssessment{Points: points, Score: score, Band: RiskBand(score), Contributions: cs}
}

// RiskScore normalises a point sum to 0-100.
func RiskScore(points int) int {
	if points <= 0 {
		return 0
	}
	if points >= MaxRiskPoints {
		return 100
	}
	return int(math.Round(float64(points) / MaxRiskPoints * 100))
}

// RiskBand classifies a risk score; higher is worse.
func RiskBand(score int) Band {
	switch {
	case score >= riskHighCutoff:
		return BandHigh
	case score >= riskModerateCutoff:
		return BandModerate
	default:
		return BandLow
	}
}
