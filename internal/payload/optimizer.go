// Package payload implements adaptive size reduction of browser-collected
// diagnostic bundles. The widget runs the same algorithm client-side before
// transmission; the server applies it again to any bundle that still exceeds
// the configured budget, so stored diagnostics never blow past it.
package payload

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// DefaultMaxBytes is the serialized-size budget for a diagnostic bundle.
const DefaultMaxBytes = 8 << 20

// Generous first-pass truncation caps, and the hard-floor caps applied as a
// last resort.
const (
	messageCap      = 1000
	urlCap          = 150
	tightMessageCap = 200
	tightURLCap     = 50
	floorConsole    = 3
	floorNetwork    = 2
)

// Optimize shrinks console and network buffers to fit under maxBytes,
// preserving errors over other log levels and failed/slow requests over fast
// ones. It progressively discards low-priority entries, re-serializing and
// measuring each candidate, and falls back to hard truncation caps when
// discarding is not enough. It always terminates and always returns a
// payload, possibly the minimal floor. maxBytes <= 0 selects the default
// budget.
func Optimize(console []models.ConsoleLogEntry, network []models.NetworkRequest, maxBytes int) ([]models.ConsoleLogEntry, []models.NetworkRequest) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	console = sortConsole(console)
	network = filterSortNetwork(network)

	// Counts of always-keep (error/warn) vs droppable console entries.
	keep := 0
	for _, e := range console {
		if consolePriority(e.Level) > 1 {
			keep++
		}
	}
	infoLimit := len(console) - keep
	netLimit := len(network)

	candidateC, candidateN := buildCandidate(console, network, keep+infoLimit, netLimit, messageCap, urlCap)
	if estimateSize(candidateC, candidateN) <= maxBytes {
		return candidateC, candidateN
	}

	// First squeeze out non-error console entries, halving each round.
	for infoLimit > 0 {
		infoLimit /= 2
		candidateC, candidateN = buildCandidate(console, network, keep+infoLimit, netLimit, messageCap, urlCap)
		if estimateSize(candidateC, candidateN) <= maxBytes {
			return candidateC, candidateN
		}
	}

	// Then shrink the network list.
	for netLimit > floorNetwork {
		netLimit /= 2
		if netLimit < floorNetwork {
			netLimit = floorNetwork
		}
		candidateC, candidateN = buildCandidate(console, network, keep, netLimit, messageCap, urlCap)
		if estimateSize(candidateC, candidateN) <= maxBytes {
			return candidateC, candidateN
		}
	}

	// Last resort: hard caps on both field lengths and list lengths.
	return buildCandidate(console, network, floorConsole, floorNetwork, tightMessageCap, tightURLCap)
}

// consolePriority orders console levels for retention: errors above
// warnings above everything else.
func consolePriority(level string) int {
	switch strings.ToLower(level) {
	case "error":
		return 3
	case "warn", "warning":
		return 2
	default:
		return 1
	}
}

// sortConsole orders entries by priority, most recent first within equal
// priority. The input slice is not modified.
func sortConsole(entries []models.ConsoleLogEntry) []models.ConsoleLogEntry {
	out := make([]models.ConsoleLogEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := consolePriority(out[i].Level), consolePriority(out[j].Level)
		if pi != pj {
			return pi > pj
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// filterSortNetwork drops data-URI entries outright and orders the rest with
// suspected failures (zero duration) first, then slowest first.
func filterSortNetwork(entries []models.NetworkRequest) []models.NetworkRequest {
	out := make([]models.NetworkRequest, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.URL, "data:") {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		zi, zj := out[i].Duration == 0, out[j].Duration == 0
		if zi != zj {
			return zi
		}
		return out[i].Duration > out[j].Duration
	})
	return out
}

func buildCandidate(console []models.ConsoleLogEntry, network []models.NetworkRequest, consoleLimit, netLimit, msgCap, uCap int) ([]models.ConsoleLogEntry, []models.NetworkRequest) {
	if consoleLimit > len(console) {
		consoleLimit = len(console)
	}
	if netLimit > len(network) {
		netLimit = len(network)
	}

	outC := make([]models.ConsoleLogEntry, consoleLimit)
	for i := 0; i < consoleLimit; i++ {
		e := console[i]
		e.Message = truncate(e.Message, msgCap)
		if e.Stack != nil {
			s := truncate(*e.Stack, msgCap)
			e.Stack = &s
		}
		outC[i] = e
	}

	outN := make([]models.NetworkRequest, netLimit)
	for i := 0; i < netLimit; i++ {
		e := network[i]
		e.URL = truncate(e.URL, uCap)
		outN[i] = e
	}
	return outC, outN
}

// estimateSize approximates the serialized byte size of a candidate payload.
// Stringified length is a deliberate proxy, not exact byte accounting.
func estimateSize(console []models.ConsoleLogEntry, network []models.NetworkRequest) int {
	c, _ := json.Marshal(console)
	n, _ := json.Marshal(network)
	return len(c) + len(n)
}

// truncate shortens s to max bytes without splitting UTF-8 runes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
