package payload

import (
	"strings"
	"testing"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

func consoleEntries(n int, level, message string) []models.ConsoleLogEntry {
	out := make([]models.ConsoleLogEntry, n)
	for i := range out {
		out[i] = models.ConsoleLogEntry{Level: level, Message: message, Timestamp: int64(i)}
	}
	return out
}

func networkEntries(n int, url string, duration float64) []models.NetworkRequest {
	out := make([]models.NetworkRequest, n)
	for i := range out {
		out[i] = models.NetworkRequest{URL: url, Method: "GET", Status: 200, Duration: duration, Timestamp: int64(i)}
	}
	return out
}

func TestOptimize_SmallPayloadUntouched(t *testing.T) {
	console := consoleEntries(5, "info", "hello")
	network := networkEntries(3, "https://api.example.com/x", 120)

	gotC, gotN := Optimize(console, network, DefaultMaxBytes)
	if len(gotC) != 5 {
		t.Errorf("expected all 5 console entries kept, got %d", len(gotC))
	}
	if len(gotN) != 3 {
		t.Errorf("expected all 3 network entries kept, got %d", len(gotN))
	}
}

func TestOptimize_RespectsBudget(t *testing.T) {
	console := consoleEntries(200, "info", strings.Repeat("x", 500))
	network := networkEntries(100, "https://api.example.com/"+strings.Repeat("p", 100), 250)

	budget := 20000
	gotC, gotN := Optimize(console, network, budget)

	if size := estimateSize(gotC, gotN); size > budget {
		t.Errorf("optimized payload still over budget: %d > %d", size, budget)
	}
}

func TestOptimize_ErrorsSurviveInfoDiscard(t *testing.T) {
	console := append(consoleEntries(100, "info", strings.Repeat("i", 300)),
		consoleEntries(4, "error", "fatal: render failed")...)
	network := networkEntries(2, "https://api.example.com/x", 100)

	// Budget large enough for the errors but not the info flood.
	gotC, _ := Optimize(console, network, 4000)

	errIdx := -1
	for i, e := range gotC {
		if e.Level == "error" {
			errIdx = i
			break
		}
	}
	if errIdx != 0 {
		t.Fatalf("expected errors sorted to the front, first error at %d", errIdx)
	}
	errors := 0
	for _, e := range gotC {
		if e.Level == "error" {
			errors++
		}
	}
	if errors != 4 {
		t.Errorf("expected all 4 errors retained before info is exhausted, got %d", errors)
	}
}

func TestOptimize_TinyBudgetFallsToFloor(t *testing.T) {
	console := consoleEntries(50, "error", strings.Repeat("e", 900))
	network := networkEntries(50, "https://api.example.com/"+strings.Repeat("q", 120), 0)

	gotC, gotN := Optimize(console, network, 1)

	if len(gotC) != floorConsole {
		t.Errorf("expected console floor of %d, got %d", floorConsole, len(gotC))
	}
	if len(gotN) != floorNetwork {
		t.Errorf("expected network floor of %d, got %d", floorNetwork, len(gotN))
	}
	for _, e := range gotC {
		if len(e.Message) > tightMessageCap {
			t.Errorf("message over tight cap: %d bytes", len(e.Message))
		}
	}
	for _, n := range gotN {
		if len(n.URL) > tightURLCap {
			t.Errorf("URL over tight cap: %d bytes", len(n.URL))
		}
	}
}

func TestOptimize_ZeroBudgetMeansDefault(t *testing.T) {
	console := consoleEntries(10, "info", "msg")
	gotC, _ := Optimize(console, nil, 0)
	if len(gotC) != 10 {
		t.Errorf("expected full console list under default budget, got %d", len(gotC))
	}
}

func TestOptimize_InputSlicesNotModified(t *testing.T) {
	console := []models.ConsoleLogEntry{
		{Level: "info", Message: "first", Timestamp: 1},
		{Level: "error", Message: "second", Timestamp: 2},
	}
	Optimize(console, nil, DefaultMaxBytes)
	if console[0].Level != "info" || console[1].Level != "error" {
		t.Error("input slice reordered in place")
	}
}

func TestSortConsole(t *testing.T) {
	entries := []models.ConsoleLogEntry{
		{Level: "info", Message: "old info", Timestamp: 1},
		{Level: "warn", Message: "warning", Timestamp: 2},
		{Level: "info", Message: "new info", Timestamp: 9},
		{Level: "error", Message: "boom", Timestamp: 3},
	}

	got := sortConsole(entries)
	want := []string{"boom", "warning", "new info", "old info"}
	for i, m := range want {
		if got[i].Message != m {
			t.Errorf("position %d: expected %q, got %q", i, m, got[i].Message)
		}
	}
}

func TestFilterSortNetwork(t *testing.T) {
	entries := []models.NetworkRequest{
		{URL: "https://a.com/fast", Duration: 50},
		{URL: "data:image/png;base64,AAAA", Duration: 10},
		{URL: "https://a.com/slow", Duration: 2000},
		{URL: "https://a.com/failed", Duration: 0},
	}

	got := filterSortNetwork(entries)
	if len(got) != 3 {
		t.Fatalf("expected data URI dropped, got %d entries", len(got))
	}
	want := []string{"https://a.com/failed", "https://a.com/slow", "https://a.com/fast"}
	for i, u := range want {
		if got[i].URL != u {
			t.Errorf("position %d: expected %q, got %q", i, u, got[i].URL)
		}
	}
}

func TestConsolePriority(t *testing.T) {
	tests := []struct {
		level    string
		expected int
	}{
		{level: "error", expected: 3},
		{level: "ERROR", expected: 3},
		{level: "warn", expected: 2},
		{level: "warning", expected: 2},
		{level: "info", expected: 1},
		{level: "debug", expected: 1},
		{level: "log", expected: 1},
	}
	for _, tt := range tests {
		if got := consolePriority(tt.level); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.level, tt.expected, got)
		}
	}
}
