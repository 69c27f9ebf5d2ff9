// Flavor event generation — asks Haiku to invent one economic news event
// and applies it as a temporary production or wage shock.
package narrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/entropy"
)

// EventGenerator implements engine.EventSource. Poll never blocks: a
// generation request runs in the background and its result is delivered
// on a later day. A dead or slow API simply means no news.
type EventGenerator struct {
	client *Client
	rng    *entropy.Client

	// Chance is the per-day probability of requesting an event.
	Chance float64
	// Context supplies a one-line world summary for the prompt. Called on
	// the tick goroutine, so it may safely read simulation state.
	Context func() string

	mu       sync.Mutex
	pending  *engine.ExternalEvent
	inFlight bool
}

// NewEventGenerator wires the generator. A nil narrator client disables
// event generation entirely.
func NewEventGenerator(client *Client, rng *entropy.Client) *EventGenerator {
	return &EventGenerator{client: client, rng: rng, Chance: 0.10}
}

// Poll delivers a previously generated event if one arrived, and rolls
// for a new request otherwise.
func (g *EventGenerator) Poll(day uint64) *engine.ExternalEvent {
	if !g.client.Enabled() {
		return nil
	}

	g.mu.Lock()
	if ev := g.pending; ev != nil {
		g.pending = nil
		g.mu.Unlock()
		return ev
	}
	busy := g.inFlight
	g.mu.Unlock()

	if busy || g.rng.Float() >= g.Chance {
		return nil
	}

	context := ""
	if g.Context != nil {
		context = g.Context()
	}

	g.mu.Lock()
	g.inFlight = true
	g.mu.Unlock()
	go g.generate(day, context)
	return nil
}

var goodList = func() string {
	names := make([]string, 0, econ.NumGoods)
	for i := 0; i < econ.NumGoods; i++ {
		names = append(names, econ.GoodName(econ.GoodType(i)))
	}
	return strings.Join(names, ", ")
}()

const eventSystemPrompt = `You are the news desk of a small city's trade gazette. Invent one plausible economic event affecting a single good — a bumper harvest, a mine flood, a guild strike, a fashion craze.

Respond ONLY with a single JSON object:
- "target_good": one of the listed goods
- "modifier_percent": a number between -60 and 60 (negative hurts supply or wages)
- "impact": "production" or "wage"
- "description": one vivid headline sentence, no quotes inside`

// generate runs off the tick goroutine and parks its result for a later Poll.
func (g *EventGenerator) generate(day uint64, context string) {
	defer func() {
		g.mu.Lock()
		g.inFlight = false
		g.mu.Unlock()
	}()

	prompt := fmt.Sprintf("Goods: %s.\nDay %d. %s\nWhat happened today? Respond with a single JSON object.", goodList, day, context)
	text, err := g.client.Complete(eventSystemPrompt, prompt, 300)
	if err != nil {
		slog.Debug("event generation failed", "error", err)
		return
	}

	ev, err := parseEvent(text)
	if err != nil {
		slog.Debug("event parse failed", "error", err, "response", text)
		return
	}

	g.mu.Lock()
	g.pending = ev
	g.mu.Unlock()
}

func parseEvent(text string) (*engine.ExternalEvent, error) {
	// Find the JSON object in the response.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var raw struct {
		TargetGood      string  `json:"target_good"`
		ModifierPercent float64 `json:"modifier_percent"`
		Impact          string  `json:"impact"`
		Description     string  `json:"description"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}

	if _, ok := econ.GoodFromName(raw.TargetGood); !ok {
		return nil, fmt.Errorf("invalid target good: %s", raw.TargetGood)
	}
	impact := engine.ImpactProduction
	switch raw.Impact {
	case "production":
	case "wage":
		impact = engine.ImpactWage
	default:
		return nil, fmt.Errorf("invalid impact: %s", raw.Impact)
	}

	return &engine.ExternalEvent{
		TargetGood:      raw.TargetGood,
		ModifierPercent: raw.ModifierPercent,
		Impact:          impact,
		Description:     raw.Description,
	}, nil
}
