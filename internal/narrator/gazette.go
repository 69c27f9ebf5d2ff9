// Gazette generation — converts the day's economic aggregates and events
// into short narrative prose.
package narrator

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-economy/internal/engine"
)

const gazetteSystemPrompt = `You are the editor of a small city's daily trade gazette. Write 3-4 short paragraphs of period-flavored financial journalism from the figures and events given. Be concrete: name goods, prices, and firms when they appear in the material. Do not invent numbers and do not reference the simulation.`

// WriteGazette produces the day's paper from a snapshot. Returns an error
// when the client is disabled or the call fails; callers treat either as
// "no paper today".
func WriteGazette(client *Client, snap engine.EconomicSnapshot) (string, error) {
	if !client.Enabled() {
		return "", fmt.Errorf("narrator client not configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Day %d. Population %d, unemployment %.1f%%.\n",
		snap.Day, snap.Stats.Population, snap.Stats.Unemployment*100)
	fmt.Fprintf(&b, "Money supply %s gold, policy rate %.2f%%, fiscal stance %s.\n",
		humanize.CommafWithDigits(snap.Money.Total, 0), snap.PolicyRate*100, snap.FiscalStance)

	b.WriteString("\nMarket closes:\n")
	for _, g := range snap.Goods {
		if g.Total == 0 && g.Produced == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s at %.2f (produced %.0f, spoiled %.0f)\n",
			g.Good, g.LastPrice, g.Produced, g.Spoiled)
	}

	if len(snap.RecentEvents) > 0 {
		b.WriteString("\nRecent events:\n")
		for _, ev := range snap.RecentEvents {
			fmt.Fprintf(&b, "- [%s] %s\n", ev.Category, ev.Description)
		}
	}

	b.WriteString("\nWrite today's edition.")
	return client.Complete(gazetteSystemPrompt, b.String(), 600)
}
