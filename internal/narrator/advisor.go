// Economic advisor chat — answers operator questions against the current
// snapshot.
package narrator

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/mini-economy/internal/engine"
)

const advisorSystemPrompt = `You are the city's chief economic advisor. Answer the operator's question in 2-4 sentences using only the attached snapshot data. Flag risks plainly: a credit crunch, runaway inflation, or mass bankruptcy deserves a blunt warning. Never invent figures.`

// Advise answers one question about the economy. The snapshot is attached
// as JSON so the model reasons from real figures.
func Advise(client *Client, question string, snap engine.EconomicSnapshot) (string, error) {
	if !client.Enabled() {
		return "", fmt.Errorf("narrator client not configured")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	prompt := fmt.Sprintf("Snapshot:\n%s\n\nQuestion: %s", data, question)
	return client.Complete(advisorSystemPrompt, prompt, 400)
}
