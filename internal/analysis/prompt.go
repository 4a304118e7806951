package analysis

import (
	"strings"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
)

// SystemPrompt is sent to every provider
const SystemPrompt = "You are an expert text-processing assistant."

// Prompt is the system/user pair sent to a provider
type Prompt struct {
	System string
	User   string
}

// BuildPrompt joins the task instruction and the trimmed source text with a
// blank line
func BuildPrompt(task Task, text string) Prompt {
	return Prompt{
		System: SystemPrompt,
		User:   task.Instruction() + "\n\n" + strings.TrimSpace(text),
	}
}

// Messages returns the chat shape of the prompt
func (p Prompt) Messages() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: p.System},
		{Role: ai.RoleUser, Content: p.User},
	}
}

// Flatten renders the prompt as a single completion string
func (p Prompt) Flatten() string {
	return p.System + "\n\nUser:\n" + p.User + "\n\nAssistant:"
}
