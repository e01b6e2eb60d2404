package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"coldcall-platform/internal/contact"
	"coldcall-platform/internal/prompt"
)

// Generator produces the next assistant utterance for a fully assembled
// prompt. Implementations live in internal/llm; tests inject stubs.
type Generator interface {
	Generate(ctx context.Context, promptText string, maxTokens int, temperature float64) (string, error)
}

// optOutKeywords end the conversation immediately, without consulting the
// generator. Matching is a case-insensitive substring check.
var optOutKeywords = []string{"stop", "remove", "unsubscribe", "do not call", "take me off"}

const (
	// optOutAck is the fixed reply to an opt-out request.
	optOutAck = "I understand. I'll remove you from our list immediately. Thank you for your time. Have a great day!"

	// generationFallback replaces any generator failure; capability errors
	// never propagate to the orchestrator.
	generationFallback = "I apologize, I'm having technical difficulties. Let me transfer you to a human representative."

	// historyWindow bounds how many prior turns feed the generator.
	historyWindow = 5

	generationMaxTokens   = 200
	generationTemperature = 0.7

	agentName = "AI Agent"
)

// Engine owns all in-flight conversations, keyed by call id. It is safe for
// concurrent use: the orchestrator starts and ends conversations while
// webhook handlers feed user speech in.
type Engine struct {
	prompts *prompt.Store
	gen     Generator
	log     *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	active map[string]*State
}

func NewEngine(prompts *prompt.Store, gen Generator, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		prompts: prompts,
		gen:     gen,
		log:     log,
		now:     time.Now,
		active:  make(map[string]*State),
	}
}

// Start registers a new conversation and synthesizes the opening assistant
// turn. Call ids are attempt-unique, so an existing entry for the same id is
// a caller bug and gets replaced.
func (e *Engine) Start(ctx context.Context, c contact.Contact, callID string) *State {
	st := &State{
		CallID:      callID,
		Contact:     c,
		CurrentStep: "introduction",
		Active:      true,
	}

	opening := e.generate(ctx, st, "")
	st.History = append(st.History, Turn{Role: RoleAssistant, Content: opening, Timestamp: e.now()})

	e.mu.Lock()
	e.active[callID] = st
	e.mu.Unlock()

	e.log.Info("conversation started", "call_id", callID, "phone", c.PhoneNumber, "prompt", c.PromptName)
	return st
}

// Opening returns the first assistant turn of an active conversation, for
// the webhook that answers the call.
func (e *Engine) Opening(callID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.active[callID]
	if !ok || !st.Active || len(st.History) == 0 {
		return "", false
	}
	return st.History[0].Content, true
}

// IsActive reports whether the conversation exists and has not been ended
// by an opt-out.
func (e *Engine) IsActive(callID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.active[callID]
	return ok && st.Active
}

// ProcessInput handles one user utterance. The second return is false when
// the conversation is unknown or no longer active; nothing happens then.
//
// An opt-out keyword flips the state to inactive and returns the fixed
// acknowledgment without touching the generator.
func (e *Engine) ProcessInput(ctx context.Context, callID, userInput string) (string, bool) {
	e.mu.Lock()
	st, ok := e.active[callID]
	if !ok || !st.Active {
		e.mu.Unlock()
		e.log.Warn("input for unknown or inactive conversation", "call_id", callID)
		return "", false
	}

	lower := strings.ToLower(userInput)
	for _, kw := range optOutKeywords {
		if strings.Contains(lower, kw) {
			st.OptOutRequested = true
			st.Active = false
			e.mu.Unlock()
			e.log.Info("opt-out requested", "call_id", callID, "phone", st.Contact.PhoneNumber)
			return optOutAck, true
		}
	}

	st.History = append(st.History, Turn{Role: RoleUser, Content: userInput, Timestamp: e.now()})
	e.mu.Unlock()

	// Generation suspends; the registry lock must not be held across it.
	reply := e.generate(ctx, st, userInput)

	e.mu.Lock()
	if cur, ok := e.active[callID]; ok && cur == st {
		st.History = append(st.History, Turn{Role: RoleAssistant, Content: reply, Timestamp: e.now()})
	}
	e.mu.Unlock()
	return reply, true
}

// End removes the conversation and returns its summary. A second End on the
// same id returns false; it is not an error and appends nothing anywhere.
func (e *Engine) End(callID string) (Summary, bool) {
	e.mu.Lock()
	st, ok := e.active[callID]
	if ok {
		delete(e.active, callID)
	}
	e.mu.Unlock()
	if !ok {
		e.log.Warn("end for unknown conversation", "call_id", callID)
		return Summary{}, false
	}

	e.log.Info("conversation ended", "call_id", callID, "turns", len(st.History), "opt_out", st.OptOutRequested)
	return Summary{
		CallID:          callID,
		Contact:         st.Contact,
		TurnCount:       len(st.History),
		OptOutRequested: st.OptOutRequested,
		History:         st.History,
	}, true
}

// AvailablePrompts exposes the loaded template names.
func (e *Engine) AvailablePrompts() []string { return e.prompts.Available() }

// ReloadPrompts re-reads the prompt directory.
func (e *Engine) ReloadPrompts() error { return e.prompts.Reload() }

// ValidatePromptAssignments returns a description of every contact whose
// prompt_name resolves to no loaded template. Those contacts will use the
// default template; this is a warning, not an error.
func (e *Engine) ValidatePromptAssignments(contacts []contact.Contact) []string {
	var invalid []string
	for _, c := range contacts {
		if !e.prompts.Has(c.PromptName) {
			invalid = append(invalid, fmt.Sprintf("%s (%s) - prompt: %s", c.Name, c.PhoneNumber, c.PromptName))
		}
	}
	return invalid
}

// generate assembles the full prompt (template + rolling history + latest
// input + speaking instruction) and invokes the generator. Every failure
// path returns the fixed fallback sentence.
func (e *Engine) generate(ctx context.Context, st *State, userInput string) string {
	e.mu.Lock()
	history := st.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	lines := make([]string, len(history))
	for i, t := range history {
		lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Content)
	}
	e.mu.Unlock()
	historyText := strings.Join(lines, "\n")

	base, err := e.prompts.Render(st.Contact.PromptName, prompt.Params{
		Name:                st.Contact.Name,
		Company:             st.Contact.Company,
		Email:               st.Contact.Email,
		PhoneNumber:         st.Contact.PhoneNumber,
		AgentName:           agentName,
		ConversationHistory: historyText,
		UserInput:           userInput,
	})
	if err != nil {
		e.log.Error("prompt render failed", "call_id", st.CallID, "err", err)
		return generationFallback
	}

	full := fmt.Sprintf(
		"%s\n\nCONVERSATION HISTORY:\n%s\n\nUSER INPUT: %s\n\nGenerate a natural, conversational response. Keep it under 30 seconds when spoken.",
		base, historyText, userInput,
	)

	reply, err := e.gen.Generate(ctx, full, generationMaxTokens, generationTemperature)
	if err != nil {
		e.log.Error("generation failed", "call_id", st.CallID, "err", err)
		return generationFallback
	}
	return strings.TrimSpace(reply)
}
