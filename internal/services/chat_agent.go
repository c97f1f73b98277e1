package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// Agent tool names. The model picks from this closed set; the user and
// collection scope are injected server-side and never exposed to the model.
const (
	toolSearchMaterials  = "search_materials"
	toolListFlashcards   = "list_my_flashcards"
	toolCreateFlashcard  = "create_flashcard"
	toolGetStudySummary  = "get_study_summary"
	toolSearchWeb        = "search_web"
	maxAgentTurns        = 6
	chatHistoryWindow    = 16 // 8 exchanges
	agentSearchTopK      = 4
	flashcardListLimit   = 10
	flashcardExcerptSize = 100
)

var agentToolNames = []string{
	toolSearchMaterials,
	toolListFlashcards,
	toolCreateFlashcard,
	toolGetStudySummary,
	toolSearchWeb,
}

const chatSystemPrompt = `You are an intelligent study tutor helping a student learn effectively from their own materials.

Available tools:
- search_materials: semantic search over the student's uploaded documents (argument: query)
- list_my_flashcards: list the student's flashcards, optionally filtered by topic (argument: topic, may be empty)
- create_flashcard: save a new flashcard for the student (arguments: title, content, card_type one of standard/cloze/reverse/mcq)
- get_study_summary: progress statistics for the student
- search_web: search the public web when the student's materials don't cover the question (argument: query)

Guidelines:
- Answer clearly and didactically.
- Use search_materials before answering questions about study content.
- When you create a flashcard, confirm its title and a snippet of its content.
- If no relevant material exists, answer from general knowledge and say so.
- Keep answers focused; go deeper only when asked.

Respond with JSON on every turn. To call tools, fill tool_calls and leave your final answer for a later turn. When you have everything you need, return the final answer with an empty tool_calls array.`

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResult struct {
	Answer    string   `json:"answer"`
	ToolsUsed []string `json:"tools_used"`
}

type agentToolCall struct {
	Tool     string `json:"tool"`
	Query    string `json:"query"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	CardType string `json:"card_type"`
	Topic    string `json:"topic"`
}

type agentTurn struct {
	Answer    string          `json:"answer"`
	ToolCalls []agentToolCall `json:"tool_calls"`
}

// ChatAgentService runs the tool-calling study tutor. Each run is bounded:
// at most maxAgentTurns model calls, after which the last answer stands.
type ChatAgentService interface {
	Run(ctx context.Context, message string, userID uuid.UUID, collectionID *uuid.UUID, history []ChatMessage) (*ChatResult, error)
}

type chatAgentService struct {
	log        *logger.Logger
	ai         OpenAIClient
	retriever  RetrieverService
	flashcards repos.FlashcardRepo
	reviews    repos.ReviewLogRepo
	web        WebSearchService
}

func NewChatAgentService(
	log *logger.Logger,
	ai OpenAIClient,
	retriever RetrieverService,
	flashcards repos.FlashcardRepo,
	reviews repos.ReviewLogRepo,
	web WebSearchService,
) ChatAgentService {
	return &chatAgentService{
		log:        log.With("service", "ChatAgentService"),
		ai:         ai,
		retriever:  retriever,
		flashcards: flashcards,
		reviews:    reviews,
		web:        web,
	}
}

func agentTurnSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
			"tool_calls": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tool":      map[string]any{"type": "string", "enum": agentToolNames},
						"query":     map[string]any{"type": "string"},
						"title":     map[string]any{"type": "string"},
						"content":   map[string]any{"type": "string"},
						"card_type": map[string]any{"type": "string"},
						"topic":     map[string]any{"type": "string"},
					},
					"required":             []string{"tool"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"answer", "tool_calls"},
		"additionalProperties": false,
	}
}

func (s *chatAgentService) Run(ctx context.Context, message string, userID uuid.UUID, collectionID *uuid.UUID, history []ChatMessage) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("message required")
	}

	var convo strings.Builder
	if len(history) > chatHistoryWindow {
		history = history[len(history)-chatHistoryWindow:]
	}
	for _, m := range history {
		if m.Role == "user" {
			convo.WriteString("Student: ")
		} else {
			convo.WriteString("Tutor: ")
		}
		convo.WriteString(m.Content)
		convo.WriteString("\n")
	}
	convo.WriteString("Student: ")
	convo.WriteString(message)
	convo.WriteString("\n")

	var toolsUsed []string
	seen := map[string]bool{}
	lastAnswer := ""

	for turn := 0; turn < maxAgentTurns; turn++ {
		raw, err := s.ai.GenerateJSON(ctx, chatSystemPrompt, convo.String(), "agent_turn", agentTurnSchema())
		if err != nil {
			return nil, fmt.Errorf("agent turn: %w", err)
		}

		parsed, err := decodeAgentTurn(raw)
		if err != nil {
			return nil, fmt.Errorf("agent turn: %w", err)
		}
		lastAnswer = parsed.Answer

		if len(parsed.ToolCalls) == 0 {
			return &ChatResult{Answer: parsed.Answer, ToolsUsed: dedupedTools(toolsUsed)}, nil
		}

		for _, call := range parsed.ToolCalls {
			if !seen[call.Tool] {
				seen[call.Tool] = true
				toolsUsed = append(toolsUsed, call.Tool)
			}
			result := s.executeTool(ctx, call, userID, collectionID)
			convo.WriteString(fmt.Sprintf("Tool result (%s):\n%s\n", call.Tool, result))
		}
		convo.WriteString("Continue. Use more tools if needed, or give the final answer with empty tool_calls.\n")
	}

	s.log.Warn("Agent hit turn limit",
		"user_id", userID.String(),
		"turns", maxAgentTurns,
	)
	if lastAnswer == "" {
		lastAnswer = "I couldn't finish working through that. Could you rephrase or narrow the question?"
	}
	return &ChatResult{Answer: lastAnswer, ToolsUsed: dedupedTools(toolsUsed)}, nil
}

func decodeAgentTurn(raw map[string]any) (*agentTurn, error) {
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var turn agentTurn
	if err := json.Unmarshal(blob, &turn); err != nil {
		return nil, err
	}
	for _, call := range turn.ToolCalls {
		if !validToolName(call.Tool) {
			return nil, fmt.Errorf("unknown tool %q", call.Tool)
		}
	}
	return &turn, nil
}

func validToolName(name string) bool {
	for _, n := range agentToolNames {
		if n == name {
			return true
		}
	}
	return false
}

func dedupedTools(tools []string) []string {
	if tools == nil {
		return []string{}
	}
	return tools
}

func (s *chatAgentService) executeTool(ctx context.Context, call agentToolCall, userID uuid.UUID, collectionID *uuid.UUID) string {
	switch call.Tool {
	case toolSearchMaterials:
		return s.toolSearchMaterials(ctx, call.Query, userID, collectionID)
	case toolListFlashcards:
		return s.toolListFlashcards(ctx, call.Topic, userID)
	case toolCreateFlashcard:
		return s.toolCreateFlashcard(ctx, call, userID, collectionID)
	case toolGetStudySummary:
		return s.toolStudySummary(ctx, userID)
	case toolSearchWeb:
		return s.toolSearchWeb(ctx, call.Query)
	default:
		return "Unknown tool."
	}
}

func (s *chatAgentService) toolSearchMaterials(ctx context.Context, query string, userID uuid.UUID, collectionID *uuid.UUID) string {
	chunks := s.retriever.Retrieve(ctx, query, userID, collectionID, agentSearchTopK)
	if len(chunks) == 0 {
		return "No relevant excerpts found in your materials for this query."
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		title := stringMeta(c.Metadata, "source")
		if title == "" {
			title = "Material"
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", title, c.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (s *chatAgentService) toolListFlashcards(ctx context.Context, topic string, userID uuid.UUID) string {
	topic = strings.TrimSpace(topic)

	var cards []*types.Flashcard
	var err error
	if topic == "" {
		cards, err = s.flashcards.GetByUser(ctx, nil, userID, flashcardListLimit)
	} else {
		cards, err = s.flashcards.SearchByUserAndTopic(ctx, nil, userID, topic, flashcardListLimit)
	}
	if err != nil {
		s.log.Error("Flashcard listing failed", "error", err.Error())
		return "Could not load your flashcards right now."
	}

	if len(cards) == 0 {
		if topic != "" {
			return fmt.Sprintf("No flashcards found about '%s'.", topic)
		}
		return "You don't have any flashcards yet."
	}

	lines := make([]string, 0, len(cards))
	for _, c := range cards {
		excerpt := c.Content
		if len([]rune(excerpt)) > flashcardExcerptSize {
			excerpt = string([]rune(excerpt)[:flashcardExcerptSize]) + "..."
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", c.CardType, c.Title, excerpt))
	}
	return fmt.Sprintf("Flashcards found (%d):\n%s", len(lines), strings.Join(lines, "\n"))
}

func (s *chatAgentService) toolCreateFlashcard(ctx context.Context, call agentToolCall, userID uuid.UUID, collectionID *uuid.UUID) string {
	if strings.TrimSpace(call.Title) == "" || strings.TrimSpace(call.Content) == "" {
		return "A flashcard needs both a title and a content."
	}
	cardType := call.CardType
	if !types.ValidCardType(cardType) {
		cardType = types.CardTypeStandard
	}

	card, err := s.flashcards.Create(ctx, nil, &types.Flashcard{
		UserID:       userID,
		Title:        call.Title,
		Content:      call.Content,
		CardType:     cardType,
		CollectionID: collectionID,
	})
	if err != nil {
		s.log.Error("Agent flashcard creation failed", "error", err.Error())
		return "Could not create the flashcard. Try again."
	}
	return fmt.Sprintf("Flashcard created!\n  Title: %s\n  Type: %s\n  ID: %s", card.Title, card.CardType, card.ID)
}

func (s *chatAgentService) toolStudySummary(ctx context.Context, userID uuid.UUID) string {
	total, err := s.flashcards.CountByUser(ctx, nil, userID)
	if err != nil {
		return "Could not load your study summary right now."
	}
	totalReviews, err := s.reviews.CountByUser(ctx, nil, userID)
	if err != nil {
		return "Could not load your study summary right now."
	}
	correct, err := s.reviews.CountCorrectByUser(ctx, nil, userID)
	if err != nil {
		return "Could not load your study summary right now."
	}

	accuracy := "no reviews yet"
	var wrong int64
	if totalReviews > 0 {
		accuracy = fmt.Sprintf("%.1f%%", float64(correct)/float64(totalReviews)*100)
		wrong = totalReviews - correct
	}

	return fmt.Sprintf(
		"Your study progress:\n  Flashcards: %d\n  Reviews: %d\n  Correct: %d  |  Wrong: %d\n  Accuracy: %s",
		total, totalReviews, correct, wrong, accuracy,
	)
}

func (s *chatAgentService) toolSearchWeb(ctx context.Context, query string) string {
	results, err := s.web.Search(ctx, query)
	if err != nil {
		s.log.Error("Web search tool failed", "error", err.Error())
		return "Web search is unavailable right now."
	}
	if len(results) == 0 {
		return "No web results found for this query."
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		line := fmt.Sprintf("- %s (%s)", r.Title, r.URL)
		if r.Snippet != "" {
			line += "\n  " + r.Snippet
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
