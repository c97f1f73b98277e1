package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type fakeRetriever struct {
	chunks []RetrievedChunk
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, userID uuid.UUID, collectionID *uuid.UUID, topK int) []RetrievedChunk {
	return f.chunks
}

func (f *fakeRetriever) RetrieveForFlashcardReview(ctx context.Context, title, content string, userID uuid.UUID, collectionID *uuid.UUID) []RetrievedChunk {
	return f.chunks
}

func sampleChunks() []RetrievedChunk {
	return []RetrievedChunk{
		{
			Content:  "The mitochondrion is the site of cellular respiration.",
			Metadata: map[string]any{"source": "Cell Biology.pdf", "chunk_index": 2},
			Score:    0.12,
		},
		{
			Content:  strings.Repeat("long chunk text ", 20), // over 200 chars
			Metadata: map[string]any{"source": "Notes.txt", "chunk_index": 0},
			Score:    0.30,
		},
	}
}

func TestGenerateReviewExplanation(t *testing.T) {
	var gotUser string
	ai := &fakeOpenAI{
		textFn: func(ctx context.Context, system, user string) (string, error) {
			gotUser = user
			return "The **mitochondrion** produces ATP [Source: Cell Biology.pdf].", nil
		},
	}
	svc := NewAssistService(testLogger(t), ai, &fakeRetriever{chunks: sampleChunks()})

	res, err := svc.GenerateReviewExplanation(context.Background(), "Mitochondria", "Powerhouse of the cell", uuid.New(), nil)
	if err != nil {
		t.Fatalf("GenerateReviewExplanation: %v", err)
	}

	if !strings.Contains(gotUser, "[Excerpt 1 - Source: Cell Biology.pdf]") {
		t.Fatalf("prompt must carry formatted excerpts, got:\n%s", gotUser)
	}
	if len(res.SourceChunks) != 2 {
		t.Fatalf("source chunks: want 2, got %d", len(res.SourceChunks))
	}
	if res.SourceChunks[0].DocumentTitle != "Cell Biology.pdf" {
		t.Fatalf("source title: got %q", res.SourceChunks[0].DocumentTitle)
	}
	long := res.SourceChunks[1].Excerpt
	if len([]rune(long)) != sourceExcerptLimit+3 || !strings.HasSuffix(long, "...") {
		t.Fatalf("long excerpts must truncate to %d chars plus ellipsis, got %d", sourceExcerptLimit, len(long))
	}
	// 7 words, doubled
	if res.TokensUsed != 14 {
		t.Fatalf("token estimate: want 14, got %d", res.TokensUsed)
	}
}

func TestGenerateReviewExplanationNoChunks(t *testing.T) {
	var gotUser string
	ai := &fakeOpenAI{
		textFn: func(ctx context.Context, system, user string) (string, error) {
			gotUser = user
			return insufficientCoverageMsg, nil
		},
	}
	svc := NewAssistService(testLogger(t), ai, &fakeRetriever{})

	res, err := svc.GenerateReviewExplanation(context.Background(), "Quantum tunneling", "A wave effect", uuid.New(), nil)
	if err != nil {
		t.Fatalf("GenerateReviewExplanation: %v", err)
	}
	if !strings.Contains(gotUser, noContextFallback) {
		t.Fatalf("prompt must state that no excerpts were found")
	}
	if len(res.SourceChunks) != 0 {
		t.Fatalf("no chunks retrieved means no source citations")
	}
}

func TestGenerateCorrectiveFlashcards(t *testing.T) {
	valid := []any{
		map[string]any{"title": "The {{c1::mitochondrion}} makes ATP", "content": "mitochondrion", "card_type": "cloze"},
		map[string]any{"title": "Powerhouse of the cell", "content": "What is the mitochondrion?", "card_type": "reverse"},
		map[string]any{"title": "Which organelle makes ATP? A) nucleus B) mitochondrion C) ribosome D) golgi", "content": "Correct: B) mitochondrion", "card_type": "mcq"},
	}

	cases := []struct {
		name string
		resp map[string]any
		err  error
		want int
	}{
		{name: "valid set", resp: map[string]any{"flashcards": valid}, want: 3},
		{name: "provider error", err: fmt.Errorf("rate limited"), want: 0},
		{name: "too few cards", resp: map[string]any{"flashcards": valid[:2]}, want: 0},
		{name: "wrong type order", resp: map[string]any{"flashcards": []any{valid[1], valid[0], valid[2]}}, want: 0},
		{name: "empty content", resp: map[string]any{"flashcards": []any{
			valid[0], valid[1],
			map[string]any{"title": "q", "content": "", "card_type": "mcq"},
		}}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ai := &fakeOpenAI{
				jsonFn: func(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
					return tc.resp, tc.err
				},
			}
			svc := NewAssistService(testLogger(t), ai, &fakeRetriever{})

			cards := svc.GenerateCorrectiveFlashcards(context.Background(), "t", "c", "expl", "ctx")
			if len(cards) != tc.want {
				t.Fatalf("cards: want %d, got %d", tc.want, len(cards))
			}
			if tc.want == 3 {
				for i, wantType := range []string{"cloze", "reverse", "mcq"} {
					if cards[i].CardType != wantType {
						t.Fatalf("card %d type: want %q, got %q", i, wantType, cards[i].CardType)
					}
				}
			}
		})
	}
}

func TestGenerateContextualFlashcards(t *testing.T) {
	ai := &fakeOpenAI{
		textFn: func(ctx context.Context, system, user string) (string, error) {
			return strings.Join([]string{
				"- What is osmosis? | Movement of water across a membrane",
				"- Define diffusion | Passive movement of particles",
				"a bare line without a pipe",
				"",
				"- Extra card | Should be cut by the limit",
			}, "\n"), nil
		},
	}
	svc := NewAssistService(testLogger(t), ai, &fakeRetriever{chunks: sampleChunks()})

	cards, err := svc.GenerateContextualFlashcards(context.Background(), "osmosis", uuid.New(), nil, 3)
	if err != nil {
		t.Fatalf("GenerateContextualFlashcards: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("cards: want 3, got %d", len(cards))
	}
	if cards[0].Title != "What is osmosis?" || cards[0].Content != "Movement of water across a membrane" {
		t.Fatalf("unexpected first card: %+v", cards[0])
	}
	if cards[2].Title != "Flashcard" || cards[2].Content != "a bare line without a pipe" {
		t.Fatalf("pipe-less line must fall back to a generic title: %+v", cards[2])
	}
}

func TestGenerateContextualFlashcardsClampsCount(t *testing.T) {
	var gotSystem string
	ai := &fakeOpenAI{
		textFn: func(ctx context.Context, system, user string) (string, error) {
			gotSystem = system
			return "- q | a", nil
		},
	}
	svc := NewAssistService(testLogger(t), ai, &fakeRetriever{})

	if _, err := svc.GenerateContextualFlashcards(context.Background(), "topic", uuid.New(), nil, 99); err != nil {
		t.Fatalf("GenerateContextualFlashcards: %v", err)
	}
	if !strings.Contains(gotSystem, "Generate 10 flashcards.") {
		t.Fatalf("count must clamp to 10, prompt was:\n%s", gotSystem)
	}

	if _, err := svc.GenerateContextualFlashcards(context.Background(), "topic", uuid.New(), nil, 0); err != nil {
		t.Fatalf("GenerateContextualFlashcards: %v", err)
	}
	if !strings.Contains(gotSystem, "Generate 1 flashcards.") {
		t.Fatalf("count must clamp to 1, prompt was:\n%s", gotSystem)
	}
}

func TestGenerateFullReviewAssist(t *testing.T) {
	ai := &fakeOpenAI{
		textFn: func(ctx context.Context, system, user string) (string, error) {
			return "Grounded explanation here.", nil
		},
		jsonFn: func(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("provider down")
		},
	}
	svc := NewAssistService(testLogger(t), ai, &fakeRetriever{chunks: sampleChunks()})

	full, err := svc.GenerateFullReviewAssist(context.Background(), "t", "c", uuid.New(), nil)
	if err != nil {
		t.Fatalf("GenerateFullReviewAssist: %v", err)
	}
	if full.Explanation != "Grounded explanation here." {
		t.Fatalf("explanation lost: %q", full.Explanation)
	}
	// corrective failure degrades to an empty set without failing the assist
	if len(full.CorrectiveFlashcards) != 0 {
		t.Fatalf("corrective cards: want 0, got %d", len(full.CorrectiveFlashcards))
	}
	if full.ModelUsed != "test-model" {
		t.Fatalf("model used: got %q", full.ModelUsed)
	}
}
