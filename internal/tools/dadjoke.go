package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IMax153/netlify-ai-gateway/internal/icanhazdadjoke"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

const (
	SearchDadJokeName    = "SearchDadJoke"
	GetRandomDadJokeName = "GetRandomDadJoke"
)

// JokeSource is the part of the icanhazdadjoke client the dad-joke tools use.
type JokeSource interface {
	Random(ctx context.Context) (icanhazdadjoke.Joke, error)
	Search(ctx context.Context, term string) ([]icanhazdadjoke.Joke, error)
}

type SearchDadJokeParams struct {
	SearchTerm string `json:"searchTerm" validate:"required"`
}

type GetRandomDadJokeParams struct{}

// NewDadJokeToolkit returns the SearchDadJoke and GetRandomDadJoke tools.
func NewDadJokeToolkit(source JokeSource) *Toolkit {
	search := New(SearchDadJokeName,
		"Search for a specific type of dad joke (e.g., 'dog', 'computer', 'food'). Use this when the user wants a joke about a specific topic.",
		llm.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"searchTerm": map[string]any{
					"type":        "string",
					"description": "The topic or keyword to search for in dad jokes",
				},
			},
			"required":             []string{"searchTerm"},
			"additionalProperties": false,
		},
		func(ctx context.Context, p SearchDadJokeParams) (string, error) {
			jokes, err := source.Search(ctx, p.SearchTerm)
			if err != nil {
				slog.Error("Searching dad joke", "search_term", p.SearchTerm, "error", err)
				return "", err
			}
			if len(jokes) == 0 {
				return fmt.Sprintf("No dad jokes found for %q. Try a different search term!", p.SearchTerm), nil
			}
			return jokes[0].Joke, nil
		},
	)

	random := New(GetRandomDadJokeName,
		"Get a random dad joke. Use this for general joke requests when no specific topic is requested.",
		llm.JSONSchema{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		func(ctx context.Context, _ GetRandomDadJokeParams) (string, error) {
			joke, err := source.Random(ctx)
			if err != nil {
				slog.Error("Getting random dad joke", "error", err)
				return "", err
			}
			return joke.Joke, nil
		},
	)

	return NewToolkit(search, random)
}
