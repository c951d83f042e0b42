package chroma

import (
	"context"
	"fmt"
	"os"

	"eventscout-backend/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

// InterestIndex stores user interests as embedded documents and answers
// nearest-neighbour queries for the relevance filter. Every query is
// scoped to one user through a metadata filter.
type InterestIndex struct {
	client     chroma.Client
	embedFunc  *gemini.GeminiEmbeddingFunction
	collection chroma.Collection
}

func NewInterestIndex(cfg *config.Config) (*InterestIndex, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}

	// The embedding function reads the Gemini key from the environment
	if len(cfg.GeminiAPIKeys) > 0 {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiAPIKeys[0])
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	if cfg.ChromaDatabase != "" && cfg.ChromaTenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	} else {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(
		context.Background(),
		"interests",
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &InterestIndex{
		client:     client,
		embedFunc:  embedFunc,
		collection: collection,
	}, nil
}

// UpsertInterest indexes one interest string for a user. The interest id
// doubles as document id, so re-running the seed never duplicates.
func (c *InterestIndex) UpsertInterest(ctx context.Context, userID, interestID, text string) error {
	metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
		"user_id": userID,
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = c.collection.Upsert(
		ctx,
		chroma.WithIDs(chroma.DocumentID(interestID)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert interest embedding: %w", err)
	}
	return nil
}

// NearestDistance returns the smallest embedding distance between the
// text and any of the user's interests. ok is false when the user has
// nothing indexed.
func (c *InterestIndex) NearestDistance(ctx context.Context, userID, text string) (float64, bool, error) {
	if len(text) > 10000 {
		// Embedding models have token limits
		text = text[:10000]
	}

	results, err := c.collection.Query(
		ctx,
		chroma.WithQueryTexts(text),
		chroma.WithNResults(1),
		chroma.WithWhereQuery(chroma.EqString("user_id", userID)),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query collection: %w", err)
	}

	if results == nil || results.CountGroups() == 0 {
		return 0, false, nil
	}

	distanceGroups := results.GetDistancesGroups()
	if len(distanceGroups) == 0 || len(distanceGroups[0]) == 0 {
		return 0, false, nil
	}

	return float64(distanceGroups[0][0]), true, nil
}
