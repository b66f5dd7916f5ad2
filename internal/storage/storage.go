// Package storage persists the chunk payloads that accompany a vector index.
package storage

import (
	"context"

	"github.com/hyperjump/shiori/internal/models"
)

// PayloadStore holds one chunk per index position. Positions are 0..n-1 in insertion order.
type PayloadStore interface {
	// WritePayloads replaces the stored payloads with chunks, chunk i at position i.
	WritePayloads(ctx context.Context, chunks []models.Chunk) error
	// ReadPayloads returns every payload ordered by position.
	ReadPayloads(ctx context.Context) ([]models.Chunk, error)
	CountPayloads(ctx context.Context) (int64, error)
	Close() error
}
