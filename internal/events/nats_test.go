package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamwears/reeldiary/internal/models"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "diary.mutations.rate", Subject(models.OpRate))
	assert.Equal(t, "diary.mutations.add_watch_later", Subject(models.OpAddWatchLater))
}

func TestEnvelopeEncoding(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env := NewEnvelope(models.MutationEvent{
		ID:         "01HX",
		Op:         models.OpRate,
		UserID:     "alice",
		EntityName: "Inception",
		Kinds:      []models.Kind{models.KindMovies},
		Score:      4.5,
		At:         at,
	})
	assert.NotEmpty(t, env.CorrelationID)

	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "diary.mutations.rate", decoded["type"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "alice", payload["userId"])
	assert.Equal(t, 4.5, payload["score"])
}

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", log.New(io.Discard, "", 0))
	assert.NoError(t, p.PublishMutation(context.Background(), models.MutationEvent{Op: models.OpRate}))
	assert.NoError(t, p.Close())
}

func TestNewPublisherUnreachableFallsBack(t *testing.T) {
	p := NewPublisher("nats://127.0.0.1:1", log.New(io.Discard, "", 0))
	_, ok := p.(noop)
	assert.True(t, ok)
}
