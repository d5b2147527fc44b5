package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	pub := New()
	id1, err := pub.Publish(ctx, "scrape.run.completed", map[string]any{"run_id": "batch_1", "fetched": 2})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(ctx, "extract.run.completed", map[string]int{"pages_processed": 3})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.JSONEq(t, `{"run_id":"batch_1","fetched":2}`, string(msgs[0].Data))
	require.Len(t, pub.ByTopic("extract.run.completed"), 1)
	require.Empty(t, pub.ByTopic("publish.run.completed"))

	msgs[0].Topic = "modified"
	require.Equal(t, "scrape.run.completed", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "topic", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	require.Empty(t, pub.Messages())
}
