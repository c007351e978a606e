package outbox

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	entry := Entry{
		ID:          uuid.New(),
		EventType:   "sold",
		AggregateID: "cert-1",
		Payload:     []byte(`{"price":100}`),
		CreatedAt:   time.Now(),
	}
	require.NoError(t, p.Publish(context.Background(), []Entry{entry}))
	require.NoError(t, p.Close())

	out := buf.String()
	assert.Contains(t, out, `"event_type":"sold"`)
	assert.Contains(t, out, `"aggregate_id":"cert-1"`)
	assert.Contains(t, out, entry.ID.String())
}
