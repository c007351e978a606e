package producer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"offsetledger/internal/outbox"
)

func TestToRecord(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := toRecord("ledger.events", outbox.Entry{
		ID:          id,
		EventType:   "Sold",
		AggregateID: "listing-1",
		Payload:     []byte(`{"price":5}`),
		CreatedAt:   created,
	})

	assert.Equal(t, "ledger.events", rec.Topic)
	assert.Equal(t, []byte("listing-1"), rec.Key)
	assert.Equal(t, []byte(`{"price":5}`), rec.Value)
	assert.Equal(t, created, rec.Timestamp)
	assert.Len(t, rec.Headers, 2)
	assert.Equal(t, HeaderEventID, rec.Headers[0].Key)
	assert.Equal(t, id.String(), string(rec.Headers[0].Value))
	assert.Equal(t, "Sold", string(rec.Headers[1].Value))
}
