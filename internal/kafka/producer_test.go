package kafka

import (
	"testing"
	"time"

	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeUsage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []model.UsageEvent{
		{ID: "01HZX0000000000000000000A1", APIKey: "k1", Endpoint: "GET /list_tables", CreatedAt: at},
		{ID: "01HZX0000000000000000000A2", APIKey: "k2", Endpoint: "POST /create_table", CreatedAt: at},
	}

	msgs, err := EncodeUsage(events)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	for i, m := range msgs {
		assert.Equal(t, events[i].APIKey, string(m.Key))
		assert.Equal(t, at, m.Time)

		ev, err := model.DecodeEnvelope(m.Value)
		require.NoError(t, err)
		assert.Equal(t, events[i].ID, ev.ID)
		assert.Equal(t, events[i].Endpoint, ev.Endpoint)
		assert.True(t, at.Equal(ev.CreatedAt))
	}
}
