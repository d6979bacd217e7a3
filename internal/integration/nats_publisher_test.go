package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return c.err
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublishImport(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "qreview.imports")

	start := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)
	discharge := 2.4
	err := p.PublishImport(context.Background(), ImportEvent{
		Source:     "export.tsv",
		Status:     "ParsedAndValid",
		VisitKey:   "0123-20230501t080000z",
		Location:   "0123",
		Start:      &start,
		Discharge:  &discharge,
		Verticals:  12,
		ImportedAt: start,
	})
	require.NoError(t, err)

	assert.Equal(t, "qreview.imports", conn.subject)

	var got ImportEvent
	require.NoError(t, json.Unmarshal(conn.data, &got))
	_, err = uuid.Parse(got.ID)
	assert.NoError(t, err, "an ID is assigned")
	assert.Equal(t, "0123", got.Location)
	assert.Equal(t, 12, got.Verticals)
	assert.Nil(t, got.End)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &raw))
	assert.NotContains(t, raw, "message")
	assert.Contains(t, raw, "visit_key")

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestPublishImportKeepsID(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "s")

	require.NoError(t, p.PublishImport(context.Background(), ImportEvent{ID: "fixed"}))
	assert.Contains(t, string(conn.data), `"id":"fixed"`)
}

func TestPublishImportErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("connection closed")}
	p := newNATSPublisher(conn, "s")

	err := p.PublishImport(context.Background(), ImportEvent{})
	assert.ErrorContains(t, err, "failed to publish import event")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.PublishImport(ctx, ImportEvent{}), context.Canceled)
}
