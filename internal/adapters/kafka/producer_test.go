package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerPublish(t *testing.T) {
	writers := map[string]*fakeWriter{}
	p := NewProducerWithWriter(func(topic string) MessageWriter {
		w := &fakeWriter{}
		writers[topic] = w
		return w
	})

	event := map[string]string{"company": "Acme"}
	require.NoError(t, p.Publish(context.Background(), "analysis.completed", "id-1", event))
	require.NoError(t, p.Publish(context.Background(), "analysis.completed", "id-2", event))

	require.Len(t, writers, 1, "writer is reused per topic")
	w := writers["analysis.completed"]
	require.Len(t, w.messages, 2)
	assert.Equal(t, "id-1", string(w.messages[0].Key))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, "Acme", decoded["company"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducerPublishError(t *testing.T) {
	p := NewProducerWithWriter(func(string) MessageWriter {
		return &fakeWriter{writeErr: errors.New("broker unavailable")}
	})

	err := p.Publish(context.Background(), "t", "k", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to t")
}

func TestProducerRejectsUnencodableEvent(t *testing.T) {
	p := NewProducerWithWriter(func(string) MessageWriter { return &fakeWriter{} })

	err := p.Publish(context.Background(), "t", "k", make(chan int))
	require.Error(t, err)
}
