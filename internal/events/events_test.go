package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_KeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.PublishOrderPaid(context.Background(), OrderPaid{OrderID: "o-1", Gateway: "razorpay", Amount: 2000, Currency: "INR"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, TypeOrderPaid, string(w.msgs[0].Headers[0].Value))

	var ev OrderPaid
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, int64(2000), ev.Amount)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}}

	err := p.PublishOrderPaid(context.Background(), OrderPaid{OrderID: "o-1"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "o-1")
}
