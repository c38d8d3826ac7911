package natsjs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type fakeJetStream struct {
	published  []*nats.Msg
	publishErr error
	infoErr    error
	added      []*nats.StreamConfig
}

func (f *fakeJetStream) PublishMsg(m *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, m)
	return &nats.PubAck{Stream: defaultStream, Sequence: uint64(len(f.published))}, nil
}

func (f *fakeJetStream) StreamInfo(string, ...nats.JSOpt) (*nats.StreamInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &nats.StreamInfo{}, nil
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added = append(f.added, cfg)
	return &nats.StreamInfo{Config: *cfg}, nil
}

func TestSinkSendPublishesBySubject(t *testing.T) {
	js := &fakeJetStream{}
	sink := newSink(js, Config{})
	saleID := uuid.New()

	require.Equal(t, "nats", sink.Name())
	require.NoError(t, sink.Send(context.Background(), domain.NewSaleCreatedEvent(saleID, "S-001")))

	require.Len(t, js.published, 1)
	msg := js.published[0]
	require.Equal(t, "sales.sale.created", msg.Subject)
	require.Equal(t, "sale.created", msg.Header.Get(headerEventType))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.Equal(t, saleID, decoded.SaleID)
	require.Equal(t, "S-001", decoded.SaleNumber)
}

func TestSinkSendError(t *testing.T) {
	js := &fakeJetStream{publishErr: nats.ErrNoResponders}
	sink := newSink(js, Config{SubjectPrefix: "shop."})

	err := sink.Send(context.Background(), domain.NewSaleCancelledEvent(uuid.New(), "S-002"))
	require.ErrorIs(t, err, nats.ErrNoResponders)
	require.Contains(t, err.Error(), "shop.sale.cancelled")
}

func TestEnsureStream(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		js := &fakeJetStream{}
		require.NoError(t, newSink(js, Config{}).ensureStream())
		require.Empty(t, js.added)
	})

	t.Run("created when missing", func(t *testing.T) {
		js := &fakeJetStream{infoErr: nats.ErrStreamNotFound}
		require.NoError(t, newSink(js, Config{Stream: "S"}).ensureStream())
		require.Len(t, js.added, 1)
		require.Equal(t, "S", js.added[0].Name)
		require.Equal(t, []string{"sales.>"}, js.added[0].Subjects)
	})

	t.Run("unexpected error", func(t *testing.T) {
		js := &fakeJetStream{infoErr: errors.New("timeout")}
		require.Error(t, newSink(js, Config{}).ensureStream())
		require.Empty(t, js.added)
	})
}
