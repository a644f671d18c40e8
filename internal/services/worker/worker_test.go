package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/cropsense/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
	"github.com/LeonardoBeccarini/cropsense/pkg/dedup"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeService struct {
	mu   sync.Mutex
	reqs []messages.AnalysisRequest
	err  error
}

func (f *fakeService) Handle(ctx context.Context, req messages.AnalysisRequest) (messages.AnalysisReport, messages.AnalysisCompletedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if _, ok := ctx.Deadline(); !ok {
		return messages.AnalysisReport{}, messages.AnalysisCompletedEvent{}, errors.New("no deadline")
	}
	ev := messages.AnalysisCompletedEvent{RequestID: req.RequestID, PinCode: req.PinCode, Crop: req.Crop, Status: messages.StatusOK}
	if f.err != nil {
		ev.Status = messages.StatusFail
		return messages.AnalysisReport{}, ev, f.err
	}
	return messages.AnalysisReport{}, ev, nil
}

func TestWorker_Handle(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := &fakeService{}
	w := New(svc, dedup.New(time.Minute, 100), time.Second, NewMetrics(reg), nil)

	msg := fakeMessage{topic: "cropsense/request/522001", payload: []byte(`{"request_id":"r-1","crop":"Rice"}`)}
	require.NoError(t, w.Handle(RequestTopicFilter, msg))
	require.NoError(t, w.Handle(RequestTopicFilter, msg))

	require.Len(t, svc.reqs, 1)
	assert.Equal(t, messages.AnalysisRequest{RequestID: "r-1", PinCode: "522001", Crop: "Rice"}, svc.reqs[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.messages.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.messages.WithLabelValues("duplicate")))
}

func TestWorker_Handle_SamePayloadOnTwoPins(t *testing.T) {
	svc := &fakeService{}
	w := New(svc, nil, 0, NewMetrics(nil), nil)

	body := []byte(`{"crop":"Rice"}`)
	require.NoError(t, w.Handle(RequestTopicFilter, fakeMessage{topic: "cropsense/request/522001", payload: body}))
	require.NoError(t, w.Handle(RequestTopicFilter, fakeMessage{topic: "cropsense/request/507115", payload: body}))
	require.NoError(t, w.Handle(RequestTopicFilter, fakeMessage{topic: "cropsense/request/507115", payload: body}))

	require.Len(t, svc.reqs, 2)
	assert.Equal(t, "522001", svc.reqs[0].PinCode)
	assert.Equal(t, "507115", svc.reqs[1].PinCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.messages.WithLabelValues("duplicate")))
}

func TestWorker_Handle_Errors(t *testing.T) {
	svc := &fakeService{err: entities.ErrInvalidPin}
	w := New(svc, nil, 0, NewMetrics(nil), nil)

	err := w.Handle(RequestTopicFilter, fakeMessage{topic: "cropsense/request/x", payload: []byte(`not json`)})
	assert.ErrorIs(t, err, ErrBadRequest)

	err = w.Handle(RequestTopicFilter, fakeMessage{topic: "other/topic", payload: []byte(`{"crop":"Rice"}`)})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Empty(t, svc.reqs)

	// failed analyses are reported through the sinks, not to the consumer
	err = w.Handle(RequestTopicFilter, fakeMessage{topic: "cropsense/request/12", payload: []byte(`{"crop":"Rice"}`)})
	assert.NoError(t, err)
	require.Len(t, svc.reqs, 1)
	assert.Equal(t, "12", svc.reqs[0].PinCode)
}

func TestPickPin(t *testing.T) {
	assert.Equal(t, "522001", pickPin("cropsense/request/999999", " 522001 "))
	assert.Equal(t, "999999", pickPin("cropsense/request/999999", ""))
	assert.Equal(t, "999999", pickPin("cropsense/request/999999/extra", ""))
	assert.Equal(t, "", pickPin("cropsense/other/999999", ""))
}

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) PublishMessage(message interface{}) error { return f.PublishTo("", message) }

func (f *fakePublisher) PublishTo(topic string, message interface{}) error {
	f.topic = topic
	f.payload = message.([]byte)
	return f.err
}

func (f *fakePublisher) Topic() string { return "" }

func TestResultPublisher(t *testing.T) {
	pub := &fakePublisher{}
	rp := NewResultPublisher(pub, "")
	ev := messages.AnalysisCompletedEvent{RequestID: "r-1", PinCode: "522001", Crop: "Rice", Status: messages.StatusFail, Error: "boom"}

	require.NoError(t, rp.Deliver(context.Background(), ev))
	assert.Equal(t, "cropsense/result/522001", pub.topic)

	var got messages.AnalysisCompletedEvent
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "boom", got.Error)
	assert.Nil(t, got.Report)

	assert.Equal(t, "results/522001/crop", NewResultPublisher(pub, "results/{pin}/crop").Topic("522001"))

	pub.err = errors.New("not connected")
	assert.EqualError(t, rp.Deliver(context.Background(), ev), "not connected")
}
