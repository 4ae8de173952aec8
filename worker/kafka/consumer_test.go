package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSession struct {
	marked []*sarama.ConsumerMessage
}

func (s *fakeSession) Claims() map[string][]int32                               { return nil }
func (s *fakeSession) MemberID() string                                         { return "" }
func (s *fakeSession) GenerationID() int32                                      { return 0 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)                  {}
func (s *fakeSession) Commit()                                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)                 {}
func (s *fakeSession) Context() context.Context                                 { return context.Background() }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg)
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "image_processing" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumeClaim_DecodesAndMarks(t *testing.T) {
	payload, err := json.Marshal(TaskMessage{TaskID: "t1", TraceID: "tr1", Kind: "gif"})
	require.NoError(t, err)

	msgs := make(chan *sarama.ConsumerMessage, 1)
	msgs <- &sarama.ConsumerMessage{Topic: "image_processing", Offset: 7, Value: payload}
	close(msgs)

	var got []*TaskMessage
	h := &consumerHandler{
		fn:     func(ctx context.Context, msg *TaskMessage) { got = append(got, msg) },
		ctx:    context.Background(),
		logger: zaptest.NewLogger(t),
	}
	session := &fakeSession{}

	require.NoError(t, h.ConsumeClaim(session, &fakeClaim{msgs: msgs}))

	require.Len(t, got, 1)
	require.Equal(t, "t1", got[0].TaskID)
	require.Equal(t, "gif", got[0].Kind)
	require.Len(t, session.marked, 1)
}

func TestConsumeClaim_DropsMalformedPayload(t *testing.T) {
	msgs := make(chan *sarama.ConsumerMessage, 1)
	msgs <- &sarama.ConsumerMessage{Topic: "image_processing", Offset: 9, Value: []byte("not json")}
	close(msgs)

	handled := false
	h := &consumerHandler{
		fn:     func(ctx context.Context, msg *TaskMessage) { handled = true },
		ctx:    context.Background(),
		logger: zaptest.NewLogger(t),
	}
	session := &fakeSession{}

	require.NoError(t, h.ConsumeClaim(session, &fakeClaim{msgs: msgs}))

	// A garbage payload never reaches the handler, but its offset is still
	// marked so it is not redelivered forever.
	require.False(t, handled)
	require.Len(t, session.marked, 1)
}
