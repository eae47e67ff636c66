package provisioning

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

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	messages []published
	err      error
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic, qos, retained, payload})
	return nil
}

func TestMQTTPublisher_PublishAssignment(t *testing.T) {
	client := &fakeClient{}
	pub := NewMQTTPublisher(client, "/farm/", 1)

	msg := &AssignmentMessage{
		DeviceID:            "SN-42",
		OwnerUserID:         uuid.New(),
		RequestID:           uuid.New(),
		RequestedParameters: []string{"humidity"},
		AssignedAt:          time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.PublishAssignment(context.Background(), msg))

	require.Len(t, client.messages, 1)
	sent := client.messages[0]
	assert.Equal(t, "farm/devices/SN-42/assignment", sent.topic)
	assert.Equal(t, byte(1), sent.qos)
	assert.True(t, sent.retained)

	var decoded AssignmentMessage
	require.NoError(t, json.Unmarshal(sent.payload, &decoded))
	assert.Equal(t, *msg, decoded)
}

func TestMQTTPublisher_Errors(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewMQTTPublisher(&fakeClient{err: boom}, "", 0)
	assert.Equal(t, "devices/SN-1/assignment", pub.AssignmentTopic("SN-1"))

	err := pub.PublishAssignment(context.Background(), &AssignmentMessage{DeviceID: "SN-1"})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pub.PublishAssignment(ctx, &AssignmentMessage{DeviceID: "SN-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
