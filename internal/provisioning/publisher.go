// Package provisioning tells a physical device who it now belongs to.
package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"farm-iot-provisioning/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssignmentMessage is the retained payload a device reads on boot.
type AssignmentMessage struct {
	DeviceID            string    `json:"device_id"`
	OwnerUserID         uuid.UUID `json:"owner_user_id"`
	RequestID           uuid.UUID `json:"request_id"`
	RequestedParameters []string  `json:"requested_parameters"`
	AssignedAt          time.Time `json:"assigned_at"`
}

// Publisher delivers provisioning messages after an assignment commits.
type Publisher interface {
	PublishAssignment(ctx context.Context, msg *AssignmentMessage) error
}

// MessageClient is the subset of the MQTT client the publisher needs.
type MessageClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type MQTTPublisher struct {
	client      MessageClient
	topicPrefix string
	qos         byte
}

func NewMQTTPublisher(client MessageClient, topicPrefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client:      client,
		topicPrefix: strings.Trim(topicPrefix, "/"),
		qos:         qos,
	}
}

// AssignmentTopic is <prefix>/devices/<id>/assignment.
func (p *MQTTPublisher) AssignmentTopic(deviceID string) string {
	topic := "devices/" + deviceID + "/assignment"
	if p.topicPrefix == "" {
		return topic
	}
	return p.topicPrefix + "/" + topic
}

func (p *MQTTPublisher) PublishAssignment(ctx context.Context, msg *AssignmentMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode assignment message: %w", err)
	}

	topic := p.AssignmentTopic(msg.DeviceID)
	if err := p.client.Publish(topic, p.qos, true, payload); err != nil {
		return fmt.Errorf("failed to publish assignment for device %s: %w", msg.DeviceID, err)
	}

	logger.Info("Provisioning message published",
		zap.String("topic", topic),
		zap.String("device_id", msg.DeviceID),
		zap.String("owner_user_id", msg.OwnerUserID.String()),
		logger.Event("device_provisioning_published"),
	)
	return nil
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishAssignment(ctx context.Context, msg *AssignmentMessage) error {
	logger.Debug("Provisioning disabled, skipping publish",
		zap.String("device_id", msg.DeviceID),
		logger.Event("device_provisioning_skipped"),
	)
	return nil
}
