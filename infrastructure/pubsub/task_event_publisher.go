package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// NewPubSub creates a Cloud Pub/Sub client for projectID.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id not configured")
	}
	return pubsub.NewClient(ctx, projectID)
}

// TaskEventPublisher sends task outcome events to a Pub/Sub topic.
type TaskEventPublisher struct {
	client    *pubsub.Client
	topicName string

	once  sync.Once
	topic *pubsub.Topic
	err   error
}

func NewTaskEventPublisher(client *pubsub.Client, topicName string) *TaskEventPublisher {
	if topicName == "" {
		topicName = "social-publisher-task-events"
	}
	return &TaskEventPublisher{client: client, topicName: topicName}
}

func (p *TaskEventPublisher) resolveTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.once.Do(func() {
		topic := p.client.Topic(p.topicName)
		exists, err := topic.Exists(ctx)
		if err != nil {
			p.err = err
			return
		}
		if !exists {
			logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
			if topic, err = p.client.CreateTopic(ctx, p.topicName); err != nil {
				p.err = err
				return
			}
		}
		p.topic = topic
	})
	return p.topic, p.err
}

func (p *TaskEventPublisher) PublishTaskEvent(ctx context.Context, evt model.TaskEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	topic, err := p.resolveTopic(ctx)
	if err != nil {
		return err
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: eventAttributes(evt),
	}).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("task_id", evt.TaskID).Info("Task event published")
	return nil
}

func encodeEvent(evt model.TaskEvent) ([]byte, error) {
	return json.Marshal(evt)
}

func eventAttributes(evt model.TaskEvent) map[string]string {
	return map[string]string{
		"type":     evt.Type,
		"platform": string(evt.Platform),
		"status":   string(evt.Status),
		"user_id":  evt.UserID,
	}
}
