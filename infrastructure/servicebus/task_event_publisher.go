package servicebus

import (
	"context"
	"encoding/json"
	"fmt"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// NewServiceBus authenticates with DefaultAzureCredential against namespace
// (e.g. my-ns.servicebus.windows.net).
func NewServiceBus(_ context.Context, namespace string) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("service bus namespace not configured")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// TaskEventPublisher sends task outcome events to a Service Bus queue.
type TaskEventPublisher struct {
	client *azservicebus.Client
	queue  string
}

func NewTaskEventPublisher(client *azservicebus.Client, queue string) *TaskEventPublisher {
	if queue == "" {
		queue = "task-events"
	}
	return &TaskEventPublisher{client: client, queue: queue}
}

func (p *TaskEventPublisher) PublishTaskEvent(ctx context.Context, evt model.TaskEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	msg, err := newMessage(evt)
	if err != nil {
		return err
	}
	sender, err := p.client.NewSender(p.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.Background())

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}

func newMessage(evt model.TaskEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	subject := evt.Type
	messageID := evt.TaskID + ":" + string(evt.Status)
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		MessageID:   &messageID,
		ApplicationProperties: map[string]interface{}{
			"platform": string(evt.Platform),
			"status":   string(evt.Status),
		},
	}, nil
}
