package uplink

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
)

// alerter pushes a fleet-monitoring notification onto an Azure Storage
// Queue whenever the receiver's error counter crosses the configured
// threshold within the alert window, grounded on the teacher's
// azqueue.go queueDriver — simplified to the one operation an alert
// channel needs: enqueue.
type alerter struct {
	client *azqueue.QueueClient
}

func newAlerter(ctx context.Context, ep *Endpoint, queueName string) (*alerter, error) {
	client, err := newQueueServiceClient(ep)
	if err != nil {
		return nil, err
	}
	if _, err := client.CreateQueue(ctx, queueName, nil); err != nil && !queueerror.HasCode(err, queueerror.QueueAlreadyExists) {
		return nil, fmt.Errorf("uplink: create alert queue: %w", err)
	}
	return &alerter{client: client.NewQueueClient(queueName)}, nil
}

// Alert enqueues a base64-encoded, human-readable threshold message.
func (a *alerter) Alert(ctx context.Context, message string) error {
	_, err := a.client.EnqueueMessage(ctx, base64.StdEncoding.EncodeToString([]byte(message)), nil)
	return err
}

func newQueueServiceClient(ep *Endpoint) (*azqueue.ServiceClient, error) {
	if ep.Account == "" || ep.Key == "" {
		return nil, fmt.Errorf("uplink: missing storage account credentials")
	}
	cred, err := azqueue.NewSharedKeyCredential(ep.Account, ep.Key)
	if err != nil {
		return nil, fmt.Errorf("uplink: queue credential: %w", err)
	}
	return azqueue.NewServiceClientWithSharedKeyCredential(ep.ServiceURL(), cred, nil)
}
