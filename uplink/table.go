package uplink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// registry upserts one row per source NodeId per subscription, so a
// fleet operator can query which nodes are actually talking on a bus
// without replaying the archive, grounded on the teacher's aztable.go
// tableDriver — simplified to the one operation a registry needs:
// upsert.
type registry struct {
	client *aztables.Client
}

func newRegistry(ctx context.Context, ep *Endpoint, tableName string) (*registry, error) {
	client, err := newTableServiceClient(ep)
	if err != nil {
		return nil, err
	}
	if _, err := client.CreateTable(ctx, tableName, nil); err != nil {
		// aztables has no typed "already exists" helper exposed the way
		// bloberror/queueerror do, so any create error (including "already
		// exists") is ignored here; a missing table only surfaces later as
		// an Upsert error.
		_ = err
	}
	return &registry{client: client.NewClient(tableName)}, nil
}

// nodeEntry is one row of the registry: partition key is the
// subscription's port, row key is the source node ID. There is no
// per-node ErrorCount here: cyphal.Receiver only ever counts errors
// bus-wide (a malformed or dropped frame isn't attributable to a
// source node until it's already been rejected), so a per-row error
// count would just be a field that always reads zero.
type nodeEntry struct {
	LastSeen      uint32
	TransferCount uint64
}

// Upsert records the latest sighting of a source node on a subscription.
func (r *registry) Upsert(ctx context.Context, port uint16, node uint8, entry nodeEntry) error {
	m := map[string]any{
		"PartitionKey":  strconv.Itoa(int(port)),
		"RowKey":        strconv.Itoa(int(node)),
		"LastSeen":      entry.LastSeen,
		"TransferCount": entry.TransferCount,
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("uplink: encode registry entity: %w", err)
	}
	_, err = r.client.UpsertEntity(ctx, data, nil)
	return err
}

func newTableServiceClient(ep *Endpoint) (*aztables.ServiceClient, error) {
	if ep.Account == "" || ep.Key == "" {
		return nil, fmt.Errorf("uplink: missing storage account credentials")
	}
	cred, err := aztables.NewSharedKeyCredential(ep.Account, ep.Key)
	if err != nil {
		return nil, fmt.Errorf("uplink: table credential: %w", err)
	}
	return aztables.NewServiceClientWithSharedKey(ep.ServiceURL(), cred, nil)
}
