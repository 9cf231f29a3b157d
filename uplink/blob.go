package uplink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/google/uuid"
)

// archiver appends encrypted, framed transfer batches to a single append
// blob per gateway run, grounded on the teacher's azblob.go blobDriver —
// simplified to the one operation a flight recorder needs: append, never
// read back in-process.
type archiver struct {
	client  *container.Client
	runID   string
	blobSeq int
}

// newArchiver opens (creating if needed) the archive container and
// starts a fresh append blob named after a freshly minted run ID, the
// same role google/uuid plays in the teacher's Dial (minting connID).
func newArchiver(ctx context.Context, ep *Endpoint, containerName string) (*archiver, error) {
	client, err := newBlobServiceClient(ep)
	if err != nil {
		return nil, err
	}
	cc := client.NewContainerClient(containerName)
	if _, err := cc.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("uplink: create archive container: %w", err)
	}
	a := &archiver{client: cc, runID: uuid.NewString()}
	if err := a.createBlob(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *archiver) blobName() string {
	return fmt.Sprintf("%s-%04d", a.runID, a.blobSeq)
}

func (a *archiver) createBlob(ctx context.Context) error {
	_, err := a.client.NewAppendBlobClient(a.blobName()).Create(ctx, nil)
	return err
}

// Append writes one sealed archive batch as a single append-blob block.
func (a *archiver) Append(ctx context.Context, sealed []byte) error {
	_, err := a.client.NewAppendBlobClient(a.blobName()).AppendBlock(ctx, streaming.NopCloser(bytes.NewReader(sealed)), nil)
	return err
}

func newBlobServiceClient(ep *Endpoint) (*service.Client, error) {
	if ep.Account == "" || ep.Key == "" {
		return nil, fmt.Errorf("uplink: missing storage account credentials")
	}
	cred, err := azblob.NewSharedKeyCredential(ep.Account, ep.Key)
	if err != nil {
		return nil, fmt.Errorf("uplink: blob credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(ep.ServiceURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("uplink: blob client: %w", err)
	}
	return client.ServiceClient(), nil
}
