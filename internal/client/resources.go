package client

import (
	"context"

	"github.com/fivetwenty-io/wfm-client/internal/engine"
	"github.com/fivetwenty-io/wfm-client/internal/syncbridge"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// ResourceClient implements wfm.ResourceClient for one endpoint. Every
// synchronous method runs its Async variant through the sync bridge.
type ResourceClient[T any] struct {
	engine     *engine.Engine
	endpointID string
}

var _ wfm.ResourceClient[wfm.Record] = (*ResourceClient[wfm.Record])(nil)

// NewResourceClient creates a client for endpointID.
func NewResourceClient[T any](eng *engine.Engine, endpointID string) *ResourceClient[T] {
	return &ResourceClient[T]{
		engine:     eng,
		endpointID: endpointID,
	}
}

// EndpointID returns the endpoint the client operates on.
func (c *ResourceClient[T]) EndpointID() string {
	return c.endpointID
}

// Create implements wfm.ResourceClient.Create.
func (c *ResourceClient[T]) Create(ctx context.Context, items []T) (*wfm.Results[T], error) {
	return syncbridge.RunSync(ctx, func(ctx context.Context) wfm.Future[*wfm.Results[T]] {
		return c.CreateAsync(ctx, items)
	})
}

// CreateAsync implements wfm.ResourceClient.CreateAsync.
func (c *ResourceClient[T]) CreateAsync(ctx context.Context, items []T) wfm.Future[*wfm.Results[T]] {
	return execute(ctx, c.engine, engine.NewCreate(c.endpointID, items))
}

// Get implements wfm.ResourceClient.Get.
func (c *ResourceClient[T]) Get(ctx context.Context, filter wfm.Filter, opts *wfm.RequestOptions) (*wfm.Results[T], error) {
	return syncbridge.RunSync(ctx, func(ctx context.Context) wfm.Future[*wfm.Results[T]] {
		return c.GetAsync(ctx, filter, opts)
	})
}

// GetAsync implements wfm.ResourceClient.GetAsync.
func (c *ResourceClient[T]) GetAsync(ctx context.Context, filter wfm.Filter, opts *wfm.RequestOptions) wfm.Future[*wfm.Results[T]] {
	return execute(ctx, c.engine, engine.NewGet[T](c.endpointID, filter, opts))
}

// Update implements wfm.ResourceClient.Update.
func (c *ResourceClient[T]) Update(ctx context.Context, items []T) (*wfm.Results[T], error) {
	return syncbridge.RunSync(ctx, func(ctx context.Context) wfm.Future[*wfm.Results[T]] {
		return c.UpdateAsync(ctx, items)
	})
}

// UpdateAsync implements wfm.ResourceClient.UpdateAsync.
func (c *ResourceClient[T]) UpdateAsync(ctx context.Context, items []T) wfm.Future[*wfm.Results[T]] {
	return execute(ctx, c.engine, engine.NewUpdate(c.endpointID, items))
}

// Delete implements wfm.ResourceClient.Delete.
func (c *ResourceClient[T]) Delete(ctx context.Context, ids []string) (*wfm.Results[T], error) {
	return syncbridge.RunSync(ctx, func(ctx context.Context) wfm.Future[*wfm.Results[T]] {
		return c.DeleteAsync(ctx, ids)
	})
}

// DeleteAsync implements wfm.ResourceClient.DeleteAsync.
func (c *ResourceClient[T]) DeleteAsync(ctx context.Context, ids []string) wfm.Future[*wfm.Results[T]] {
	return execute(ctx, c.engine, engine.NewDelete[T](c.endpointID, ids))
}

// execute runs op on the engine in the background and yields its results.
func execute[T any](ctx context.Context, eng *engine.Engine, op *engine.OperationContext[T]) wfm.Future[*wfm.Results[T]] {
	return syncbridge.Go(ctx, func(ctx context.Context) (*wfm.Results[T], error) {
		err := eng.Execute(ctx, op)
		if err != nil {
			return nil, err
		}

		return op.Results(), nil
	})
}

// DocumentsClient implements wfm.DocumentsClient.
type DocumentsClient struct {
	*ResourceClient[wfm.Document]
}

var _ wfm.DocumentsClient = (*DocumentsClient)(nil)

// NewDocumentsClient creates a documents client for endpointID.
func NewDocumentsClient(eng *engine.Engine, endpointID string) *DocumentsClient {
	return &DocumentsClient{ResourceClient: NewResourceClient[wfm.Document](eng, endpointID)}
}

// Upload implements wfm.DocumentsClient.Upload.
func (c *DocumentsClient) Upload(ctx context.Context, req *wfm.UploadRequest) (*wfm.Results[wfm.Document], error) {
	return syncbridge.RunSync(ctx, func(ctx context.Context) wfm.Future[*wfm.Results[wfm.Document]] {
		return c.UploadAsync(ctx, req)
	})
}

// UploadAsync implements wfm.DocumentsClient.UploadAsync.
func (c *DocumentsClient) UploadAsync(ctx context.Context, req *wfm.UploadRequest) wfm.Future[*wfm.Results[wfm.Document]] {
	return execute(ctx, c.engine, engine.NewUpload[wfm.Document](c.endpointID, req))
}

// Download implements wfm.DocumentsClient.Download.
func (c *DocumentsClient) Download(ctx context.Context, req *wfm.DownloadRequest) (*wfm.Download, error) {
	return syncbridge.RunSync(ctx, func(ctx context.Context) wfm.Future[*wfm.Download] {
		return c.DownloadAsync(ctx, req)
	})
}

// DownloadAsync implements wfm.DocumentsClient.DownloadAsync.
func (c *DocumentsClient) DownloadAsync(ctx context.Context, req *wfm.DownloadRequest) wfm.Future[*wfm.Download] {
	op := engine.NewDownload(c.endpointID, req)

	return syncbridge.Go(ctx, func(ctx context.Context) (*wfm.Download, error) {
		err := c.engine.Execute(ctx, op)
		if err != nil {
			return nil, err
		}

		return op.Download(), nil
	})
}
