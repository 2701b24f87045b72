package engine

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

func (e *Engine) executeUpload(ctx context.Context, exec *execution) error {
	upload := exec.in.upload
	if upload == nil {
		return &wfm.ConfigurationError{Endpoint: exec.descriptor.ID, Reason: "upload request is required"}
	}

	body, contentType, err := multipartBody(upload)
	if err != nil {
		return err
	}

	req := &wfmhttp.Request{
		Method:      exec.descriptor.Method(wfm.OperationUpload),
		Path:        exec.descriptor.Path(wfm.OperationUpload, ""),
		RawBody:     body,
		ContentType: contentType,
	}

	resp, err := e.exchange(ctx, exec, req)
	if resp == nil {
		return err
	}

	if err != nil {
		return fmt.Errorf("uploading %s: %w", upload.Filename, err)
	}

	exec.out.meta = metaFrom(resp)

	entity := unwrapEntity(resp.Body, exec.descriptor.Entity)
	if len(entity) > 0 {
		exec.out.items = append(exec.out.items, entity)
	}

	return nil
}

// multipartBody encodes the upload as multipart/form-data with the content
// in the "file" field.
func multipartBody(upload *wfm.UploadRequest) ([]byte, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(upload.Fields))
	for key := range upload.Fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		err := writer.WriteField(key, upload.Fields[key])
		if err != nil {
			return nil, "", fmt.Errorf("writing form field %s: %w", key, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, constants.MultipartField, upload.Filename))

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}

	_, err = part.Write(upload.Content)
	if err != nil {
		return nil, "", fmt.Errorf("writing file to form: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (e *Engine) executeDownload(ctx context.Context, exec *execution) error {
	download := exec.in.download
	if download == nil {
		return &wfm.ConfigurationError{Endpoint: exec.descriptor.ID, Reason: "download request is required"}
	}

	req := &wfmhttp.Request{
		Method:  exec.descriptor.Method(wfm.OperationDownload),
		Path:    exec.descriptor.Path(wfm.OperationDownload, download.ID),
		Query:   download.Query.Values(),
		Headers: map[string]string{"Accept": "*/*"},
	}

	resp, err := e.exchange(ctx, exec, req)
	if resp == nil {
		return err
	}

	if err != nil {
		return fmt.Errorf("downloading %s: %w", download.ID, err)
	}

	exec.out.meta = metaFrom(resp)
	exec.out.content = resp.Body
	exec.out.contentType = resp.Headers.Get("Content-Type")

	return nil
}
