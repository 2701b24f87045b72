package engine_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/wfm-client/internal/engine"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadCapture struct {
	method      string
	path        string
	tenant      string
	field       string
	filename    string
	contentType string
	content     []byte
}

func TestExecute_Upload(t *testing.T) {
	t.Parallel()

	captured := make(chan uploadCapture, 1)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := uploadCapture{tenant: r.Header.Get("X-Tenant-ID")}

		err := r.ParseMultipartForm(1 << 20)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		got.field = r.FormValue("employee_id")

		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}
		defer file.Close()

		got.method = r.Method
		got.path = r.URL.Path
		got.filename = header.Filename
		got.contentType = header.Header.Get("Content-Type")
		got.content, _ = io.ReadAll(file)
		captured <- got

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"documents":{"id":"doc-1","filename":"contract.pdf","size":11}}`))
	})

	eng := newHTTPEngine(t, handler)

	op := engine.NewUpload[wfm.Document]("documents", &wfm.UploadRequest{
		Filename:    "contract.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.7..."),
		Fields:      map[string]string{"employee_id": "e-1"},
	})
	require.NoError(t, eng.Execute(context.Background(), op))

	got := <-captured
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v1/documents", got.path)
	assert.Equal(t, "acme", got.tenant)
	assert.Equal(t, "e-1", got.field)
	assert.Equal(t, "contract.pdf", got.filename)
	assert.Equal(t, "application/pdf", got.contentType)
	assert.Equal(t, []byte("%PDF-1.7..."), got.content)

	results := op.Results()
	require.Len(t, results.Items, 1)
	assert.Equal(t, "doc-1", results.Items[0].ID)
	assert.Equal(t, int64(11), results.Items[0].Size)
}

func TestExecute_UploadRejected(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":{"code":"validation_failed","message":"file too large"}}`))
	})

	eng := newHTTPEngine(t, handler)

	op := engine.NewUpload[wfm.Document]("documents", &wfm.UploadRequest{Filename: "big.bin", Content: []byte("x")})
	err := eng.Execute(context.Background(), op)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploading big.bin")
	assert.Contains(t, err.Error(), "file too large")
	assert.Nil(t, op.Results())
}

func TestExecute_Download(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/documents/doc-1/content", r.URL.Path)
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		assert.Equal(t, "inline", r.URL.Query().Get("disposition"))

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("X-RateLimit-Limit", "10")
		w.Header().Set("X-RateLimit-Remaining", "9")
		_, _ = w.Write([]byte("%PDF-1.7 binary"))
	})

	eng := newHTTPEngine(t, handler)

	op := engine.NewDownload("documents", &wfm.DownloadRequest{
		ID:    "doc-1",
		Query: wfm.NewFilter().Add("disposition", "inline"),
	})
	require.NoError(t, eng.Execute(context.Background(), op))

	assert.Equal(t, []byte("%PDF-1.7 binary"), op.RawResponseContent())

	download := op.Download()
	require.NotNil(t, download)
	assert.Equal(t, "application/pdf", download.ContentType)
	require.NotNil(t, op.ResultsMeta().RateLimit)
	assert.Equal(t, 9, op.ResultsMeta().RateLimit.Remaining)
	assert.Nil(t, op.Results())
}

func TestExecute_DownloadNotFound(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"document not found"}}`))
	})

	eng := newHTTPEngine(t, handler)

	op := engine.NewDownload("documents", &wfm.DownloadRequest{ID: "missing"})
	err := eng.Execute(context.Background(), op)
	require.Error(t, err)
	assert.True(t, wfm.IsNotFound(err))
	assert.Nil(t, op.RawResponseContent())
}

func TestExecute_TransferRequiresRequest(t *testing.T) {
	t.Parallel()

	eng := newHTTPEngine(t, http.NotFoundHandler())

	err := eng.Execute(context.Background(), engine.NewUpload[wfm.Document]("documents", nil))
	require.ErrorIs(t, err, wfm.ErrConfiguration)

	err = eng.Execute(context.Background(), engine.NewDownload("documents", nil))
	require.ErrorIs(t, err, wfm.ErrConfiguration)
}
