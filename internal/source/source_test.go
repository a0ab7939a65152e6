package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medparse/internal/domain"
	"medparse/internal/source"
	"medparse/mocks"
)

func TestResolve_Kinds(t *testing.T) {
	local, err := source.Resolve("./uploads/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, source.KindLocal, local.Kind())
	assert.Equal(t, "report.pdf", local.Name())

	remote, err := source.Resolve("https://example.com/files/scan.png?sig=abc")
	require.NoError(t, err)
	assert.True(t, remote.IsRemote())
	assert.Equal(t, "scan.png", remote.Name())
}

func TestResolve_Empty(t *testing.T) {
	_, err := source.Resolve("   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidSource))
}

func TestMapStaticUpload(t *testing.T) {
	got := source.MapStaticUpload("http://localhost:3000/api/static/uploads/abc.pdf", "/api/static/uploads/", "./public/uploads")
	assert.Equal(t, filepath.Join("./public/uploads", "abc.pdf"), got)

	assert.Equal(t, "https://cdn.example.com/abc.pdf",
		source.MapStaticUpload("https://cdn.example.com/abc.pdf", "/api/static/uploads/", "./public/uploads"))
}

func TestSource_OpenLocal(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o600))

	data, err := source.ReadAll(context.Background(), source.Local(p))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSource_OpenRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("remote-bytes"))
	}))
	defer server.Close()

	data, err := source.ReadAll(context.Background(), source.Remote(server.URL+"/doc.pdf").WithClient(server.Client()))
	require.NoError(t, err)
	assert.Equal(t, "remote-bytes", string(data))

	_, err = source.ReadAll(context.Background(), source.Remote(server.URL+"/missing"))
	assert.Error(t, err)
}

func TestStored_OpenReadsFromStorage(t *testing.T) {
	store := new(mocks.MockObjectStorage)
	store.On("Get", mock.Anything, "bucket", "uploads/p_0.png").Return([]byte("png"), nil)

	blob := source.Stored{Storage: store, Bucket: "bucket", Key: "uploads/p_0.png", Ref: "https://signed"}
	data, err := source.ReadAll(context.Background(), blob)

	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "p_0.png", blob.Name())
	assert.Equal(t, "https://signed", blob.Location())
	store.AssertExpectations(t)
}
