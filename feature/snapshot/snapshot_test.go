package snapshot

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inventory-sync/core/graph"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/storage/mocks"
	"inventory-sync/feature/dcim"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const inventoryYAML = `manufacturer:
  - name: DigitalOcean
    description: Cloud provider
    slug: digitalocean
device_type:
  - model: s-1vcpu-1gb
    manufacturer_name: DigitalOcean
    slug: s-1vcpu-1gb
device_role:
  - name: Droplet
    slug: droplet
site:
  - name: New York 1
    slug: nyc1
device:
  - name: web1
    device_type_name: s-1vcpu-1gb
    device_role_name: Droplet
    site_name: New York 1
    status: active
`

func TestDecodeEncode(t *testing.T) {
	g, err := Decode(strings.NewReader(inventoryYAML), dcim.Schema)
	require.NoError(t, err)
	assert.Equal(t, 5, g.Size())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g))
	assert.Equal(t, inventoryYAML, buf.String())
}

func TestEncode_QuotesAmbiguousScalars(t *testing.T) {
	g := dcim.NewGraph()
	_, err := g.RegisterValues(dcim.Site, map[string]any{"name": "123", "slug": "true"}, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g))

	back, err := Decode(&buf, dcim.Schema)
	require.NoError(t, err)
	e, err := back.Get(dcim.Site, graph.NewKey("123"))
	require.NoError(t, err)
	assert.Equal(t, "true", e.Attributes[dcim.FieldSlug])
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want any
	}{
		{name: "unknown type", doc: "rack:\n  - name: r1\n", want: new(*graph.SchemaError)},
		{name: "unknown field", doc: "site:\n  - name: a\n    slug: a\n    color: red\n", want: new(*graph.SchemaError)},
		{name: "key separator in name", doc: "site:\n  - name: \"nyc\\x1f1\"\n    slug: nyc1\n", want: new(*graph.SchemaError)},
		{name: "duplicate", doc: "site:\n  - {name: a, slug: a}\n  - {name: a, slug: b}\n", want: new(*graph.DuplicateKeyError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), dcim.Schema)
			assert.ErrorAs(t, err, tt.want)
		})
	}

	_, err := Decode(strings.NewReader("- just\n- a list\n"), dcim.Schema)
	assert.ErrorContains(t, err, "expected a mapping")
}

func TestAdapter_RejectsKeySeparator(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "inventory.yaml")}
	a := NewAdapter(store, dcim.Schema, nil)
	ctx := context.Background()
	_, err := a.Load(ctx)
	require.NoError(t, err)

	_, err = a.Create(ctx, dcim.Site, graph.NewKey("nyc\x1f1"), graph.Attributes{dcim.FieldSlug: "nyc1"})
	assert.ErrorAs(t, err, new(*graph.SchemaError))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a.state))
	assert.Equal(t, "{}\n", buf.String())
}

func TestDecode_EmptyDocuments(t *testing.T) {
	for _, doc := range []string{"", "{}\n"} {
		g, err := Decode(strings.NewReader(doc), dcim.Schema)
		require.NoError(t, err)
		assert.Zero(t, g.Size())

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, g))
		assert.Equal(t, "{}\n", buf.String())
	}
}

func TestFileStore(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "nested", "inventory.yaml")}

	_, err := store.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, store.Write(context.Background(), []byte("site: []\n")))
	data, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "site: []\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(store.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestAdapter_WritesOnFlushOnly(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "inventory.yaml")}
	a := NewAdapter(store, dcim.Schema, nil)
	ctx := context.Background()

	g, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, g.Size())

	_, err = a.Create(ctx, dcim.Site, graph.NewKey("New York 1"), graph.Attributes{dcim.FieldSlug: "nyc1"})
	require.NoError(t, err)
	_, err = store.Read(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, a.Flush(ctx))
	data, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "site:\n  - name: New York 1\n    slug: nyc1\n", string(data))
}

func TestAdapter_EnforcesReferences(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "inventory.yaml")}
	require.NoError(t, store.Write(context.Background(), []byte(inventoryYAML)))
	a := NewAdapter(store, dcim.Schema, nil)
	ctx := context.Background()
	_, err := a.Load(ctx)
	require.NoError(t, err)

	_, err = a.Create(ctx, dcim.Device, graph.NewKey("web2"), graph.Attributes{
		dcim.FieldDeviceTypeName: "s-1vcpu-1gb", dcim.FieldDeviceRoleName: "Droplet",
		dcim.FieldSiteName: "Amsterdam 3", dcim.FieldStatus: dcim.StatusActive,
	})
	var refErr *reconcile.ReferenceResolutionError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, dcim.FieldSiteName, refErr.Field)

	err = a.Delete(ctx, graph.Entity{Type: dcim.Site, Key: graph.NewKey("New York 1")})
	var ce *reconcile.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"device web1"}, ce.Dependents)

	_, err = a.Update(ctx, graph.Entity{Type: dcim.Site, Key: graph.NewKey("ghost")}, graph.Attributes{dcim.FieldSlug: "x"})
	assert.ErrorIs(t, err, reconcile.ErrNotFound)

	updated, err := a.Update(ctx, graph.Entity{Type: dcim.Device, Key: graph.NewKey("web1")}, graph.Attributes{dcim.FieldStatus: dcim.StatusOffline})
	require.NoError(t, err)
	assert.Equal(t, "New York 1", updated.Attributes[dcim.FieldSiteName])
}

func TestAdapter_SyncSnapshots(t *testing.T) {
	dir := t.TempDir()
	source := FileStore{Path: filepath.Join(dir, "source.yaml")}
	require.NoError(t, source.Write(context.Background(), []byte(inventoryYAML)))
	dest := FileStore{Path: filepath.Join(dir, "dest.yaml")}
	require.NoError(t, dest.Write(context.Background(), []byte("site:\n  - {name: Stale, slug: stale}\n")))

	orch := reconcile.NewOrchestrator(NewAdapter(source, dcim.Schema, nil), NewAdapter(dest, dcim.Schema, nil), nil, nil)
	report, err := orch.Run(context.Background(), reconcile.RunOptions{Mode: reconcile.ModeApply, Unmatched: reconcile.UnmatchedDelete})
	require.NoError(t, err)
	assert.False(t, report.Failed())

	data, err := dest.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, inventoryYAML, string(data))
}

func TestObjectStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Object", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "inventory", "snap.yaml", minio.GetObjectOptions{}).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

		_, err := NewObjectStore(client, "inventory", "", "snap.yaml").Read(ctx)
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("Read", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "inventory", "snap.yaml", minio.GetObjectOptions{}).
			Return(io.NopCloser(strings.NewReader(inventoryYAML)), nil)

		g, err := Read(ctx, NewObjectStore(client, "inventory", "", "snap.yaml"), dcim.Schema)
		require.NoError(t, err)
		assert.Equal(t, 5, g.Size())
	})

	t.Run("Write Creates Bucket", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", ctx, "inventory").Return(false, nil)
		client.On("MakeBucket", ctx, "inventory", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
		client.On("PutObject", ctx, "inventory", "snap.yaml", mock.Anything, int64(9),
			minio.PutObjectOptions{ContentType: "application/yaml"}).Return(minio.UploadInfo{}, nil)

		store := NewObjectStore(client, "inventory", "us-east-1", "snap.yaml")
		require.NoError(t, store.Write(ctx, []byte("site: []\n")))
		assert.Equal(t, "inventory/snap.yaml", store.Location())
		client.AssertExpectations(t)
	})

	t.Run("Write Error", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", ctx, "inventory").Return(true, nil)
		client.On("PutObject", ctx, "inventory", "snap.yaml", mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, assert.AnError)

		err := NewObjectStore(client, "inventory", "", "snap.yaml").Write(ctx, []byte("{}\n"))
		assert.ErrorIs(t, err, assert.AnError)
	})
}
