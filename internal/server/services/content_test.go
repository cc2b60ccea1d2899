package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/clock"
	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/server/blobstore"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = &models.Identity{ID: 1, Username: "alice", Active: true}

type contentFixture struct {
	svc   *ContentService
	rm    *repotest.Manager
	store *blobstore.FSStore
	clock *clock.Fake
}

func newContentFixture(t *testing.T) *contentFixture {
	t.Helper()
	store, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	rm := repotest.NewManager(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	})

	fc := clock.NewFake(time.Now())
	return &contentFixture{
		svc:   NewContentService(nil, rm, store, fc, nopLogger{}),
		rm:    rm,
		store: store,
		clock: fc,
	}
}

func (f *contentFixture) save(t *testing.T, data, name string, labels ...string) *models.ContentObject {
	t.Helper()
	obj, err := f.svc.Save(context.Background(), alice, strings.NewReader(data), name, "text/plain", labels)
	require.NoError(t, err)
	return obj
}

func TestSave_FetchReturnsIdenticalBytes(t *testing.T) {
	f := newContentFixture(t)
	data := "binary\x00\xffpayload"

	obj := f.save(t, data, "notes.txt", "docs")

	assert.Len(t, obj.Handle, 36)
	assert.Equal(t, obj.Handle[:2]+"/"+obj.Handle, obj.StorageLocator)
	assert.Equal(t, int64(len(data)), obj.ByteSize)
	assert.Len(t, obj.Checksum, 64)

	got, body, err := f.svc.Fetch(context.Background(), obj.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte(data), body)
	assert.Equal(t, "notes.txt", got.DisplayName)
	assert.Equal(t, obj.Checksum, got.Checksum)
}

func TestSave_DefaultsAndLabels(t *testing.T) {
	f := newContentFixture(t)

	obj, err := f.svc.Save(context.Background(), alice, bytes.NewReader(nil), "  ", "", []string{" a ", "", "b", "a", "  "})
	require.NoError(t, err)

	assert.Equal(t, "unnamed", obj.DisplayName)
	assert.Equal(t, "application/octet-stream", obj.MediaType)
	assert.Equal(t, []string{"a", "b"}, obj.Labels)
	assert.Equal(t, int64(0), obj.ByteSize)
}

func TestSave_RejectsOverlongFieldsBeforeWriting(t *testing.T) {
	tests := []struct {
		name      string
		display   string
		mediaType string
		valid     bool
	}{
		{"name at limit counts runes", strings.Repeat("é", 255), "text/plain", true},
		{"name too long", strings.Repeat("a", 256), "text/plain", false},
		{"media type at limit", "a.bin", strings.Repeat("x", 100), true},
		{"media type too long", "a.bin", strings.Repeat("x", 101), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newContentFixture(t)
			_, err := f.svc.Save(context.Background(), alice, strings.NewReader("data"), tt.display, tt.mediaType, nil)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, common.KindValidation, common.KindOf(err))

			inv, err := f.svc.Inventory(context.Background())
			require.NoError(t, err)
			assert.Zero(t, inv.ObjectCount)

			var blobs int
			require.NoError(t, f.store.Walk(context.Background(), func(blobstore.BlobInfo) error {
				blobs++
				return nil
			}))
			assert.Zero(t, blobs, "no blob may be written for rejected input")
		})
	}
}

func TestSave_InsertFailureRemovesBlob(t *testing.T) {
	f := newContentFixture(t)
	f.rm.ContentRepo.CreateErr = errors.New("connection reset")

	_, err := f.svc.Save(context.Background(), alice, strings.NewReader("data"), "x", "", nil)
	require.Error(t, err)
	assert.Equal(t, common.KindInternal, common.KindOf(err))

	var blobs []string
	require.NoError(t, f.store.Walk(context.Background(), func(b blobstore.BlobInfo) error {
		blobs = append(blobs, b.Locator)
		return nil
	}))
	assert.Empty(t, blobs)
}

func TestSave_HandleCollisionIsIntegrityViolation(t *testing.T) {
	f := newContentFixture(t)
	f.svc.newHandle = func() string { return "0b7e6a2c-5d0f-4d8e-9a51-6f1e2b3c4d5e" }

	first := f.save(t, "first", "a")

	_, err := f.svc.Save(context.Background(), alice, strings.NewReader("second"), "b", "", nil)
	require.Error(t, err)
	assert.Equal(t, common.KindIntegrity, common.KindOf(err))

	_, body, err := f.svc.Fetch(context.Background(), first.Handle)
	require.NoError(t, err)
	assert.Equal(t, "first", string(body), "existing blob must not be overwritten")
}

func TestList_OneEntryPerHandleInCreationOrder(t *testing.T) {
	f := newContentFixture(t)
	a := f.save(t, "1", "a", "red")
	b := f.save(t, "2", "b")
	c := f.save(t, "3", "c", "red", "blue")

	all, err := f.svc.List(context.Background(), alice, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a.Handle, b.Handle, c.Handle}, []string{all[0].Handle, all[1].Handle, all[2].Handle})

	red, err := f.svc.List(context.Background(), alice, "red")
	require.NoError(t, err)
	require.Len(t, red, 2)
	assert.Equal(t, a.Handle, red[0].Handle)
	assert.Equal(t, c.Handle, red[1].Handle)

	none, err := f.svc.List(context.Background(), alice, "green")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDelete_TwiceIsNotFound(t *testing.T) {
	f := newContentFixture(t)
	obj := f.save(t, "bye", "x")
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, obj.Handle))

	err := f.svc.Delete(ctx, obj.Handle)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	_, _, err = f.svc.Fetch(ctx, obj.Handle)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	_, err = f.store.Open(ctx, obj.StorageLocator)
	assert.ErrorIs(t, err, common.ErrorNotFound, "blob must be gone")
}

func TestDelete_MissingBlobIsSwallowed(t *testing.T) {
	f := newContentFixture(t)
	obj := f.save(t, "x", "x")
	require.NoError(t, f.store.Remove(context.Background(), obj.StorageLocator))

	assert.NoError(t, f.svc.Delete(context.Background(), obj.Handle))
}

func TestFetch_MissingBlobIsNotFound(t *testing.T) {
	f := newContentFixture(t)
	obj := f.save(t, "x", "x")
	require.NoError(t, f.store.Remove(context.Background(), obj.StorageLocator))

	_, _, err := f.svc.Fetch(context.Background(), obj.Handle)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
	assert.Equal(t, "File not found", common.MessageOf(err))
}

func TestFetch_CorruptedBlob(t *testing.T) {
	f := newContentFixture(t)
	obj := f.save(t, "original", "x")

	p := filepath.Join(f.store.Root(), filepath.FromSlash(obj.StorageLocator))
	require.NoError(t, os.WriteFile(p, []byte("tampered"), 0o600))

	_, _, err := f.svc.Fetch(context.Background(), obj.Handle)
	assert.Equal(t, common.KindStorageInconsistency, common.KindOf(err))
}

func TestUnknownOrMalformedHandle(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()

	for _, h := range []string{"nope", "", "../../etc/passwd", "7c9e6679-7425-40de-944b-e07fc1f90ae7"} {
		_, err := f.svc.Metadata(ctx, h)
		assert.Equal(t, common.KindNotFound, common.KindOf(err), h)
		_, _, err = f.svc.Fetch(ctx, h)
		assert.Equal(t, common.KindNotFound, common.KindOf(err), h)
		assert.Equal(t, common.KindNotFound, common.KindOf(f.svc.Delete(ctx, h)), h)
	}
}

func TestInventory(t *testing.T) {
	f := newContentFixture(t)
	f.save(t, "abc", "a")
	f.save(t, "defgh", "b")

	inv, err := f.svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ContentInventory{ObjectCount: 2, TotalBytes: 8}, inv)
}

func TestSweep_RemovesOnlyOldOrphans(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	kept := f.save(t, "kept", "k")

	old := "aa/aaaaaaaa-0000-4000-8000-000000000000"
	young := "bb/bbbbbbbb-0000-4000-8000-000000000000"
	for _, l := range []string{old, young} {
		_, err := f.store.Create(ctx, l, strings.NewReader("orphan"))
		require.NoError(t, err)
	}

	now := time.Now()
	f.clock.Set(now)
	past := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.store.Root(), filepath.FromSlash(old)), past, past))
	require.NoError(t, os.Chtimes(filepath.Join(f.store.Root(), filepath.FromSlash(kept.StorageLocator)), past, past))

	n, err := f.svc.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.store.Open(ctx, old)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	rc, err := f.store.Open(ctx, young)
	require.NoError(t, err)
	_ = rc.Close()

	_, body, err := f.svc.Fetch(ctx, kept.Handle)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(body))
}

func TestNormalizeLabels(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeLabels(nil))
	assert.Equal(t, []string{"x", "y"}, NormalizeLabels([]string{"x", " y", "x ", ""}))
}
