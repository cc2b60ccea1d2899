package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/homeserver/internal/clock"
	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/cryptox"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/blobstore"
	"github.com/dmitrijs2005/homeserver/internal/server/models"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	defaultDisplayName = "unnamed"
	defaultMediaType   = "application/octet-stream"
	msgContentNotFound = "File not found"

	// column widths of content_objects
	maxDisplayNameLen = 255
	maxMediaTypeLen   = 100
)

// ContentService keeps catalog rows and blobs in step. Blobs are written
// before their row and deleted after it, so a crash can only leave an
// orphan blob, which Sweep reclaims.
type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       blobstore.Store
	clock       clock.Clock
	log         logging.Logger

	newHandle func() string
}

func NewContentService(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store, c clock.Clock, log logging.Logger) *ContentService {
	if c == nil {
		c = clock.Real()
	}
	return &ContentService{
		db:          db,
		repomanager: m,
		store:       store,
		clock:       c,
		log:         log.With("module", "content"),
		newHandle:   func() string { return uuid.New().String() },
	}
}

// Save stores the bytes of r under a fresh handle and records the row.
func (s *ContentService) Save(ctx context.Context, owner *models.Identity, r io.Reader, displayName, mediaType string, labels []string) (*models.ContentObject, error) {
	displayName = orDefault(strings.TrimSpace(displayName), defaultDisplayName)
	mediaType = orDefault(strings.TrimSpace(mediaType), defaultMediaType)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, common.Errorf(common.KindValidation, "Filename must be at most %d characters", maxDisplayNameLen)
	}
	if utf8.RuneCountInString(mediaType) > maxMediaTypeLen {
		return nil, common.Errorf(common.KindValidation, "Content type must be at most %d characters", maxMediaTypeLen)
	}

	handle := s.newHandle()
	locator := blobstore.Locator(handle)

	sum := cryptox.NewChecksum()
	n, err := s.store.Create(ctx, locator, io.TeeReader(r, sum))
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.log.Error(ctx, "handle collision", "kind", common.KindIntegrity.String(), "handle", handle)
			return nil, common.Wrap(common.KindIntegrity, err, "storage locator already occupied")
		}
		return nil, common.Wrap(common.KindInternal, err, "write blob")
	}

	obj := &models.ContentObject{
		Handle:         handle,
		DisplayName:    displayName,
		MediaType:      mediaType,
		ByteSize:       n,
		StorageLocator: locator,
		Checksum:       hex.EncodeToString(sum.Sum(nil)),
		Labels:         NormalizeLabels(labels),
	}

	if err := s.repomanager.Content(s.db).Create(ctx, obj); err != nil {
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), locator); rmErr != nil {
			s.log.Error(ctx, "orphan blob left after failed insert",
				"kind", common.KindStorageInconsistency.String(), "locator", locator, "error", rmErr)
		}
		return nil, common.Wrap(common.KindInternal, err, "insert content row")
	}

	s.log.Info(ctx, "content saved", "handle", handle, "size", n, "owner", ownerName(owner))
	return obj, nil
}

// List returns all objects in creation order, optionally only those
// carrying label.
func (s *ContentService) List(ctx context.Context, _ *models.Identity, label string) ([]*models.ContentObject, error) {
	objs, err := s.repomanager.Content(s.db).List(ctx, strings.TrimSpace(label))
	if err != nil {
		return nil, common.Wrap(common.KindInternal, err, "list content")
	}
	return objs, nil
}

// Metadata returns the row for handle.
func (s *ContentService) Metadata(ctx context.Context, handle string) (*models.ContentObject, error) {
	if !validHandle(handle) {
		return nil, common.Errorf(common.KindNotFound, msgContentNotFound)
	}
	obj, err := s.repomanager.Content(s.db).Get(ctx, handle)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Errorf(common.KindNotFound, msgContentNotFound)
		}
		return nil, common.Wrap(common.KindInternal, err, "get content")
	}
	return obj, nil
}

// Fetch returns the row and verified bytes for handle.
func (s *ContentService) Fetch(ctx context.Context, handle string) (*models.ContentObject, []byte, error) {
	obj, err := s.Metadata(ctx, handle)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, obj.StorageLocator)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "row without blob",
				"kind", common.KindStorageInconsistency.String(), "handle", handle, "locator", obj.StorageLocator)
			return nil, nil, common.Errorf(common.KindNotFound, msgContentNotFound)
		}
		return nil, nil, common.Wrap(common.KindInternal, err, "open blob")
	}
	defer rc.Close()

	var buf bytes.Buffer
	sum := cryptox.NewChecksum()
	if _, err := io.Copy(io.MultiWriter(&buf, sum), rc); err != nil {
		return nil, nil, common.Wrap(common.KindInternal, err, "read blob")
	}

	if got := hex.EncodeToString(sum.Sum(nil)); got != obj.Checksum || int64(buf.Len()) != obj.ByteSize {
		s.log.Error(ctx, "blob does not match its row",
			"kind", common.KindStorageInconsistency.String(), "handle", handle,
			"want_checksum", obj.Checksum, "got_checksum", got, "want_size", obj.ByteSize, "got_size", buf.Len())
		return nil, nil, common.Errorf(common.KindStorageInconsistency, "stored content failed verification")
	}

	return obj, buf.Bytes(), nil
}

// Delete removes the row, then the blob. A blob that cannot be removed
// is logged and left for Sweep; the call still succeeds.
func (s *ContentService) Delete(ctx context.Context, handle string) error {
	if !validHandle(handle) {
		return common.Errorf(common.KindNotFound, msgContentNotFound)
	}

	repo := s.repomanager.Content(s.db)
	obj, err := repo.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.Errorf(common.KindNotFound, msgContentNotFound)
		}
		return common.Wrap(common.KindInternal, err, "get content")
	}

	if err := repo.Delete(ctx, handle); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.Errorf(common.KindNotFound, msgContentNotFound)
		}
		return common.Wrap(common.KindInternal, err, "delete content row")
	}

	if err := s.store.Remove(context.WithoutCancel(ctx), obj.StorageLocator); err != nil {
		s.log.Error(ctx, "blob not removed after row delete",
			"kind", common.KindStorageInconsistency.String(), "handle", handle, "locator", obj.StorageLocator, "error", err)
	}

	s.log.Info(ctx, "content deleted", "handle", handle)
	return nil
}

// Inventory counts catalog rows and their bytes.
func (s *ContentService) Inventory(ctx context.Context) (models.ContentInventory, error) {
	inv, err := s.repomanager.Content(s.db).Inventory(ctx)
	if err != nil {
		return models.ContentInventory{}, common.Wrap(common.KindInternal, err, "content inventory")
	}
	return inv, nil
}

// Sweep removes blobs that have no row and are older than grace. The
// grace period keeps uploads whose row is not yet inserted. It returns
// the number of blobs removed.
func (s *ContentService) Sweep(ctx context.Context, grace time.Duration) (int, error) {
	repo := s.repomanager.Content(s.db)
	now := s.clock.Now()
	removed := 0

	err := s.store.Walk(ctx, func(b blobstore.BlobInfo) error {
		if now.Sub(b.ModTime) < grace {
			return nil
		}
		exists, err := repo.LocatorExists(ctx, b.Locator)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := s.store.Remove(ctx, b.Locator); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "orphan blob not removed", "locator", b.Locator, "error", err)
			return nil
		}
		s.log.Info(ctx, "orphan blob removed", "locator", b.Locator, "size", b.Size)
		removed++
		return nil
	})
	if err != nil {
		return removed, common.Wrap(common.KindInternal, err, "sweep blobs")
	}

	return removed, nil
}

// NormalizeLabels trims labels, drops empties and collapses duplicates,
// keeping first-seen order.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func validHandle(handle string) bool {
	_, err := uuid.Parse(handle)
	return err == nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func ownerName(owner *models.Identity) string {
	if owner == nil {
		return ""
	}
	return owner.Username
}
