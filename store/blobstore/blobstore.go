// Package blobstore is an Azure Blob Storage-backed nbtree.BlockStore.
// LogicAddr is a monotonically increasing counter minted locally and mapped
// to a blob name under a uuid prefix that each Store mints when opened;
// Commit uploads, Read downloads. A Store reads back only the pages it
// committed itself: pages committed through another Store, in this process
// or another, are not addressable through it.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/akumulidb/nbtree"
	"github.com/akumulidb/nbtree/internal/xlog"
)

// Store commits pages as blobs inside one container, each named by a
// per-Store uuid prefix (so two Stores can safely share a container) and a
// locally-minted, monotonically increasing counter.
type Store struct {
	log       *zap.Logger
	client    *azblob.Client
	container string
	prefix    string
	next      atomic.Uint64
}

// Open connects to an Azure Storage account via connectionString and
// returns a Store committing pages as blobs in container, which must
// already exist. log, if nil, defaults to a no-op logger.
func Open(ctx context.Context, connectionString, container string, log *zap.Logger) (*Store, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "blobstore: connecting")
	}
	return &Store{
		log:       xlog.Or(log),
		client:    client,
		container: container,
		prefix:    uuid.NewString(),
	}, nil
}

func (s *Store) blobName(addr nbtree.LogicAddr) string {
	return fmt.Sprintf("%s/%016x", s.prefix, uint64(addr))
}

// Commit uploads page as a new blob and returns the address it was minted
// under.
func (s *Store) Commit(page []byte) (nbtree.LogicAddr, error) {
	if len(page) == 0 {
		return nbtree.EmptyAddr, errors.WithStack(nbtree.ErrBadArg)
	}

	addr := nbtree.LogicAddr(s.next.Add(1) - 1)
	ctx := context.Background()

	if _, err := s.client.UploadBuffer(ctx, s.container, s.blobName(addr), page, nil); err != nil {
		return nbtree.EmptyAddr, errors.Wrap(err, "blobstore: uploading page")
	}

	s.log.Debug("blobstore: commit", zap.Uint64("addr", uint64(addr)), zap.Int("size", len(page)))
	return addr, nil
}

// Read downloads the blob committed at addr.
func (s *Store) Read(addr nbtree.LogicAddr) ([]byte, error) {
	ctx := context.Background()

	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(addr), nil)
	if err != nil {
		s.log.Debug("blobstore: download failed", zap.Uint64("addr", uint64(addr)), zap.Error(err))
		return nil, errors.Wrap(err, "blobstore: downloading page")
	}
	defer resp.Body.Close()

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "blobstore: reading page body")
	}
	return page, nil
}

var _ nbtree.BlockStore = (*Store)(nil)
