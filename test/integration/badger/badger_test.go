//go:build integration

package badger_test

import (
	"context"
	"testing"

	"github.com/lakshmanb4u/v7files/pkg/metadata"
	"github.com/lakshmanb4u/v7files/pkg/metadata/badger"
	"github.com/lakshmanb4u/v7files/pkg/metadata/storetest"
)

// TestBadgerMetadataStore_OnDisk runs the metadata store contract suite
// against an on-disk BadgerDB with synced writes, the configuration a
// production deployment uses.
//
// Run with: go test -tags=integration ./test/integration/badger/...
func TestBadgerMetadataStore_OnDisk(t *testing.T) {
	suite := &storetest.Suite{
		NewStore: func(t *testing.T) metadata.Store {
			store, err := badger.NewBadgerMetadataStore(context.Background(), badger.Options{
				Path:       t.TempDir(),
				SyncWrites: true,
			})
			if err != nil {
				t.Fatalf("Failed to create badger store: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}

	suite.Run(t)
}
