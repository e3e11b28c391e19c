//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mailguard/internal/fingerprint/ports"
	"mailguard/pkg/testutil/containers"
)

func TestPostgresStoreContract(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	suite.Run(t, &StoreContractSuite{
		newStore: func() ports.Store {
			require.NoError(t, pg.Truncate(context.Background(), "device_fingerprints"))
			return NewPostgresStore(pg.DB)
		},
		atomic: true,
	})
}

func TestRedisStoreContractRealRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	suite.Run(t, &StoreContractSuite{
		newStore: func() ports.Store {
			require.NoError(t, rc.Reset(context.Background()))
			return NewRedisStore(rc.Client, 0)
		},
		atomic: true,
	})
}

func TestKVStoreContractRealRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	suite.Run(t, &StoreContractSuite{
		newStore: func() ports.Store {
			require.NoError(t, rc.Reset(context.Background()))
			return NewKVStore(rc.Client, "", 0)
		},
	})
}
