//go:build integration

package certificate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fortis/internal/auth/certificate"
	"fortis/pkg/testutil/containers"
)

type RedisRevocationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	list  *certificate.RedisRevocationList
}

func TestRedisRevocationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisRevocationSuite))
}

func (s *RedisRevocationSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.list = certificate.NewRedisRevocationList(s.redis.Client)
}

func (s *RedisRevocationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisRevocationSuite) TestRevokeAndCheck() {
	ctx := context.Background()
	revoked, err := s.list.IsRevoked(ctx, "SN-1")
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.list.Revoke(ctx, "SN-1", time.Hour))
	revoked, err = s.list.IsRevoked(ctx, "SN-1")
	s.Require().NoError(err)
	s.True(revoked)
}
