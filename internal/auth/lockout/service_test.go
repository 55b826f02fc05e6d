package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fortis/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
	start   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	svc, err := New(s.store, WithConfig(Config{MaxAttempts: 3, Duration: 300 * time.Second}))
	s.Require().NoError(err)
	s.service = svc
	s.start = time.Date(2026, 10, 4, 8, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.start.Add(offset))
}

func (s *ServiceSuite) TestLocksAfterMaxAttempts() {
	key := VoterKey("voter-1")

	for i := 0; i < 2; i++ {
		record, err := s.service.RecordFailure(s.at(time.Duration(i)*time.Second), key)
		s.Require().NoError(err)
		s.Nil(record.LockedUntil)
	}
	status, err := s.service.Check(s.at(2*time.Second), key)
	s.Require().NoError(err)
	s.False(status.Locked)
	s.Equal(2, status.Failures)

	record, err := s.service.RecordFailure(s.at(3*time.Second), key)
	s.Require().NoError(err)
	s.Require().NotNil(record.LockedUntil)
	s.Equal(s.start.Add(303*time.Second), *record.LockedUntil)

	s.Run("locked for the whole duration", func() {
		status, err := s.service.Check(s.at(302*time.Second), key)
		s.Require().NoError(err)
		s.True(status.Locked)
		s.Equal(time.Second, status.RetryAfter)
	})

	s.Run("unlocked once the duration elapses", func() {
		status, err := s.service.Check(s.at(303*time.Second), key)
		s.Require().NoError(err)
		s.False(status.Locked)
		s.Zero(status.Failures)
	})

	s.Run("a failure after expiry starts a new window", func() {
		record, err := s.service.RecordFailure(s.at(400*time.Second), key)
		s.Require().NoError(err)
		s.Equal(1, record.FailureCount)
		s.Nil(record.LockedUntil)
	})
}

func (s *ServiceSuite) TestFailuresOutsideWindowDoNotAccumulate() {
	key := MachineKey("urna-7")
	_, err := s.service.RecordFailure(s.at(0), key)
	s.Require().NoError(err)
	_, err = s.service.RecordFailure(s.at(10*time.Second), key)
	s.Require().NoError(err)

	record, err := s.service.RecordFailure(s.at(301*time.Second), key)
	s.Require().NoError(err)
	s.Equal(1, record.FailureCount)
	s.Nil(record.LockedUntil)
}

func (s *ServiceSuite) TestClearResetsCounters() {
	key := VoterKey("voter-2")
	for i := 0; i < 2; i++ {
		_, err := s.service.RecordFailure(s.at(0), key)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.service.Clear(s.at(0), key))

	record, err := s.service.RecordFailure(s.at(time.Second), key)
	s.Require().NoError(err)
	s.Equal(1, record.FailureCount)
}

func (s *ServiceSuite) TestKeysAreNamespaced() {
	s.NotEqual(VoterKey("42"), MachineKey("42"))
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	if err == nil {
		t.Fatal("expected error for nil store")
	}
}
