//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"skillchain/internal/sentinel"
	"skillchain/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateModuleTables(s.ctx))
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	record := testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")
	s.Require().NoError(s.store.Create(s.ctx, record))

	byPair, err := s.store.FindByIdentityAndCourse(s.ctx, "learner-1", "course-1")
	s.Require().NoError(err)
	s.Equal(record.LedgerTxRef, byPair.LedgerTxRef)
	s.Equal(record.CredentialID, byPair.CredentialID)
	s.Equal(record.ContentCID, byPair.ContentCID)
	s.Equal(record.CompletionDate, byPair.CompletionDate)

	byTx, err := s.store.FindByTxRef(s.ctx, record.LedgerTxRef)
	s.Require().NoError(err)
	s.Equal(record.IdentityID, byTx.IdentityID)

	byCred, err := s.store.FindByCredentialID(s.ctx, record.CredentialID)
	s.Require().NoError(err)
	s.Equal(record.CourseID, byCred.CourseID)
}

func (s *PostgresStoreSuite) TestNotFound() {
	_, err := s.store.FindByIdentityAndCourse(s.ctx, "learner-1", "course-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByTxRef(s.ctx, "0xmissing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByCredentialID(s.ctx, 42)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCreateDuplicatePair() {
	s.Require().NoError(s.store.Create(s.ctx, testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")))

	err := s.store.Create(s.ctx, testRecord("learner-1", "course-1", 2, "0xbbbb000000000000000000000000000000000000000000000000000000000002"))
	s.ErrorIs(err, sentinel.ErrDuplicate)

	got, err := s.store.FindByIdentityAndCourse(s.ctx, "learner-1", "course-1")
	s.Require().NoError(err)
	s.Equal(uint64(1), got.CredentialID)
}

func (s *PostgresStoreSuite) TestCreateDuplicateTxRef() {
	s.Require().NoError(s.store.Create(s.ctx, testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")))

	// Different pair reusing the same tx ref hits the unique index.
	err := s.store.Create(s.ctx, testRecord("learner-2", "course-2", 2, "0xaaaa000000000000000000000000000000000000000000000000000000000001"))
	s.ErrorIs(err, sentinel.ErrDuplicate)
}

func (s *PostgresStoreSuite) TestDifferentPairsCoexist() {
	s.Require().NoError(s.store.Create(s.ctx, testRecord("learner-1", "course-1", 1, "0xaaaa000000000000000000000000000000000000000000000000000000000001")))
	s.Require().NoError(s.store.Create(s.ctx, testRecord("learner-1", "course-2", 2, "0xbbbb000000000000000000000000000000000000000000000000000000000002")))
	s.Require().NoError(s.store.Create(s.ctx, testRecord("learner-2", "course-1", 3, "0xcccc000000000000000000000000000000000000000000000000000000000003")))

	got, err := s.store.FindByCredentialID(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal("learner-2", got.IdentityID)
}
