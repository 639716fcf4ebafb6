package service

import (
	"time"

	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
	"trustex/pkg/platform/audit"
)

func (s *ServiceSuite) fundedCompany(symbol string, holder id.Principal, amount int64) *models.Company {
	c := s.createCompany(symbol, 100)
	_, err := s.service.Buy(s.ctx, holder, c.ID, amount)
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) transferArgs(to id.Principal, amount int64) models.TransferArgs {
	at := s.now.Add(-time.Second)
	return models.TransferArgs{To: models.Account{Owner: to}, Amount: amount, CreatedAtTime: &at}
}

func (s *ServiceSuite) requireTransferKind(err error, kind models.TransferErrorKind) *models.TransferError {
	s.T().Helper()
	s.Require().Error(err)
	te, ok := models.AsTransferError(err)
	s.Require().True(ok, "expected transfer error, got %v", err)
	s.Equal(kind, te.Kind)
	return te
}

func (s *ServiceSuite) TestTransfer_MovesAmountAndBurnsFee() {
	c := s.fundedCompany("TRF", "alice", 50)

	res, err := s.service.Transfer(s.ctx, "alice", c.ID, s.transferArgs("bob", 20))
	s.Require().NoError(err)
	s.Equal(int64(20), res.Amount)
	s.Equal(int64(10), res.Fee)
	s.Equal(int64(1), res.Index, "buy occupies index 0")

	alice, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "alice"})
	s.Require().NoError(err)
	bob, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "bob"})
	s.Require().NoError(err)
	s.Equal(int64(20), alice)
	s.Equal(int64(20), bob)

	got, err := s.service.GetCompany(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(int64(50), got.Remaining, "transfers do not touch the curve")
	s.Equal(got.Sold()-10, alice+bob, "fee leaves circulation")
	s.Contains(s.emitter.actions(), string(audit.EventTransferExecuted))
}

func (s *ServiceSuite) TestTransfer_DrainingSenderRemovesHolding() {
	c := s.fundedCompany("DRN", "alice", 30)
	_, err := s.service.Transfer(s.ctx, "alice", c.ID, s.transferArgs("bob", 20))
	s.Require().NoError(err)

	_, err = s.service.GetMyHolding(s.ctx, "alice", c.ID)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestTransfer_SubaccountsAndSelfTransfer() {
	c := s.fundedCompany("SUB", "alice", 40)

	args := s.transferArgs("alice", 15)
	args.To.Subaccount = "0a"
	_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
	s.Require().NoError(err)

	sub, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "alice", Subaccount: "0a"})
	s.Require().NoError(err)
	s.Equal(int64(15), sub)

	self := s.transferArgs("alice", 5)
	later := self.CreatedAtTime.Add(time.Millisecond)
	self.CreatedAtTime = &later
	_, err = s.service.Transfer(s.ctx, "alice", c.ID, self)
	s.Require().NoError(err)

	main, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "alice"})
	s.Require().NoError(err)
	s.Equal(int64(40-15-10-10), main, "self transfer only burns the fee")
}

func (s *ServiceSuite) TestTransfer_Rejections() {
	c := s.fundedCompany("REJ", "alice", 50)

	s.Run("unknown token", func() {
		_, err := s.service.Transfer(s.ctx, "alice", id.NewCompanyID(), s.transferArgs("bob", 1))
		s.requireTransferKind(err, models.TransferInvalidToken)
		s.requireCode(err, dErrors.CodeProtocolRejected)
	})

	s.Run("zero amount", func() {
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, s.transferArgs("bob", 0))
		s.requireTransferKind(err, models.TransferRejected)
	})

	s.Run("memo too long", func() {
		args := s.transferArgs("bob", 1)
		args.Memo = make([]byte, models.MaxMemoBytes+1)
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
		s.requireTransferKind(err, models.TransferRejected)
	})

	s.Run("fee below configured", func() {
		args := s.transferArgs("bob", 1)
		args.Fee = ptr(9)
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
		te := s.requireTransferKind(err, models.TransferBadFee)
		s.Equal(int64(10), te.ExpectedFee)
	})

	s.Run("missing created_at_time", func() {
		args := s.transferArgs("bob", 1)
		args.CreatedAtTime = nil
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
		s.requireTransferKind(err, models.TransferRejected)
	})

	s.Run("too old", func() {
		args := s.transferArgs("bob", 1)
		old := s.now.Add(-5*time.Minute - 31*time.Second)
		args.CreatedAtTime = &old
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
		te := s.requireTransferKind(err, models.TransferTooOld)
		s.True(te.LedgerTime.Equal(s.now))
	})

	s.Run("created in future", func() {
		args := s.transferArgs("bob", 1)
		future := s.now.Add(31 * time.Second)
		args.CreatedAtTime = &future
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
		s.requireTransferKind(err, models.TransferCreatedInFuture)
	})

	s.Run("inside drift is accepted", func() {
		args := s.transferArgs("bob", 1)
		future := s.now.Add(30 * time.Second)
		args.CreatedAtTime = &future
		_, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
		s.Require().NoError(err)
	})

	s.Run("insufficient funds counts the fee", func() {
		bal, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "alice"})
		s.Require().NoError(err)
		_, err = s.service.Transfer(s.ctx, "alice", c.ID, s.transferArgs("bob", bal-9))
		te := s.requireTransferKind(err, models.TransferInsufficientFunds)
		s.Equal(bal, te.Balance)
		s.requireCode(err, dErrors.CodeStateRejected)
	})

	s.Run("rejections leave balances untouched", func() {
		bob, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "bob"})
		s.Require().NoError(err)
		s.Equal(int64(1), bob)
	})

	s.Contains(s.emitter.actions(), string(audit.EventTransferRejected))
}

func (s *ServiceSuite) TestTransfer_DuplicateWithinWindow() {
	c := s.fundedCompany("DPL", "alice", 60)
	args := s.transferArgs("bob", 5)
	args.Memo = []byte("invoice-7")

	first, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
	s.Require().NoError(err)

	_, err = s.service.Transfer(s.ctx, "alice", c.ID, args)
	te := s.requireTransferKind(err, models.TransferDuplicate)
	s.Equal(first.Index, te.DuplicateOf)

	args.Memo = []byte("invoice-8")
	_, err = s.service.Transfer(s.ctx, "alice", c.ID, args)
	s.NoError(err, "different memo is a different request")
}

func (s *ServiceSuite) TestTransfer_HigherFeeIsCharged() {
	c := s.fundedCompany("FEE", "alice", 50)
	args := s.transferArgs("bob", 5)
	args.Fee = ptr(15)
	res, err := s.service.Transfer(s.ctx, "alice", c.ID, args)
	s.Require().NoError(err)
	s.Equal(int64(15), res.Fee)

	alice, err := s.service.BalanceOf(s.ctx, c.ID, models.Account{Owner: "alice"})
	s.Require().NoError(err)
	s.Equal(int64(30), alice)
}
