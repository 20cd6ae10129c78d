package token

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"sto-gateway/internal/audit"
	"sto-gateway/internal/domain"
	"sto-gateway/internal/escrow"
	"sto-gateway/internal/registry"
	"sto-gateway/internal/token/metrics"
	"sto-gateway/pkg/clock"
	dErrors "sto-gateway/pkg/domain-errors"
	"sto-gateway/pkg/fixedpoint"
)

const (
	ownerAddr  = domain.Address("0xowner")
	aliceAddr  = domain.Address("0xalice")
	bobAddr    = domain.Address("0xbob")
	oracleAddr = domain.Address("0xoracle")
	escrowAddr = domain.Address("0xescrow")

	ownerEIN  = domain.EIN(1)
	aliceEIN  = domain.EIN(10)
	bobEIN    = domain.EIN(11)
	oracleEIN = domain.EIN(20)
)

type ServiceSuite struct {
	suite.Suite

	ctx      context.Context
	clock    *clock.Fake
	identity *registry.InMemoryIdentityRegistry
	buyers   *registry.InMemoryBuyerRegistry
	ledger   *escrow.InMemoryLedger
	audits   *audit.InMemoryStore
	svc      *Service
	tokenID  uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.tokenID = uuid.New()

	s.identity = registry.NewInMemoryIdentityRegistry()
	s.identity.Register(ownerAddr, ownerEIN)
	s.identity.Register(aliceAddr, aliceEIN)
	s.identity.Register(bobAddr, bobEIN)
	s.identity.Register(oracleAddr, oracleEIN)

	s.buyers = registry.NewInMemoryBuyerRegistry()
	for _, ein := range []domain.EIN{aliceEIN, bobEIN} {
		s.Require().NoError(s.buyers.AddBuyer(registry.Buyer{
			EIN:       ein,
			FirstName: "Test",
			LastName:  "Investor",
			Country:   "CH",
			BirthDate: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC),
			NetWorth:  500_000,
			Salary:    90_000,
		}))
		s.Require().NoError(s.buyers.SetKYCStatus(ein, true))
	}

	s.ledger = escrow.NewInMemoryLedger()
	s.Require().NoError(s.ledger.Mint(aliceAddr, fixedpoint.Units(1_000)))
	s.ledger.Approve(aliceAddr, escrowAddr, fixedpoint.Units(1_000))
	s.Require().NoError(s.ledger.Mint(bobAddr, fixedpoint.Units(1_000)))
	s.ledger.Approve(bobAddr, escrowAddr, fixedpoint.Units(1_000))

	s.audits = audit.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := New(Config{
		Token:         domain.Token{ID: s.tokenID, Symbol: "HST", Name: "Hydro Security Token", Decimals: 18, OwnerEIN: ownerEIN},
		EscrowAddress: escrowAddr,
		Investors:     NewInMemoryInvestorStore(),
		Periods:       NewInMemoryPeriodStore(),
		Identity:      s.identity,
		Buyers:        s.buyers,
		Payment:       s.ledger,
		Auditor:       audit.NewPublisher(s.audits, logger),
		Metrics:       metrics.NewWith(prometheus.NewRegistry()),
		Logger:        logger,
		Clock:         s.clock,
	})
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) mainParams() domain.MainParams {
	now := s.clock.Now()
	return domain.MainParams{
		HydroPrice:    fixedpoint.One(),
		BeginningDate: now,
		LockEnds:      now.Add(30 * 24 * time.Hour),
		EndDate:       now.Add(365 * 24 * time.Hour),
		MaxSupply:     fixedpoint.Units(1_000),
	}
}

func (s *ServiceSuite) stoParams() domain.StoParams {
	return domain.StoParams{
		PercAllowedTokens: fixedpoint.One(),
		HydroAllowed:      fixedpoint.Units(1_000),
		MinInvestors:      1,
		MaxInvestors:      10,
	}
}

// launch configures the offering and moves it to the sale stage.
func (s *ServiceSuite) launch(flags domain.StoFlags, sto domain.StoParams) {
	s.T().Helper()
	s.Require().NoError(s.svc.SetMainParams(s.ctx, ownerAddr, s.mainParams()))
	s.Require().NoError(s.svc.SetStoFlags(s.ctx, ownerAddr, flags))
	s.Require().NoError(s.svc.SetStoParams(s.ctx, ownerAddr, sto))
	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StagePresale))
	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageSale))
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Require().Equal(code, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestStageLifecycle() {
	s.Run("only the owner advances", func() {
		err := s.svc.AdvanceStage(s.ctx, aliceAddr, domain.StagePresale)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("presale requires parameters", func() {
		err := s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StagePresale)
		s.requireCode(err, dErrors.CodePreconditionNotMet)
	})

	s.Run("stages cannot be skipped", func() {
		s.Require().NoError(s.svc.SetMainParams(s.ctx, ownerAddr, s.mainParams()))
		s.Require().NoError(s.svc.SetStoParams(s.ctx, ownerAddr, s.stoParams()))

		err := s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageSale)
		s.requireCode(err, dErrors.CodeInvalidTransition)
	})

	s.Run("forward only", func() {
		s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StagePresale))
		err := s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StagePrelaunch)
		s.requireCode(err, dErrors.CodeInvalidTransition)
		s.Require().Equal(domain.StagePresale, s.svc.Stage())
	})

	s.Run("market requires lock expiry", func() {
		s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageSale))
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(2))
		s.Require().NoError(err)
		s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageLock))

		err = s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageMarket)
		s.requireCode(err, dErrors.CodePreconditionNotMet)

		s.clock.Advance(31 * 24 * time.Hour)
		s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageMarket))
	})
}

func (s *ServiceSuite) TestParamsImmutableAfterPrelaunch() {
	s.launch(domain.StoFlags{}, s.stoParams())

	err := s.svc.SetMainParams(s.ctx, ownerAddr, s.mainParams())
	s.requireCode(err, dErrors.CodePreconditionNotMet)
	err = s.svc.SetStoFlags(s.ctx, ownerAddr, domain.StoFlags{PeriodLocked: true})
	s.requireCode(err, dErrors.CodePreconditionNotMet)
	err = s.svc.SetStoParams(s.ctx, ownerAddr, s.stoParams())
	s.requireCode(err, dErrors.CodePreconditionNotMet)
}

func (s *ServiceSuite) TestBuyTokens() {
	s.launch(domain.StoFlags{}, s.stoParams())

	s.Run("admitted buyer receives tokens and escrow is funded", func() {
		receipt, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(12))
		s.Require().NoError(err)
		s.Require().True(receipt.TokensIssued.Equal(fixedpoint.Units(12)))
		s.Require().True(receipt.NewBalance.Equal(fixedpoint.Units(12)))

		balance, err := s.svc.BalanceOf(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Require().True(balance.Equal(fixedpoint.Units(12)))

		held, err := s.ledger.BalanceOf(s.ctx, escrowAddr)
		s.Require().NoError(err)
		s.Require().True(held.Equal(fixedpoint.Units(12)))
	})

	s.Run("unknown address is rejected", func() {
		_, err := s.svc.BuyTokens(s.ctx, domain.Address("0xstranger"), fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodeComplianceRejected)
	})

	s.Run("revoked KYC blocks, re-approval readmits", func() {
		s.Require().NoError(s.buyers.SetKYCStatus(aliceEIN, false))
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodeComplianceRejected)
		s.Require().ErrorContains(err, "KYC not approved")

		s.Require().NoError(s.buyers.SetKYCStatus(aliceEIN, true))
		_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.Require().NoError(err)
	})

	s.Run("zero amount is rejected", func() {
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Zero())
		s.requireCode(err, dErrors.CodeBadRequest)
	})

	s.Run("supply cap is enforced", func() {
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(988))
		s.requireCode(err, dErrors.CodeCapExceeded)
		s.Require().ErrorContains(err, "maximum supply exceeded")
	})

	s.Run("allowance shortfall fails cleanly", func() {
		s.ledger.Approve(aliceAddr, escrowAddr, fixedpoint.Zero())
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodePreconditionNotMet)

		// Failed admission leaves state untouched.
		balance, err := s.svc.BalanceOf(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Require().True(balance.Equal(fixedpoint.Units(13)))
	})
}

func (s *ServiceSuite) TestBuyStageGating() {
	s.Require().NoError(s.svc.SetMainParams(s.ctx, ownerAddr, s.mainParams()))
	s.Require().NoError(s.svc.SetStoParams(s.ctx, ownerAddr, s.stoParams()))

	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.requireCode(err, dErrors.CodePreconditionNotMet)

	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StagePresale))
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.requireCode(err, dErrors.CodePreconditionNotMet)

	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageSale))
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageLock))
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.requireCode(err, dErrors.CodePreconditionNotMet)

	s.clock.Advance(31 * 24 * time.Hour)
	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageMarket))
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestWhitelistAndBlacklist() {
	s.launch(domain.StoFlags{WhitelistRestricted: true, BlacklistRestricted: true}, s.stoParams())

	s.Run("whitelist gate", func() {
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodeComplianceRejected)
		s.Require().ErrorContains(err, "not whitelisted")

		s.Require().NoError(s.svc.AddWhitelist(s.ctx, ownerAddr, []domain.EIN{aliceEIN}))
		_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.Require().NoError(err)
	})

	s.Run("blacklist overrides whitelist", func() {
		s.Require().NoError(s.svc.AddBlacklist(s.ctx, ownerAddr, []domain.EIN{aliceEIN}))
		_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodeComplianceRejected)
		s.Require().ErrorContains(err, "blacklisted")

		s.Require().NoError(s.svc.RemoveBlacklist(s.ctx, ownerAddr, []domain.EIN{aliceEIN}))
		_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
		s.Require().NoError(err)
	})

	s.Run("list edits are owner only", func() {
		err := s.svc.AddWhitelist(s.ctx, aliceAddr, []domain.EIN{bobEIN})
		s.requireCode(err, dErrors.CodeUnauthorized)
	})
}

func (s *ServiceSuite) TestOwnershipCaps() {
	sto := s.stoParams()
	sto.PercAllowedTokens = fixedpoint.MustParse("0.5")
	s.launch(domain.StoFlags{LimitedOwnership: true, PercOwnershipType: true}, sto)

	// The cap is checked against post-buy supply, so a sole investor can
	// never clear a sub-100% percentage cap.
	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(10))
	s.requireCode(err, dErrors.CodeCapExceeded)
}

func (s *ServiceSuite) TestHydroAmountCap() {
	sto := s.stoParams()
	sto.HydroAllowed = fixedpoint.Units(10)
	s.launch(domain.StoFlags{LimitedOwnership: true, HydroAmountType: true}, sto)

	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(8))
	s.Require().NoError(err)
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(3))
	s.requireCode(err, dErrors.CodeCapExceeded)
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(2))
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestMaxInvestors() {
	sto := s.stoParams()
	sto.MaxInvestors = 1
	s.launch(domain.StoFlags{}, sto)

	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.Require().NoError(err)

	// Existing holders keep buying; only new holders hit the ceiling.
	_, err = s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(1))
	s.Require().NoError(err)
	_, err = s.svc.BuyTokens(s.ctx, bobAddr, fixedpoint.Units(1))
	s.requireCode(err, dErrors.CodeCapExceeded)
	s.Require().ErrorContains(err, "maximum investor count reached")
}

func (s *ServiceSuite) TestTransfer() {
	s.launch(domain.StoFlags{}, s.stoParams())
	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(10))
	s.Require().NoError(err)

	s.Run("moves balance between compliant holders", func() {
		s.Require().NoError(s.svc.Transfer(s.ctx, aliceAddr, bobAddr, fixedpoint.Units(4)))

		alice, err := s.svc.BalanceOf(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Require().True(alice.Equal(fixedpoint.Units(6)))
		bob, err := s.svc.BalanceOf(s.ctx, bobAddr)
		s.Require().NoError(err)
		s.Require().True(bob.Equal(fixedpoint.Units(4)))
	})

	s.Run("recipient must clear compliance", func() {
		s.Require().NoError(s.buyers.SetKYCStatus(bobEIN, false))
		err := s.svc.Transfer(s.ctx, aliceAddr, bobAddr, fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodeComplianceRejected)
		s.Require().NoError(s.buyers.SetKYCStatus(bobEIN, true))
	})

	s.Run("overdraw is rejected", func() {
		err := s.svc.Transfer(s.ctx, bobAddr, aliceAddr, fixedpoint.Units(100))
		s.requireCode(err, dErrors.CodeArithmeticBounds)
		s.Require().ErrorContains(err, "insufficient token balance")
	})

	s.Run("self transfer is rejected", func() {
		err := s.svc.Transfer(s.ctx, aliceAddr, aliceAddr, fixedpoint.Units(1))
		s.requireCode(err, dErrors.CodeBadRequest)
	})
}

func (s *ServiceSuite) TestTransferPeriodLock() {
	s.launch(domain.StoFlags{PeriodLocked: true}, s.stoParams())
	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(10))
	s.Require().NoError(err)
	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageLock))

	err = s.svc.Transfer(s.ctx, aliceAddr, bobAddr, fixedpoint.Units(1))
	s.requireCode(err, dErrors.CodePreconditionNotMet)
	s.Require().ErrorContains(err, "locked")

	s.clock.Advance(31 * 24 * time.Hour)
	s.Require().NoError(s.svc.AdvanceStage(s.ctx, ownerAddr, domain.StageMarket))
	s.Require().NoError(s.svc.Transfer(s.ctx, aliceAddr, bobAddr, fixedpoint.Units(1)))
}

func (s *ServiceSuite) TestPaymentPeriodBoundaries() {
	s.launch(domain.StoFlags{}, s.stoParams())
	now := s.clock.Now()

	s.Run("owner only", func() {
		err := s.svc.AddPaymentPeriodBoundaries(s.ctx, aliceAddr, []time.Time{now.Add(time.Hour)})
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("rejects past boundaries", func() {
		err := s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{now.Add(-time.Hour)})
		s.requireCode(err, dErrors.CodePreconditionNotMet)
	})

	s.Run("rejects non-increasing batch atomically", func() {
		batch := []time.Time{now.Add(time.Hour), now.Add(3 * time.Hour), now.Add(2 * time.Hour)}
		err := s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, batch)
		s.requireCode(err, dErrors.CodeNonMonotonicBoundaries)

		stored, err := s.svc.PaymentPeriodBoundaries(s.ctx)
		s.Require().NoError(err)
		s.Require().Empty(stored)
	})

	s.Run("appends and enforces ordering across batches", func() {
		first := []time.Time{now.Add(time.Hour), now.Add(2 * time.Hour)}
		s.Require().NoError(s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, first))

		err := s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{now.Add(90 * time.Minute)})
		s.requireCode(err, dErrors.CodeNonMonotonicBoundaries)

		s.Require().NoError(s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{now.Add(3 * time.Hour)}))
		stored, err := s.svc.PaymentPeriodBoundaries(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(stored, 3)
	})

	s.Run("current period counts passed boundaries", func() {
		period, err := s.svc.CurrentPeriod(s.ctx)
		s.Require().NoError(err)
		s.Require().Zero(period)

		s.clock.Advance(2*time.Hour + time.Minute)
		period, err = s.svc.CurrentPeriod(s.ctx)
		s.Require().NoError(err)
		s.Require().Equal(2, period)
	})
}

func (s *ServiceSuite) TestOracleReporting() {
	s.launch(domain.StoFlags{}, s.stoParams())
	now := s.clock.Now()
	s.Require().NoError(s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{now.Add(time.Hour)}))
	s.Require().NoError(s.svc.AddHydroOracle(s.ctx, ownerAddr, oracleAddr))

	s.Run("no report before a period opens", func() {
		err := s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(5))
		s.requireCode(err, dErrors.CodePreconditionNotMet)
		s.Require().ErrorContains(err, "no payment period is open")
	})

	s.Run("only the designated oracle reports", func() {
		s.clock.Advance(2 * time.Hour)
		err := s.svc.NotifyPeriodResults(s.ctx, aliceAddr, fixedpoint.Units(5))
		s.requireCode(err, dErrors.CodeStaleOracle)
	})

	s.Run("one report per period", func() {
		s.Require().NoError(s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(5)))
		err := s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(7))
		s.requireCode(err, dErrors.CodePeriodAlreadyReported)
	})
}

// TestDistributionScenario runs the full profit-sharing flow: buy, two
// boundary crossings, a mid-period transfer, oracle reports and proportional
// claims with truncating rates.
func (s *ServiceSuite) TestDistributionScenario() {
	s.launch(domain.StoFlags{}, s.stoParams())
	start := s.clock.Now()
	b1 := start.Add(10 * 24 * time.Hour)
	b2 := start.Add(20 * 24 * time.Hour)
	s.Require().NoError(s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{b1, b2}))
	s.Require().NoError(s.svc.AddHydroOracle(s.ctx, ownerAddr, oracleAddr))

	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(12))
	s.Require().NoError(err)

	// Period 1 opens; the boundary snapshot has alice holding all 12.
	s.clock.Set(b1.Add(time.Hour))
	s.Require().NoError(s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(5)))

	res, err := s.svc.ClaimPayment(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Require().Equal(1, res.PeriodsSettled)
	s.Require().True(res.TotalPaid.Equal(fixedpoint.Units(5)))
	s.Require().True(res.Payments[0].ParticipationRate.Equal(fixedpoint.One()))

	// Transfer inside period 1 shapes period 2's snapshot only.
	s.Require().NoError(s.svc.Transfer(s.ctx, aliceAddr, bobAddr, fixedpoint.MustParse("1.2")))

	s.clock.Set(b2.Add(time.Hour))
	s.Require().NoError(s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(4)))

	s.Run("alice claims her reduced share", func() {
		res, err := s.svc.ClaimPayment(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Require().Equal(1, res.PeriodsSettled)
		s.Require().True(res.Payments[0].ParticipationRate.Equal(fixedpoint.MustParse("0.9")))
		s.Require().True(res.TotalPaid.Equal(fixedpoint.MustParse("3.6")))
	})

	s.Run("bob settles both periods in one call", func() {
		res, err := s.svc.ClaimPayment(s.ctx, bobAddr)
		s.Require().NoError(err)
		s.Require().Equal(2, res.PeriodsSettled)
		// Absent from the period 1 snapshot, bob earns nothing there.
		s.Require().True(res.Payments[0].Payment.IsZero())
		s.Require().True(res.Payments[1].ParticipationRate.Equal(fixedpoint.MustParse("0.1")))
		s.Require().True(res.TotalPaid.Equal(fixedpoint.MustParse("0.4")))
	})

	s.Run("repeat claim is a zero no-op", func() {
		res, err := s.svc.ClaimPayment(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Require().Zero(res.PeriodsSettled)
		s.Require().True(res.TotalPaid.IsZero())
	})

	s.Run("escrow paid out exactly the claimed total", func() {
		held, err := s.ledger.BalanceOf(s.ctx, escrowAddr)
		s.Require().NoError(err)
		s.Require().True(held.Equal(fixedpoint.Units(3)))
	})
}

func (s *ServiceSuite) TestClaimWithoutHoldings() {
	s.launch(domain.StoFlags{}, s.stoParams())

	_, err := s.svc.ClaimPayment(s.ctx, bobAddr)
	s.requireCode(err, dErrors.CodePreconditionNotMet)
	s.Require().ErrorContains(err, "holds no tokens")
}

func (s *ServiceSuite) TestOraclePriceUpdateRequiresFlag() {
	s.launch(domain.StoFlags{}, s.stoParams())
	s.Require().NoError(s.svc.AddHydroOracle(s.ctx, ownerAddr, oracleAddr))

	err := s.svc.UpdateHydroPrice(s.ctx, oracleAddr, fixedpoint.Units(2))
	s.requireCode(err, dErrors.CodePreconditionNotMet)
}

func (s *ServiceSuite) TestOraclePriceUpdateDrivesConversion() {
	s.launch(domain.StoFlags{HydroOracleEnabled: true}, s.stoParams())
	s.Require().NoError(s.svc.AddHydroOracle(s.ctx, ownerAddr, oracleAddr))

	err := s.svc.UpdateHydroPrice(s.ctx, aliceAddr, fixedpoint.Units(2))
	s.requireCode(err, dErrors.CodeStaleOracle)

	s.Require().NoError(s.svc.UpdateHydroPrice(s.ctx, oracleAddr, fixedpoint.Units(2)))
	receipt, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(10))
	s.Require().NoError(err)
	s.Require().True(receipt.TokensIssued.Equal(fixedpoint.Units(5)))
}

func (s *ServiceSuite) TestAuditTrail() {
	s.launch(domain.StoFlags{}, s.stoParams())
	before := len(s.audits.All())

	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(3))
	s.Require().NoError(err)

	events := s.audits.All()
	s.Require().Len(events, before+1)
	last := events[len(events)-1]
	s.Require().Equal(audit.ActionTokensBought, last.Action)
	s.Require().Equal(string(aliceAddr), last.Actor)
	s.Require().Equal(s.tokenID.String(), last.TokenID)
}

type failingAuditor struct{ err error }

func (f failingAuditor) Emit(context.Context, audit.Event) error { return f.err }

// A dead audit trail must block mutations, not silently drop them.
func TestAuditFailClosed(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	identity := registry.NewInMemoryIdentityRegistry()
	identity.Register(ownerAddr, ownerEIN)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := New(Config{
		Token:         domain.Token{ID: uuid.New(), Symbol: "HST", OwnerEIN: ownerEIN},
		EscrowAddress: escrowAddr,
		Investors:     NewInMemoryInvestorStore(),
		Periods:       NewInMemoryPeriodStore(),
		Identity:      identity,
		Buyers:        registry.NewInMemoryBuyerRegistry(),
		Payment:       escrow.NewInMemoryLedger(),
		Auditor:       failingAuditor{err: errors.New("audit store down")},
		Logger:        logger,
		Clock:         fake,
	})
	require.NoError(t, err)

	params := domain.MainParams{
		HydroPrice:    fixedpoint.One(),
		BeginningDate: fake.Now(),
		LockEnds:      fake.Now().Add(time.Hour),
		EndDate:       fake.Now().Add(2 * time.Hour),
		MaxSupply:     fixedpoint.Units(100),
	}
	err = svc.SetMainParams(context.Background(), ownerAddr, params)
	require.Error(t, err)
	require.Equal(t, domain.StagePrelaunch, svc.Stage())
}

// actionFailingAuditor forwards to the wrapped auditor except for one
// action, which always errors. Lets a test break exactly one emit.
type actionFailingAuditor struct {
	inner  Auditor
	action string
	err    error
}

func (f *actionFailingAuditor) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == f.action {
		return f.err
	}
	return f.inner.Emit(ctx, event)
}

// A buy whose audit write fails must not leave the buyer's payment parked in
// escrow with no tokens issued.
func (s *ServiceSuite) TestBuyUnwindsEscrowWhenAuditFails() {
	s.launch(domain.StoFlags{}, s.stoParams())
	s.svc.auditor = &actionFailingAuditor{
		inner:  s.svc.auditor,
		action: audit.ActionTokensBought,
		err:    errors.New("audit store down"),
	}

	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(10))
	s.Require().Error(err)

	held, err := s.ledger.BalanceOf(s.ctx, escrowAddr)
	s.Require().NoError(err)
	s.Require().True(held.IsZero())
	funds, err := s.ledger.BalanceOf(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Require().True(funds.Equal(fixedpoint.Units(1_000)))

	balance, err := s.svc.BalanceOf(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Require().True(balance.IsZero())
	info := s.svc.Info(s.ctx)
	s.Require().True(info.TotalSupply.IsZero())
	s.Require().Zero(info.InvestorCount)
}

// A failed payout must leave no claimed event behind and keep the claim
// retryable.
func (s *ServiceSuite) TestClaimRecordsOnlySettledPayouts() {
	s.launch(domain.StoFlags{}, s.stoParams())
	start := s.clock.Now()
	s.Require().NoError(s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{start.Add(time.Hour)}))
	s.Require().NoError(s.svc.AddHydroOracle(s.ctx, ownerAddr, oracleAddr))
	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(12))
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Hour)
	s.Require().NoError(s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(5)))

	// Drain escrow outside the engine so the payout transfer fails.
	held, err := s.ledger.BalanceOf(s.ctx, escrowAddr)
	s.Require().NoError(err)
	s.Require().NoError(s.ledger.Transfer(s.ctx, escrowAddr, bobAddr, held))

	before := len(s.audits.All())
	_, err = s.svc.ClaimPayment(s.ctx, aliceAddr)
	s.Require().Error(err)
	s.Require().Len(s.audits.All(), before)

	// The cursor did not advance; refunding escrow makes the claim land.
	s.Require().NoError(s.ledger.Transfer(s.ctx, bobAddr, escrowAddr, held))
	res, err := s.svc.ClaimPayment(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Require().Equal(1, res.PeriodsSettled)
	s.Require().True(res.TotalPaid.Equal(fixedpoint.Units(5)))
}

// A claim whose audit write fails must return the payout to escrow and keep
// the claim cursor where it was.
func (s *ServiceSuite) TestClaimUnwindsPayoutWhenAuditFails() {
	s.launch(domain.StoFlags{}, s.stoParams())
	start := s.clock.Now()
	s.Require().NoError(s.svc.AddPaymentPeriodBoundaries(s.ctx, ownerAddr, []time.Time{start.Add(time.Hour)}))
	s.Require().NoError(s.svc.AddHydroOracle(s.ctx, ownerAddr, oracleAddr))
	_, err := s.svc.BuyTokens(s.ctx, aliceAddr, fixedpoint.Units(12))
	s.Require().NoError(err)

	s.clock.Advance(2 * time.Hour)
	s.Require().NoError(s.svc.NotifyPeriodResults(s.ctx, oracleAddr, fixedpoint.Units(5)))

	inner := s.svc.auditor
	s.svc.auditor = &actionFailingAuditor{
		inner:  inner,
		action: audit.ActionPaymentClaimed,
		err:    errors.New("audit store down"),
	}
	fundsBefore, err := s.ledger.BalanceOf(s.ctx, aliceAddr)
	s.Require().NoError(err)

	_, err = s.svc.ClaimPayment(s.ctx, aliceAddr)
	s.Require().Error(err)

	held, err := s.ledger.BalanceOf(s.ctx, escrowAddr)
	s.Require().NoError(err)
	s.Require().True(held.Equal(fixedpoint.Units(12)))
	funds, err := s.ledger.BalanceOf(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Require().True(funds.Equal(fundsBefore))

	// With the audit trail back, the same periods settle normally.
	s.svc.auditor = inner
	res, err := s.svc.ClaimPayment(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Require().Equal(1, res.PeriodsSettled)
	s.Require().True(res.TotalPaid.Equal(fixedpoint.Units(5)))
}

func TestInvestorStorePutPair(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryInvestorStore()

	a := Investor{Address: aliceAddr, EIN: aliceEIN, Balance: fixedpoint.Units(6), HydroSpent: fixedpoint.Units(10)}
	b := Investor{Address: bobAddr, EIN: bobEIN, Balance: fixedpoint.Units(4), HydroSpent: fixedpoint.Zero()}
	require.NoError(t, store.PutPair(ctx, a, b))

	got, err := store.Get(ctx, bobAddr)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(fixedpoint.Units(4)))

	a.Balance = fixedpoint.Units(2)
	b.Balance = fixedpoint.Units(8)
	require.NoError(t, store.PutPair(ctx, a, b))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].Balance.Equal(fixedpoint.Units(2)))
	require.True(t, list[1].Balance.Equal(fixedpoint.Units(8)))
}

// A rebuilt service over the same stores must resume at the committed stage
// with the supply and investor count the records imply, not at prelaunch.
func TestRestoreResumesInstance(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokenID := uuid.New()

	identity := registry.NewInMemoryIdentityRegistry()
	identity.Register(ownerAddr, ownerEIN)
	identity.Register(aliceAddr, aliceEIN)
	identity.Register(oracleAddr, oracleEIN)

	buyers := registry.NewInMemoryBuyerRegistry()
	require.NoError(t, buyers.AddBuyer(registry.Buyer{
		EIN:       aliceEIN,
		Country:   "CH",
		BirthDate: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, buyers.SetKYCStatus(aliceEIN, true))

	ledger := escrow.NewInMemoryLedger()
	require.NoError(t, ledger.Mint(aliceAddr, fixedpoint.Units(100)))
	ledger.Approve(aliceAddr, escrowAddr, fixedpoint.Units(100))

	investors := NewInMemoryInvestorStore()
	periods := NewInMemoryPeriodStore()
	state := NewInMemoryStateStore()

	build := func() *Service {
		svc, err := New(Config{
			Token:         domain.Token{ID: tokenID, Symbol: "HST", OwnerEIN: ownerEIN},
			EscrowAddress: escrowAddr,
			Investors:     investors,
			Periods:       periods,
			State:         state,
			Identity:      identity,
			Buyers:        buyers,
			Payment:       ledger,
			Auditor:       audit.NewPublisher(audit.NewInMemoryStore(), logger),
			Logger:        logger,
			Clock:         fake,
		})
		require.NoError(t, err)
		return svc
	}

	first := build()
	now := fake.Now()
	require.NoError(t, first.SetMainParams(ctx, ownerAddr, domain.MainParams{
		HydroPrice:    fixedpoint.One(),
		BeginningDate: now,
		LockEnds:      now.Add(30 * 24 * time.Hour),
		EndDate:       now.Add(365 * 24 * time.Hour),
		MaxSupply:     fixedpoint.Units(100),
	}))
	require.NoError(t, first.SetStoFlags(ctx, ownerAddr, domain.StoFlags{WhitelistRestricted: true}))
	require.NoError(t, first.SetStoParams(ctx, ownerAddr, domain.StoParams{
		PercAllowedTokens: fixedpoint.One(),
		HydroAllowed:      fixedpoint.Units(100),
		MinInvestors:      1,
		MaxInvestors:      10,
	}))
	require.NoError(t, first.AdvanceStage(ctx, ownerAddr, domain.StagePresale))
	require.NoError(t, first.AdvanceStage(ctx, ownerAddr, domain.StageSale))
	require.NoError(t, first.AddWhitelist(ctx, ownerAddr, []domain.EIN{aliceEIN}))
	require.NoError(t, first.AddHydroOracle(ctx, ownerAddr, oracleAddr))
	_, err := first.BuyTokens(ctx, aliceAddr, fixedpoint.Units(12))
	require.NoError(t, err)

	// Simulate a restart: fresh service over the same stores.
	second := build()
	require.NoError(t, second.Restore(ctx))

	require.Equal(t, domain.StageSale, second.Stage())
	info := second.Info(ctx)
	require.True(t, info.TotalSupply.Equal(fixedpoint.Units(12)))
	require.Equal(t, 1, info.InvestorCount)
	require.Equal(t, oracleAddr, info.Oracle)

	// Supply accounting and the whitelist carry over into new admissions.
	receipt, err := second.BuyTokens(ctx, aliceAddr, fixedpoint.Units(3))
	require.NoError(t, err)
	require.True(t, receipt.NewBalance.Equal(fixedpoint.Units(15)))
	info = second.Info(ctx)
	require.True(t, info.TotalSupply.Equal(fixedpoint.Units(15)))
}
