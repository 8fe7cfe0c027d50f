package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const testEmail = "ana@example.com"

func TestIssueChallenge(t *testing.T) {
	t.Parallel()

	t.Run("ValidationError", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		tests := []struct {
			name string
			in   IssueChallengeInput
		}{
			{name: "MissingIdentifier", in: IssueChallengeInput{Channel: "email"}},
			{name: "UnknownChannel", in: IssueChallengeInput{Identifier: testEmail, Channel: "fax"}},
			{name: "PhoneOnEmailChannel", in: IssueChallengeInput{Identifier: "+15551234567", Channel: "email"}},
			{name: "EmailOnPhoneChannel", in: IssueChallengeInput{Identifier: testEmail, Channel: "phone"}},
		}

		for _, tt := range tests {
			_, err := h.uc.IssueChallenge(context.Background(), tt.in)
			if err == nil {
				t.Fatalf("%s: expected validation error", tt.name)
			}
			assertCode(t, err, goerror.CodeInvalidInput)
		}
	})

	t.Run("Success", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")

		// Act
		out, err := h.uc.IssueChallenge(context.Background(), IssueChallengeInput{Identifier: "  Ana@Example.com ", Channel: "email"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Identifier != testEmail {
			t.Fatalf("identifier = %q, want normalized %q", out.Identifier, testEmail)
		}
		if want := h.clock.Now().Add(5 * time.Minute); !out.ExpiresAt.Equal(want) {
			t.Fatalf("expires_at = %v, want %v", out.ExpiresAt, want)
		}
		if out.DeliveryID == "" || out.DeliveryFailed {
			t.Fatalf("expected a delivery id, got %+v", out)
		}
		if got := h.store.lastCode(testEmail); got != "482913" {
			t.Fatalf("dispatched code = %q, want 482913", got)
		}
	})

	t.Run("DispatchFailureDoesNotFailIssuance", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		h.store.publishErr = errors.New("broker down")

		// Act
		out, err := h.uc.IssueChallenge(context.Background(), IssueChallengeInput{Identifier: testEmail, Channel: "email"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !out.DeliveryFailed || out.DeliveryID != "" {
			t.Fatalf("expected delivery_failed, got %+v", out)
		}
		if err := h.uc.verify(context.Background(), testEmail, "482913"); err != nil {
			t.Fatalf("challenge should still be stored: %v", err)
		}
	})

	t.Run("StoreFailure", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.store.dbErr = errors.New("connection reset")

		_, err := h.uc.IssueChallenge(context.Background(), IssueChallengeInput{Identifier: testEmail, Channel: "email"})
		assertCode(t, err, goerror.CodeInternal)
	})

	t.Run("SecondIssueInvalidatesFirst", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "111111", "222222")
		ctx := context.Background()

		// Act
		if _, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
			t.Fatalf("first issue: %v", err)
		}
		if _, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
			t.Fatalf("second issue: %v", err)
		}

		// Assert
		_, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "111111"})
		if !errors.Is(err, errChallengeInvalid) {
			t.Fatalf("old code: expected invalid otp, got %v", err)
		}
		if _, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "222222"}); err != nil {
			t.Fatalf("new code: expected verified, got %v", err)
		}
	})

	t.Run("ReissueResetsAttempts", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		ctx := context.Background()

		_, _ = h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})
		_, _ = h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "000000"})
		_, _ = h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})

		if got := h.store.attempts(testEmail); got != 0 {
			t.Fatalf("attempts after reissue = %d, want 0", got)
		}
	})

	t.Run("RateLimitedAfterThreeExhaustedChallenges", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "111111")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if _, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
				t.Fatalf("issue %d: %v", i+1, err)
			}
			for j := 0; j < 3; j++ {
				_, _ = h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "999999"})
			}
			h.clock.Advance(time.Minute)
		}

		// Act
		_, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})

		// Assert
		if !errors.Is(err, errRateLimited) {
			t.Fatalf("expected rate limited, got %v", err)
		}
		assertCode(t, err, goerror.CodeTooManyRequest)

		h.clock.Advance(time.Hour)
		if _, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
			t.Fatalf("issue after window: %v", err)
		}
	})

	t.Run("AsyncDispatch", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		cfg, _ := newAsyncConfig()
		h.uc.cfg = cfg

		// Act
		out, err := h.uc.IssueChallenge(context.Background(), IssueChallengeInput{Identifier: testEmail, Channel: "email"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := h.uc.goroutine.Wait(); err != nil {
			t.Fatalf("wait: %v", err)
		}

		// Assert
		if out.DeliveryID != "" || out.DeliveryFailed {
			t.Fatalf("async issue should not report delivery, got %+v", out)
		}
		if got := h.store.lastCode(testEmail); got != "482913" {
			t.Fatalf("dispatched code = %q, want 482913", got)
		}
	})
}

func TestVerifyChallenge(t *testing.T) {
	t.Parallel()

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		_, err := h.uc.VerifyChallenge(context.Background(), VerifyChallengeInput{Identifier: testEmail, Code: "123456"})
		if !errors.Is(err, errChallengeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("MalformedCode", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		_, err := h.uc.VerifyChallenge(context.Background(), VerifyChallengeInput{Identifier: testEmail, Code: "12ab"})
		assertCode(t, err, goerror.CodeInvalidInput)
	})

	t.Run("InvalidThenVerifiedKeepsAttempts", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		ctx := context.Background()
		if _, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
			t.Fatalf("issue: %v", err)
		}

		// Act
		_, errWrong := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "000000"})
		attemptsAfterWrong := h.store.attempts(testEmail)
		out, errRight := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "482913"})

		// Assert
		if !errors.Is(errWrong, errChallengeInvalid) {
			t.Fatalf("wrong code: expected invalid, got %v", errWrong)
		}
		assertCode(t, errWrong, goerror.CodeUnauthorized)
		if attemptsAfterWrong != 1 {
			t.Fatalf("attempts after wrong code = %d, want 1", attemptsAfterWrong)
		}
		if errRight != nil {
			t.Fatalf("right code: expected verified, got %v", errRight)
		}
		if out.Login != nil {
			t.Fatalf("no login session exists, got %+v", out.Login)
		}
		if got := h.store.attempts(testEmail); got != 1 {
			t.Fatalf("attempts after verified = %d, want 1", got)
		}
	})

	t.Run("ThreeWrongThenExceeded", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		ctx := context.Background()
		_, _ = h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})

		// Act
		for i := 0; i < 3; i++ {
			_, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "000000"})
			if !errors.Is(err, errChallengeInvalid) {
				t.Fatalf("attempt %d: expected invalid, got %v", i+1, err)
			}
		}
		_, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "482913"})

		// Assert
		if !errors.Is(err, errChallengeExhausted) {
			t.Fatalf("4th attempt: expected attempts exceeded, got %v", err)
		}
		assertCode(t, err, goerror.CodeForbidden)
		if got := h.store.attempts(testEmail); got != 3 {
			t.Fatalf("attempts = %d, want capped at 3", got)
		}
	})

	t.Run("VerifiedOnLastAttemptRecordsNoExhaustion", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		ctx := context.Background()
		_, _ = h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})
		for i := 0; i < 2; i++ {
			_, _ = h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "000000"})
		}

		// Act
		_, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "482913"})

		// Assert
		if err != nil {
			t.Fatalf("expected verified on the third attempt, got %v", err)
		}
		if got := h.store.attempts(testEmail); got != 2 {
			t.Fatalf("attempts = %d, want 2 failures", got)
		}
		if got := h.store.exhaustions(testEmail); got != 0 {
			t.Fatalf("exhaustion history = %d, want 0", got)
		}
	})

	t.Run("ExpiredAfterTTL", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		ctx := context.Background()
		_, _ = h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})
		h.clock.Advance(5*time.Minute + time.Second)

		// Act
		_, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "482913"})

		// Assert
		if !errors.Is(err, errChallengeExpired) {
			t.Fatalf("expected expired, got %v", err)
		}
		assertCode(t, err, goerror.CodeGone)
		if got := h.store.attempts(testEmail); got != 0 {
			t.Fatalf("expired verification must not count, attempts = %d", got)
		}
	})

	t.Run("VerifiedAtExactExpiry", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "482913")
		ctx := context.Background()
		_, _ = h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"})
		h.clock.Advance(5 * time.Minute)

		if _, err := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "482913"}); err != nil {
			t.Fatalf("expected verified at expiry instant, got %v", err)
		}
	})
}

// gatedRepo holds every reservation until all callers have arrived, so they
// all reach the store at the same instant.
type gatedRepo struct {
	*fakeStore
	arrived sync.WaitGroup
}

func (g *gatedRepo) ReserveChallengeAttempt(ctx context.Context, identifier string, maxAttempts int, at time.Time) (*entity.Challenge, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.fakeStore.ReserveChallengeAttempt(ctx, identifier, maxAttempts, at)
}

type verifyTally struct {
	mu        sync.Mutex
	verified  int
	invalid   int
	exhausted int
	other     []error
}

func (v *verifyTally) add(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case err == nil:
		v.verified++
	case errors.Is(err, errChallengeInvalid):
		v.invalid++
	case errors.Is(err, errChallengeExhausted):
		v.exhausted++
	default:
		v.other = append(v.other, err)
	}
}

func verifyAtOnce(h *harness, codes []string) *verifyTally {
	gate := &gatedRepo{fakeStore: h.store}
	gate.arrived.Add(len(codes))
	h.uc.repoDB = gate
	defer func() { h.uc.repoDB = h.store }()

	tally := &verifyTally{}
	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.uc.VerifyChallenge(context.Background(), VerifyChallengeInput{Identifier: testEmail, Code: code})
			tally.add(err)
		}()
	}
	wg.Wait()

	return tally
}

func TestVerifyChallengeConcurrent(t *testing.T) {
	t.Parallel()

	wrong := []string{"000001", "000002", "000003", "000004", "000005", "000006", "000007", "000008", "000009", "000010"}

	t.Run("WrongGuessesStopAtCap", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		ctx := context.Background()
		if _, err := h.uc.IssueChallenge(ctx, IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
			t.Fatalf("issue: %v", err)
		}

		// Act
		tally := verifyAtOnce(h, wrong)
		_, errRight := h.uc.VerifyChallenge(ctx, VerifyChallengeInput{Identifier: testEmail, Code: "482913"})

		// Assert
		if len(tally.other) > 0 {
			t.Fatalf("unexpected errors: %v", tally.other)
		}
		if tally.invalid != 3 || tally.exhausted != len(wrong)-3 {
			t.Fatalf("invalid = %d, exhausted = %d; want 3 and %d", tally.invalid, tally.exhausted, len(wrong)-3)
		}
		if got := h.store.attempts(testEmail); got != 3 {
			t.Fatalf("attempts = %d, want 3", got)
		}
		if got := h.store.exhaustions(testEmail); got != 1 {
			t.Fatalf("exhaustion history = %d, want 1", got)
		}
		if !errors.Is(errRight, errChallengeExhausted) {
			t.Fatalf("right code after cap: expected attempts exceeded, got %v", errRight)
		}
	})

	t.Run("RightCodeAmongWrongGuesses", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "482913")
		if _, err := h.uc.IssueChallenge(context.Background(), IssueChallengeInput{Identifier: testEmail, Channel: "email"}); err != nil {
			t.Fatalf("issue: %v", err)
		}
		codes := append([]string{"482913"}, wrong...)

		// Act
		tally := verifyAtOnce(h, codes)

		// Assert
		if len(tally.other) > 0 {
			t.Fatalf("unexpected errors: %v", tally.other)
		}
		if tally.verified+tally.invalid+tally.exhausted != len(codes) {
			t.Fatalf("tally = %+v, want %d results", tally, len(codes))
		}
		if tally.invalid > 3 || tally.verified > 1 {
			t.Fatalf("invalid = %d, verified = %d; want at most 3 and 1", tally.invalid, tally.verified)
		}
		if got := h.store.attempts(testEmail); got != tally.invalid {
			t.Fatalf("attempts = %d, want %d recorded failures", got, tally.invalid)
		}
	})
}
