package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

const testPhone = "+15551234567"

func startLogin(t *testing.T, h *harness) {
	t.Helper()

	out, err := h.uc.SendLoginCodes(context.Background(), SendLoginCodesInput{Email: testEmail, Phone: testPhone})
	if err != nil {
		t.Fatalf("send login codes: %v", err)
	}
	if out.State != entity.LoginCodesIssued {
		t.Fatalf("state = %s, want codes_issued", out.State)
	}
}

func verifyChannel(t *testing.T, h *harness, ch entity.Channel, identifier string) *LoginProgress {
	t.Helper()

	p, err := h.uc.VerifyLoginChannel(context.Background(), VerifyLoginChannelInput{
		Channel:    ch.String(),
		Identifier: identifier,
		Code:       h.store.lastCode(identifier),
	})
	if err != nil {
		t.Fatalf("verify %s: %v", ch, err)
	}
	return p
}

func TestSendLoginCodes(t *testing.T) {
	t.Parallel()

	t.Run("IssuesBothChannels", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")

		startLogin(t, h)

		if got := h.store.lastCode(testEmail); got != "111111" {
			t.Fatalf("email code = %q, want 111111 (email issued first)", got)
		}
		if got := h.store.lastCode(testPhone); got != "222222" {
			t.Fatalf("phone code = %q, want 222222", got)
		}
	})

	t.Run("InvalidPhone", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		_, err := h.uc.SendLoginCodes(context.Background(), SendLoginCodesInput{Email: testEmail, Phone: "555-abc"})
		assertCode(t, err, goerror.CodeInvalidInput)
	})

	t.Run("PhoneRateLimitedAborts", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "111111")
		now := h.clock.Now()
		h.store.exhausted[testPhone] = []time.Time{now, now, now}

		// Act
		_, err := h.uc.SendLoginCodes(context.Background(), SendLoginCodesInput{Email: testEmail, Phone: testPhone})

		// Assert
		if !errors.Is(err, errRateLimited) {
			t.Fatalf("expected rate limited, got %v", err)
		}
		if _, err := h.store.FindLoginSession(context.Background(), entity.ChannelEmail, testEmail); !errors.Is(err, goerror.ErrNotFound) {
			t.Fatalf("no session should be opened, got %v", err)
		}
		if h.store.lastCode(testEmail) == "" {
			t.Fatalf("email challenge is not rolled back and should have been dispatched")
		}
	})
}

func TestDualChannelLogin(t *testing.T) {
	t.Parallel()

	resolveAfter := func(t *testing.T, order []entity.Channel, existing bool) *ResolveLoginOutput {
		t.Helper()

		h := newHarness(t, "111111", "222222")
		if existing {
			h.addUser(entity.User{ID: 3, Email: testEmail, Phone: testPhone, Name: "Ana"})
		}
		startLogin(t, h)

		var p *LoginProgress
		for _, ch := range order {
			id := testEmail
			if ch == entity.ChannelPhone {
				id = testPhone
			}
			p = verifyChannel(t, h, ch, id)
		}
		if p.State != entity.LoginBothVerified {
			t.Fatalf("state = %s, want both_verified", p.State)
		}

		out, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}

		clm, err := h.jwt.Verify(out.Token)
		if err != nil {
			t.Fatalf("verify token: %v", err)
		}
		switch out.Outcome {
		case LoginOutcomeExistingUser:
			if clm.Kind() != jwt.KindUser || *clm.UserID != 3 {
				t.Fatalf("expected {userId:3}, got %+v", clm.Principal)
			}
		case LoginOutcomeNewUser:
			if clm.Kind() != jwt.KindPending || *clm.Identifier != testEmail {
				t.Fatalf("expected {identifier:%s}, got %+v", testEmail, clm.Principal)
			}
		}
		return out
	}

	for _, existing := range []bool{true, false} {
		emailFirst := resolveAfter(t, []entity.Channel{entity.ChannelEmail, entity.ChannelPhone}, existing)
		phoneFirst := resolveAfter(t, []entity.Channel{entity.ChannelPhone, entity.ChannelEmail}, existing)

		if emailFirst.Outcome != phoneFirst.Outcome {
			t.Fatalf("existing=%v: outcome differs by order: %s vs %s", existing, emailFirst.Outcome, phoneFirst.Outcome)
		}
		if (emailFirst.User == nil) != (phoneFirst.User == nil) {
			t.Fatalf("existing=%v: profile presence differs by order", existing)
		}
	}
}

func TestVerifyLoginChannel(t *testing.T) {
	t.Parallel()

	t.Run("PartialState", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		startLogin(t, h)

		p := verifyChannel(t, h, entity.ChannelPhone, testPhone)

		if p.State != entity.LoginPartiallyVerified || !p.PhoneVerified || p.EmailVerified {
			t.Fatalf("unexpected progress %+v", p)
		}
	})

	t.Run("NoLoginInProgress", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111")
		_, _ = h.uc.IssueChallenge(context.Background(), IssueChallengeInput{Identifier: testEmail, Channel: "email"})

		_, err := h.uc.VerifyLoginChannel(context.Background(), VerifyLoginChannelInput{Channel: "email", Identifier: testEmail, Code: "111111"})
		if !errors.Is(err, errLoginNotFound) {
			t.Fatalf("expected no login in progress, got %v", err)
		}
	})

	t.Run("IdentifierMustMatchChannel", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		startLogin(t, h)

		_, err := h.uc.VerifyLoginChannel(context.Background(), VerifyLoginChannelInput{Channel: "phone", Identifier: testEmail, Code: "111111"})
		assertCode(t, err, goerror.CodeInvalidInput)
	})

	t.Run("WrongCodeLeavesOtherFlag", func(t *testing.T) {
		t.Parallel()

		// Arrange
		h := newHarness(t, "111111", "222222")
		startLogin(t, h)
		verifyChannel(t, h, entity.ChannelEmail, testEmail)

		// Act
		_, err := h.uc.VerifyLoginChannel(context.Background(), VerifyLoginChannelInput{Channel: "phone", Identifier: testPhone, Code: "999999"})

		// Assert
		if !errors.Is(err, errChallengeInvalid) {
			t.Fatalf("expected invalid otp, got %v", err)
		}
		sess, _ := h.store.FindLoginSession(context.Background(), entity.ChannelEmail, testEmail)
		if !sess.EmailVerified || sess.PhoneVerified {
			t.Fatalf("flags changed on failure: %+v", sess)
		}
	})

	t.Run("GenericVerifyRecordsLoginChannel", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		startLogin(t, h)

		out, err := h.uc.VerifyChallenge(context.Background(), VerifyChallengeInput{Identifier: testPhone, Code: "222222"})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if out.Login == nil || !out.Login.PhoneVerified || out.Login.State != entity.LoginPartiallyVerified {
			t.Fatalf("expected partial login state, got %+v", out.Login)
		}
	})
}

func TestResolveLogin(t *testing.T) {
	t.Parallel()

	t.Run("NoSession", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		_, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail})
		if !errors.Is(err, errLoginNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		assertCode(t, err, goerror.CodeNotFound)
	})

	t.Run("OnlyOneChannelVerified", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		startLogin(t, h)
		verifyChannel(t, h, entity.ChannelEmail, testEmail)

		_, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail})
		if !errors.Is(err, errLoginIncomplete) {
			t.Fatalf("expected login incomplete, got %v", err)
		}
		assertCode(t, err, goerror.CodeConflict)
	})

	t.Run("SessionIsSingleUse", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		startLogin(t, h)
		verifyChannel(t, h, entity.ChannelEmail, testEmail)
		verifyChannel(t, h, entity.ChannelPhone, testPhone)

		if _, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail}); err != nil {
			t.Fatalf("first resolve: %v", err)
		}
		if _, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail}); !errors.Is(err, errLoginNotFound) {
			t.Fatalf("second resolve: expected not found, got %v", err)
		}
	})

	t.Run("MatchByPhone", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		h.addUser(entity.User{ID: 9, Email: "old@example.com", Phone: testPhone, Name: "Ana"})
		startLogin(t, h)
		verifyChannel(t, h, entity.ChannelEmail, testEmail)
		verifyChannel(t, h, entity.ChannelPhone, testPhone)

		out, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if out.Outcome != LoginOutcomeExistingUser || out.User.ID != 9 {
			t.Fatalf("expected existing user 9, got %+v", out)
		}
	})

	t.Run("BlockedUser", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, "111111", "222222")
		h.addUser(entity.User{ID: 3, Email: testEmail, Phone: testPhone, IsBlocked: true})
		startLogin(t, h)
		verifyChannel(t, h, entity.ChannelEmail, testEmail)
		verifyChannel(t, h, entity.ChannelPhone, testPhone)

		_, err := h.uc.ResolveLogin(context.Background(), ResolveLoginInput{Email: testEmail})
		if !errors.Is(err, errUserBlocked) {
			t.Fatalf("expected blocked, got %v", err)
		}
	})
}
