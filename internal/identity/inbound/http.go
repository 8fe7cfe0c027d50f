package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/identity/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	IssueChallenge(ctx context.Context, in usecase.IssueChallengeInput) (*usecase.IssueChallengeOutput, error)
	VerifyChallenge(ctx context.Context, in usecase.VerifyChallengeInput) (*usecase.VerifyChallengeOutput, error)

	SendLoginCodes(ctx context.Context, in usecase.SendLoginCodesInput) (*usecase.SendLoginCodesOutput, error)
	VerifyLoginChannel(ctx context.Context, in usecase.VerifyLoginChannelInput) (*usecase.LoginProgress, error)
	ResolveLogin(ctx context.Context, in usecase.ResolveLoginInput) (*usecase.ResolveLoginOutput, error)

	ValidateToken(ctx context.Context, in usecase.ValidateTokenInput) (*usecase.ValidateTokenOutput, error)
	IssueAdminToken(ctx context.Context, in usecase.IssueAdminTokenInput) (*usecase.IssueAdminTokenOutput, error)
	AdminProfile(ctx context.Context) (*usecase.AdminOutput, error)

	CompleteRegistration(ctx context.Context, in usecase.CompleteRegistrationInput) (*usecase.CompleteRegistrationOutput, error)
	Profile(ctx context.Context) (*usecase.ProfileOutput, error)
	ProfileUpdate(ctx context.Context, in usecase.ProfileUpdateInput) error
	PublicProfile(ctx context.Context, in usecase.PublicProfileInput) (*usecase.PublicProfileOutput, error)

	SendResetCode(ctx context.Context, in usecase.SendResetCodeInput) (*usecase.IssueChallengeOutput, error)
	VerifyResetCode(ctx context.Context, in usecase.VerifyResetCodeInput) error
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}
	self := r.RequireUserOrPending()
	pub := r.Public()

	// One-time codes
	pub.POST("/api/v1/identity/otp/send", end.IssueChallenge)
	pub.POST("/api/v1/identity/otp/verify", end.VerifyChallenge)

	// Dual-channel login
	pub.POST("/api/v1/identity/login/send", end.SendLoginCodes)
	pub.POST("/api/v1/identity/login/verify", end.VerifyLoginChannel)
	pub.POST("/api/v1/identity/login/resolve", end.ResolveLogin)

	// Tokens
	pub.POST("/api/v1/identity/token/validate", end.ValidateToken)
	pub.POST("/api/v1/identity/admin/login", end.AdminLogin)
	r.GET("/api/v1/identity/admin/profile", end.AdminProfile, r.RequireAdmin())

	// Account (need user or pending token)
	r.POST("/api/v1/identity/register", end.CompleteRegistration, self)
	r.GET("/api/v1/identity/profile", end.Profile, self)
	r.PUT("/api/v1/identity/profile", end.ProfileUpdate, self)
	pub.GET("/api/v1/identity/users/:number", end.PublicProfile)

	// Password reset
	pub.POST("/api/v1/identity/password/send", end.SendResetCode)
	pub.POST("/api/v1/identity/password/verify", end.VerifyResetCode)
	pub.POST("/api/v1/identity/password/reset", end.ResetPassword)
}
