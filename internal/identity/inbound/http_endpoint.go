package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/identity/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for code verification, login and
// profile workflows.
type HTTPEndpoint struct {
	uc uc
}

// IssueChallenge sends a fresh one-time code to an email address or phone.
// @Summary Send OTP
// @Description Replaces any outstanding code for the identifier and dispatches a new one.
// @Tags Identity, OTP
// @Accept json
// @Produce json
// @Param request body IssueChallengeRequest true "OTP request payload"
// @Success 200 {object} router.successResponse{data=IssueChallengeResponse} "OTP issued"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many exhausted codes"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/identity/otp/send [post]
func (h *HTTPEndpoint) IssueChallenge(r *router.Request) (any, error) {
	var req IssueChallengeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.IssueChallenge(r.Context(), usecase.IssueChallengeInput{
		Identifier: req.Identifier,
		Channel:    req.Channel,
	})
	if err != nil {
		return nil, err
	}

	return issueChallengeResponse(resp), nil
}

// VerifyChallenge checks a submitted code.
// @Summary Verify OTP
// @Tags Identity, OTP
// @Accept json
// @Produce json
// @Param request body VerifyChallengeRequest true "OTP verification payload"
// @Success 200 {object} router.successResponse{data=VerifyChallengeResponse} "OTP verified"
// @Failure 401 {object} router.errorResponse "Invalid code"
// @Failure 403 {object} router.errorResponse "Too many failed attempts"
// @Failure 404 {object} router.errorResponse "No code outstanding"
// @Failure 410 {object} router.errorResponse "Code expired"
// @Router /api/v1/identity/otp/verify [post]
func (h *HTTPEndpoint) VerifyChallenge(r *router.Request) (any, error) {
	var req VerifyChallengeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyChallenge(r.Context(), usecase.VerifyChallengeInput{
		Identifier: req.Identifier,
		Code:       req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyChallengeResponse{
		Identifier: resp.Identifier,
		Verified:   true,
		Login:      loginProgress(resp.Login),
	}, nil
}

// SendLoginCodes starts a dual-channel login.
// @Summary Start login
// @Description Sends one code to the email and one to the phone. Both must be verified before the login resolves.
// @Tags Identity, Authentication
// @Accept json
// @Produce json
// @Param request body SendLoginCodesRequest true "Login payload"
// @Success 200 {object} router.successResponse{data=SendLoginCodesResponse} "Codes issued"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many exhausted codes"
// @Router /api/v1/identity/login/send [post]
func (h *HTTPEndpoint) SendLoginCodes(r *router.Request) (any, error) {
	var req SendLoginCodesRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SendLoginCodes(r.Context(), usecase.SendLoginCodesInput{
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		return nil, err
	}

	return SendLoginCodesResponse{
		Email: issueChallengeResponse(&resp.Email),
		Phone: issueChallengeResponse(&resp.Phone),
		State: resp.State.String(),
	}, nil
}

// VerifyLoginChannel verifies the code of one channel of a login.
// @Summary Verify login channel
// @Tags Identity, Authentication
// @Accept json
// @Produce json
// @Param request body VerifyLoginChannelRequest true "Channel verification payload"
// @Success 200 {object} router.successResponse{data=LoginProgress} "Login progress"
// @Failure 404 {object} router.errorResponse "No login in progress"
// @Router /api/v1/identity/login/verify [post]
func (h *HTTPEndpoint) VerifyLoginChannel(r *router.Request) (any, error) {
	var req VerifyLoginChannelRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyLoginChannel(r.Context(), usecase.VerifyLoginChannelInput{
		Channel:    req.Channel,
		Identifier: req.Identifier,
		Code:       req.Code,
	})
	if err != nil {
		return nil, err
	}

	return loginProgress(resp), nil
}

// ResolveLogin exchanges a fully verified login for a token.
// @Summary Resolve login
// @Tags Identity, Authentication
// @Accept json
// @Produce json
// @Param request body ResolveLoginRequest true "Resolve payload"
// @Success 200 {object} router.successResponse{data=ResolveLoginResponse} "User or pending token"
// @Failure 404 {object} router.errorResponse "No login in progress"
// @Failure 409 {object} router.errorResponse "Login is not fully verified"
// @Router /api/v1/identity/login/resolve [post]
func (h *HTTPEndpoint) ResolveLogin(r *router.Request) (any, error) {
	var req ResolveLoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.ResolveLogin(r.Context(), usecase.ResolveLoginInput{Email: req.Email})
	if err != nil {
		return nil, err
	}

	out := ResolveLoginResponse{
		Outcome: string(resp.Outcome),
		Token:   resp.Token,
	}
	if resp.User != nil {
		p := profileResponse(*resp.User)
		out.User = &p
	}

	return out, nil
}

// ValidateToken reports the principal a token carries.
// @Summary Validate token
// @Tags Identity, Token
// @Accept json
// @Produce json
// @Param request body ValidateTokenRequest true "Token payload"
// @Success 200 {object} router.successResponse{data=ValidateTokenResponse} "Token claims"
// @Failure 401 {object} router.errorResponse "Invalid token"
// @Router /api/v1/identity/token/validate [post]
func (h *HTTPEndpoint) ValidateToken(r *router.Request) (any, error) {
	var req ValidateTokenRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.ValidateToken(r.Context(), usecase.ValidateTokenInput{Token: req.Token})
	if err != nil {
		return nil, err
	}

	return ValidateTokenResponse{
		Kind:       string(resp.Kind),
		UserID:     resp.UserID,
		Identifier: resp.Identifier,
		AdminID:    resp.AdminID,
		ExpiresAt:  resp.ExpiresAt,
	}, nil
}

// AdminLogin authenticates an administrator with email and password.
// @Summary Admin login
// @Tags Identity, Admin
// @Accept json
// @Produce json
// @Param request body AdminLoginRequest true "Admin credentials"
// @Success 200 {object} router.successResponse{data=AdminLoginResponse} "Admin token"
// @Failure 401 {object} router.errorResponse "Invalid credentials"
// @Router /api/v1/identity/admin/login [post]
func (h *HTTPEndpoint) AdminLogin(r *router.Request) (any, error) {
	var req AdminLoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.IssueAdminToken(r.Context(), usecase.IssueAdminTokenInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return AdminLoginResponse{
		Token: resp.Token,
		Admin: adminResponse(resp.Admin),
	}, nil
}

// AdminProfile returns the administrator behind the token.
// @Summary Admin profile
// @Tags Identity, Admin
// @Produce json
// @Success 200 {object} router.successResponse{data=AdminResponse} "Admin profile"
// @Failure 403 {object} router.errorResponse "Admin access required"
// @Router /api/v1/identity/admin/profile [get]
func (h *HTTPEndpoint) AdminProfile(r *router.Request) (any, error) {
	resp, err := h.uc.AdminProfile(r.Context())
	if err != nil {
		return nil, err
	}

	return adminResponse(*resp), nil
}

// CompleteRegistration creates the account of a pending identity.
// @Summary Complete registration
// @Tags Identity, Account
// @Accept json
// @Produce json
// @Param request body CompleteRegistrationRequest true "Registration payload"
// @Success 201 {object} router.successResponse{data=CompleteRegistrationResponse} "Account created"
// @Failure 403 {object} router.errorResponse "Token does not match the identifiers"
// @Failure 409 {object} router.errorResponse "Email or phone already registered"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/identity/register [post]
func (h *HTTPEndpoint) CompleteRegistration(r *router.Request) (any, error) {
	var req CompleteRegistrationRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.CompleteRegistration(r.Context(), usecase.CompleteRegistrationInput{
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
		Email:       req.Email,
		Phone:       req.Phone,
		LoginMethod: req.LoginMethod,
	})
	if err != nil {
		return nil, err
	}

	return CompleteRegistrationResponse{
		Token: resp.Token,
		User:  profileResponse(resp.User),
	}, nil
}

// Profile returns the acting user's own profile.
// @Summary Get profile
// @Tags Identity, Account
// @Produce json
// @Success 200 {object} router.successResponse{data=ProfileResponse} "Profile"
// @Failure 403 {object} router.errorResponse "Administrators cannot act as end users"
// @Failure 404 {object} router.errorResponse "User not found"
// @Router /api/v1/identity/profile [get]
func (h *HTTPEndpoint) Profile(r *router.Request) (any, error) {
	resp, err := h.uc.Profile(r.Context())
	if err != nil {
		return nil, err
	}

	return profileResponse(*resp), nil
}

// ProfileUpdate changes the acting user's name and date of birth.
// @Summary Update profile
// @Tags Identity, Account
// @Accept json
// @Produce json
// @Param request body ProfileUpdateRequest true "Profile payload"
// @Success 200 {object} router.successResponse "Profile updated"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/identity/profile [put]
func (h *HTTPEndpoint) ProfileUpdate(r *router.Request) (any, error) {
	var req ProfileUpdateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.ProfileUpdate(r.Context(), usecase.ProfileUpdateInput{
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
	}); err != nil {
		return nil, err
	}

	return ProfileUpdateResponse{}, nil
}

// PublicProfile returns the public part of a profile by display number.
// @Summary Public profile
// @Tags Identity, Account
// @Produce json
// @Param number path int true "User number"
// @Success 200 {object} router.successResponse{data=PublicProfileResponse} "Public profile"
// @Failure 404 {object} router.errorResponse "User not found"
// @Router /api/v1/identity/users/{number} [get]
func (h *HTTPEndpoint) PublicProfile(r *router.Request) (any, error) {
	number, err := r.GetParamInt64("number")
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.PublicProfile(r.Context(), usecase.PublicProfileInput{UserNumber: number})
	if err != nil {
		return nil, err
	}

	return PublicProfileResponse{
		UserNumber: resp.UserNumber,
		Name:       resp.Name,
		CreatedAt:  resp.CreatedAt,
	}, nil
}

// SendResetCode sends a password reset code to a registered identifier.
// @Summary Request password reset
// @Tags Identity, Password
// @Accept json
// @Produce json
// @Param request body SendResetCodeRequest true "Reset request payload"
// @Success 200 {object} router.successResponse{data=IssueChallengeResponse} "Code issued"
// @Failure 404 {object} router.errorResponse "User not found"
// @Router /api/v1/identity/password/send [post]
func (h *HTTPEndpoint) SendResetCode(r *router.Request) (any, error) {
	var req SendResetCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SendResetCode(r.Context(), usecase.SendResetCodeInput{
		Identifier: req.Identifier,
		Channel:    req.Channel,
	})
	if err != nil {
		return nil, err
	}

	return issueChallengeResponse(resp), nil
}

// VerifyResetCode checks a reset code without consuming it.
// @Summary Verify reset code
// @Tags Identity, Password
// @Accept json
// @Produce json
// @Param request body VerifyResetCodeRequest true "Reset code payload"
// @Success 200 {object} router.successResponse{data=VerifyResetCodeResponse} "Code verified"
// @Router /api/v1/identity/password/verify [post]
func (h *HTTPEndpoint) VerifyResetCode(r *router.Request) (any, error) {
	var req VerifyResetCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.VerifyResetCode(r.Context(), usecase.VerifyResetCodeInput{
		Identifier: req.Identifier,
		Code:       req.Code,
	}); err != nil {
		return nil, err
	}

	return VerifyResetCodeResponse{Verified: true}, nil
}

// ResetPassword stores a new password after checking the reset code.
// @Summary Reset password
// @Tags Identity, Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset payload"
// @Success 200 {object} router.successResponse "Password reset"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/identity/password/reset [post]
func (h *HTTPEndpoint) ResetPassword(r *router.Request) (any, error) {
	var req ResetPasswordRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.ResetPassword(r.Context(), usecase.ResetPasswordInput{
		Identifier:  req.Identifier,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	}); err != nil {
		return nil, err
	}

	return ResetPasswordResponse{}, nil
}
