package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/usecase"
)

const dateLayout = "2006-01-02"

type IssueChallengeRequest struct {
	Identifier string `json:"identifier"`
	Channel    string `json:"channel"`
}

type IssueChallengeResponse struct {
	Identifier     string    `json:"identifier"`
	Channel        string    `json:"channel"`
	ExpiresAt      time.Time `json:"expires_at"`
	DeliveryID     string    `json:"delivery_id,omitempty"`
	DeliveryFailed bool      `json:"delivery_failed,omitempty"`
}

func (IssueChallengeResponse) Message() string {
	return "OTP sent successfully"
}

func issueChallengeResponse(out *usecase.IssueChallengeOutput) IssueChallengeResponse {
	return IssueChallengeResponse{
		Identifier:     out.Identifier,
		Channel:        out.Channel.String(),
		ExpiresAt:      out.ExpiresAt,
		DeliveryID:     out.DeliveryID,
		DeliveryFailed: out.DeliveryFailed,
	}
}

type VerifyChallengeRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type VerifyChallengeResponse struct {
	Identifier string         `json:"identifier"`
	Verified   bool           `json:"verified"`
	Login      *LoginProgress `json:"login,omitempty"`
}

func (VerifyChallengeResponse) Message() string {
	return "OTP verified successfully"
}

type SendLoginCodesRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SendLoginCodesResponse struct {
	Email IssueChallengeResponse `json:"email"`
	Phone IssueChallengeResponse `json:"phone"`
	State string                 `json:"state"`
}

func (SendLoginCodesResponse) Message() string {
	return "OTP sent to email and phone"
}

type VerifyLoginChannelRequest struct {
	Channel    string `json:"channel"`
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type LoginProgress struct {
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	State         string `json:"state"`
}

func (LoginProgress) Message() string {
	return "OTP verified successfully"
}

func loginProgress(p *usecase.LoginProgress) *LoginProgress {
	if p == nil {
		return nil
	}
	return &LoginProgress{
		EmailVerified: p.EmailVerified,
		PhoneVerified: p.PhoneVerified,
		State:         p.State.String(),
	}
}

type ResolveLoginRequest struct {
	Email string `json:"email"`
}

type ResolveLoginResponse struct {
	Outcome string           `json:"outcome"`
	Token   string           `json:"token"`
	User    *ProfileResponse `json:"user,omitempty"`
}

func (r ResolveLoginResponse) Message() string {
	if r.User == nil {
		return "Verification complete. Please complete your registration."
	}
	return "Login successful"
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

type ValidateTokenResponse struct {
	Kind       string    `json:"kind"`
	UserID     *int64    `json:"user_id,omitempty,string"`
	Identifier *string   `json:"identifier,omitempty"`
	AdminID    *int64    `json:"admin_id,omitempty,string"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminResponse struct {
	ID        int64     `json:"id,string"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func adminResponse(a usecase.AdminOutput) AdminResponse {
	return AdminResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
}

type AdminLoginResponse struct {
	Token string        `json:"token"`
	Admin AdminResponse `json:"admin"`
}

func (AdminLoginResponse) Message() string {
	return "Admin login successful"
}

type CompleteRegistrationRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	LoginMethod string `json:"login_method"`
}

type CompleteRegistrationResponse struct {
	Token string          `json:"token"`
	User  ProfileResponse `json:"user"`
}

func (CompleteRegistrationResponse) Message() string {
	return "Registration complete"
}

func (CompleteRegistrationResponse) StatusCode() int {
	return http.StatusCreated
}

type ProfileResponse struct {
	ID          int64     `json:"id,string"`
	UserNumber  int64     `json:"user_number"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"date_of_birth"`
	LoginMethod string    `json:"login_method"`
	CreatedAt   time.Time `json:"created_at"`
}

func profileResponse(p usecase.ProfileOutput) ProfileResponse {
	resp := ProfileResponse{
		ID:          p.ID,
		UserNumber:  p.UserNumber,
		Email:       p.Email,
		Phone:       p.Phone,
		Name:        p.Name,
		LoginMethod: p.LoginMethod.String(),
		CreatedAt:   p.CreatedAt,
	}
	if !p.DateOfBirth.IsZero() {
		resp.DateOfBirth = p.DateOfBirth.Format(dateLayout)
	}
	return resp
}

type ProfileUpdateRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
}

type ProfileUpdateResponse struct{}

func (ProfileUpdateResponse) Message() string {
	return "Profile updated"
}

type PublicProfileResponse struct {
	UserNumber int64     `json:"user_number"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type SendResetCodeRequest struct {
	Identifier string `json:"identifier"`
	Channel    string `json:"channel"`
}

type VerifyResetCodeRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type VerifyResetCodeResponse struct {
	Verified bool `json:"verified"`
}

func (VerifyResetCodeResponse) Message() string {
	return "OTP verified. You can now reset your password."
}

type ResetPasswordRequest struct {
	Identifier  string `json:"identifier"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type ResetPasswordResponse struct{}

func (ResetPasswordResponse) Message() string {
	return "Password reset successfully"
}
