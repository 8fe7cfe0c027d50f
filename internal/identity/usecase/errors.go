package usecase

import "github.com/shandysiswandi/otpgate/internal/pkg/goerror"

var (
	errChallengeNotFound  = goerror.NewBusiness("otp not found", goerror.CodeNotFound)
	errChallengeExpired   = goerror.NewBusiness("otp expired", goerror.CodeGone)
	errChallengeExhausted = goerror.NewBusiness("too many failed attempts, request a new otp", goerror.CodeForbidden)
	errChallengeInvalid   = goerror.NewBusiness("invalid otp", goerror.CodeUnauthorized)
	errRateLimited        = goerror.NewBusiness("Too many attempts. Try again later.", goerror.CodeTooManyRequest)

	errLoginNotFound   = goerror.NewBusiness("no login in progress", goerror.CodeNotFound)
	errLoginIncomplete = goerror.NewBusiness("login is not fully verified", goerror.CodeConflict)
	errUserNotFound    = goerror.NewBusiness("user not found", goerror.CodeNotFound)
	errUserBlocked     = goerror.NewBusiness("account is blocked", goerror.CodeForbidden)
	errAdminNotFound   = goerror.NewBusiness("admin not found", goerror.CodeNotFound)
	errBadCredentials  = goerror.NewBusiness("invalid credentials", goerror.CodeUnauthorized)
	errInvalidToken    = goerror.NewBusiness("invalid token", goerror.CodeUnauthorized)
	errNotEndUser      = goerror.NewBusiness("administrators cannot act as end users", goerror.CodeForbidden)
	errNotAdmin        = goerror.NewBusiness("admin access required", goerror.CodeForbidden)
	errAlreadyExists   = goerror.NewBusiness("email or phone already registered", goerror.CodeConflict)
	errTokenMismatch   = goerror.NewBusiness("token does not belong to this email or phone", goerror.CodeForbidden)
)
