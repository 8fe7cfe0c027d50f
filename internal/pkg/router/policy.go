package router

import (
	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

const (
	// ObjectSelf guards routes where an end user acts on their own identity.
	ObjectSelf = "identity:self"
	// ObjectAdmin guards administrator routes.
	ObjectAdmin = "identity:admin"

	roleEndUser = "end_user"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// NewEnforcer returns an in-memory enforcer keyed by token kind.
// Registered and pending users share the end user role; administrators only
// reach admin objects.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddGroupingPolicies([][]string{
		{string(jwt.KindUser), roleEndUser},
		{string(jwt.KindPending), roleEndUser},
	}); err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies([][]string{
		{roleEndUser, ObjectSelf, "*"},
		{string(jwt.KindAdmin), ObjectAdmin, "*"},
	}); err != nil {
		return nil, err
	}

	return e, nil
}
