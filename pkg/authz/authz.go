// Package authz decides which authenticated admins may act on a resource.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/kart-io/logger"
)

// Authorizer defines the authorization interface.
type Authorizer interface {
	// Authorize checks if the subject can perform the action on the resource.
	Authorize(ctx context.Context, subject, resource, action string) (bool, error)
}

// Wildcards accepted in policies.
const (
	AnyResource = "*"
	AnyAction   = "*"
)

const allowListModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// CasbinAuthorizer enforces an allow-list of subjects with casbin.
type CasbinAuthorizer struct {
	enforcer *casbin.Enforcer
}

var _ Authorizer = (*CasbinAuthorizer)(nil)

// NewAllowList grants every subject full access to resource. Subjects are
// compared case-insensitively; empty entries are ignored.
func NewAllowList(resource string, subjects []string) (*CasbinAuthorizer, error) {
	m, err := model.NewModelFromString(allowListModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	a := &CasbinAuthorizer{enforcer: e}
	for _, s := range subjects {
		if err := a.Grant(s, resource, AnyAction); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Grant adds a policy. Granting an existing policy is a no-op.
func (a *CasbinAuthorizer) Grant(subject, resource, action string) error {
	subject = normalize(subject)
	if subject == "" {
		return nil
	}
	if _, err := a.enforcer.AddPolicy(subject, resource, action); err != nil {
		return fmt.Errorf("add policy for %s: %w", subject, err)
	}
	logger.Debugw("policy granted", "subject", subject, "resource", resource, "action", action)
	return nil
}

// Authorize implements Authorizer.
func (a *CasbinAuthorizer) Authorize(_ context.Context, subject, resource, action string) (bool, error) {
	subject = normalize(subject)
	if subject == "" {
		return false, nil
	}
	return a.enforcer.Enforce(subject, resource, action)
}

func normalize(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}
