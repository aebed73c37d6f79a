package apacheta

import (
	"github.com/teranos/yanantin/errors"
)

// AccessPolicy decides whether a caller may run an operation.
type AccessPolicy interface {
	Allow(caller, operation, target string) bool
}

// AccessPolicyFunc adapts a function to AccessPolicy.
type AccessPolicyFunc func(caller, operation, target string) bool

// Allow calls f.
func (f AccessPolicyFunc) Allow(caller, operation, target string) bool {
	return f(caller, operation, target)
}

// AllowAll permits everything.
var AllowAll AccessPolicy = AccessPolicyFunc(func(string, string, string) bool { return true })

// Base carries the access policy and caller identity shared by local backends.
type Base struct {
	policy AccessPolicy
	caller string
}

// Option configures a Base.
type Option func(*Base)

// WithPolicy sets the access policy. A nil policy allows everything.
func WithPolicy(p AccessPolicy) Option {
	return func(b *Base) {
		b.policy = p
	}
}

// WithCaller sets the identity passed to the access policy.
func WithCaller(caller string) Option {
	return func(b *Base) {
		b.caller = caller
	}
}

// NewBase applies opts over the defaults: AllowAll, caller "anonymous".
func NewBase(opts ...Option) Base {
	b := Base{policy: AllowAll, caller: "anonymous"}
	for _, opt := range opts {
		opt(&b)
	}
	if b.policy == nil {
		b.policy = AllowAll
	}
	return b
}

// CheckAccess consults the policy.
func (b Base) CheckAccess(caller, operation, target string) bool {
	if b.policy == nil {
		return true
	}
	return b.policy.Allow(caller, operation, target)
}

// Require returns ErrAccessDenied when the configured caller may not run operation.
func (b Base) Require(operation, target string) error {
	if b.CheckAccess(b.caller, operation, target) {
		return nil
	}
	return errors.NewAccessDeniedError(b.caller, operation, target)
}

// Caller returns the configured caller identity.
func (b Base) Caller() string {
	return b.caller
}

// GetInterfaceVersion returns InterfaceVersion.
func (Base) GetInterfaceVersion() string {
	return InterfaceVersion
}
