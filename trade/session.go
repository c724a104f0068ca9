package trade

import (
	"fmt"
	"strings"

	"github.com/cableworks/ledger-engine/ledger"
)

// Role is what a session may do.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClerk  Role = "clerk"
	RoleViewer Role = "viewer"
)

// ParseRole accepts any case; empty means clerk.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleClerk, nil
	case RoleAdmin, RoleClerk, RoleViewer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Session identifies who is calling. It is passed explicitly to every write;
// there is no process-wide current user.
type Session struct {
	UserID string
	Role   Role
}

// System is the session used by scheduled jobs and demo loaders.
var System = Session{UserID: "system", Role: RoleAdmin}

// CanWrite reports whether the session may record invoices and payments.
func (s Session) CanWrite() bool {
	return s.Role == RoleAdmin || s.Role == RoleClerk
}

// Authorize returns ErrForbidden unless the session may perform op.
func (s Session) Authorize(op string) error {
	if s.UserID == "" {
		return fmt.Errorf("%w: %s requires a user", ledger.ErrForbidden, op)
	}
	if !s.CanWrite() {
		return fmt.Errorf("%w: %s by %s (%s)", ledger.ErrForbidden, op, s.UserID, s.Role)
	}
	return nil
}
