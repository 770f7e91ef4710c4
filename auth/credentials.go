/*
Package auth turns a login into a ledger.Actor and carries it in a session token.

PURPOSE:
  The ledger only asks "who is this and may they review requests?". This
  package answers that for the HTTP layer: it checks credentials, issues
  a signed token, and reads the actor back out of a verified request.

CREDENTIAL SCHEME:
  Employee: user id is the employee_id, password is its last two characters
  Admin:    configured user name, password checked against a bcrypt hash

SEE ALSO:
  - token.go: session tokens
  - ledger/types.go: Actor, Role
*/
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/leave-dashboard/ledger"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials validates logins for the known employees and the admin account.
type Credentials struct {
	employees map[string]struct{}
	adminUser string
	adminHash []byte
}

// NewCredentials hashes adminPassword and indexes employeeIDs.
func NewCredentials(employeeIDs []string, adminUser, adminPassword string) (*Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	c := &Credentials{
		employees: make(map[string]struct{}, len(employeeIDs)),
		adminUser: adminUser,
		adminHash: hash,
	}
	for _, id := range employeeIDs {
		c.employees[id] = struct{}{}
	}
	return c, nil
}

// Authenticate returns the actor for userID, or ErrInvalidCredentials.
// The admin account takes precedence over an employee with the same id.
func (c *Credentials) Authenticate(userID, password string) (ledger.Actor, error) {
	userID = strings.TrimSpace(userID)

	if userID == c.adminUser {
		if bcrypt.CompareHashAndPassword(c.adminHash, []byte(password)) != nil {
			return ledger.Actor{}, ErrInvalidCredentials
		}
		return ledger.Actor{EmployeeID: userID, Role: ledger.RoleAdmin}, nil
	}

	if _, ok := c.employees[userID]; !ok {
		return ledger.Actor{}, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(EmployeePassword(userID)), []byte(password)) != 1 {
		return ledger.Actor{}, ErrInvalidCredentials
	}
	return ledger.Actor{EmployeeID: userID, Role: ledger.RoleEmployee}, nil
}

// EmployeePassword returns the password for an employee id: its last two
// characters, or the whole id when shorter.
func EmployeePassword(employeeID string) string {
	r := []rune(employeeID)
	if len(r) <= 2 {
		return employeeID
	}
	return string(r[len(r)-2:])
}
