package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles accepted by the RBAC middleware.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleCoach    UserRole = "COACH"
	RoleClient   UserRole = "CLIENT"
	RoleEmployee UserRole = "EMPLOYEE"
)

// JWTClaims represents the JWT payload issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// UserType maps the caller's role onto the workflow payment rule.
func (c *JWTClaims) UserType() UserType {
	if c != nil && c.Role == RoleEmployee {
		return UserTypeEmployee
	}
	return UserTypeIndividual
}
