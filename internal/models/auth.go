package models

import "github.com/golang-jwt/jwt/v5"

// OperatorRole is the access level carried by an operator token.
type OperatorRole string

const (
	// RoleViewer may read records, summaries and conflict reports.
	RoleViewer OperatorRole = "viewer"
	// RoleOperator may additionally trigger recomputes and rebuilds.
	RoleOperator OperatorRole = "operator"
)

// OperatorClaims is the JWT payload of operator tokens.
type OperatorClaims struct {
	OperatorID string       `json:"operator_id"`
	Role       OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
