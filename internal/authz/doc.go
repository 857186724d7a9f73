// Package authz decides whether an authenticated identity may use a route.
//
// Routes require one of two capabilities: read for GET, HEAD and OPTIONS,
// write for everything else. By default every authenticated identity
// holds both. Operators can narrow either capability with a CEL
// expression evaluated against the identity:
//
//	authorization:
//	  writeExpression: 'identity.authenticated && identity.auth_type == "ApiKey"'
//
// Expressions are compiled once at startup. Denials are reported through
// the error normalizer as a generic 401.
package authz
