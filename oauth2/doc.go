// Package oauth2 implements the redirect and callback legs of a federated
// login against Google. It verifies the provider round trip and hands the
// resulting profile to a HandleUserFunc; deciding which local user that
// profile maps to is left to the caller.
package oauth2
