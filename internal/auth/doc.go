// Package auth verifies the bearer tokens DigiHome clients present.
//
// Accounts sign in through the account service, which issues HS256 JWTs
// whose subject is the account id. The core only verifies them, with the
// shared secret from security.jwt.secret.
package auth
