// Package warden provides authentication and role-based access control for
// services backed by a document store.
//
// Accounts, roles, and permissions are independent collections linked by bare
// id references. A user's effective permission set is always recomputed from
// the live role/permission graph (see Resolver), never cached, so edits to a
// role are visible on the next check.
//
// Session lifecycle:
//   - AuthService composes the credential hasher, the token service, the
//     lockout policy, and the resolver into the public register/login/refresh
//     and self-service flows (password reset, email verification, email
//     change, deactivate/reactivate).
//   - Tokens are stateless HS256 JWTs. Every token carries a type claim and
//     each consuming operation rejects tokens of any other type, so a
//     password-reset token can never ride the refresh path.
//   - LockoutPolicy tracks failed attempts per account and suspends logins for
//     a configured window once the threshold is crossed. The lockout check
//     runs before the credential hash is ever consulted.
//
// Authorization:
//   - Gate.Require is the single enforcement point for protected operations:
//     superusers pass unconditionally, everyone else needs the named
//     permission in their freshly resolved set.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by AuthService to
//     describe login, lockout, and self-service events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package warden
