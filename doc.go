// Package auth authenticates users of server rendered web applications with
// a signed JWT carried in an HTTP only cookie.
//
// Flow:
//   - Auther verifies an email and password against a UserFinder and the
//     stored bcrypt hash. Unknown emails and wrong passwords both return
//     ErrInvalidCredentials.
//   - IssueToken signs a claim set carrying sub (the user's email) with the
//     configured HMAC secret. It has no side effects.
//   - RouteAuthenticator writes the token as "access_token=Bearer <token>"
//     and redirects with 303 See Other.
//   - ResolveIdentity reads the cookie value back, verifies the token and
//     loads the user named by sub. No cookie, or a sub that matches no user,
//     resolves to (nil, nil). A token that fails verification is an error.
//
// Tokens are stateless. Logout only removes the cookie from the client, an
// issued token stays valid until its exp when one is configured.
//
// Activity sinks:
//   - ActivitySink receives login, token rejection and logout events. Failure
//     reasons (unknown identity, password mismatch) are only reported here,
//     callers never see them. Sinks run best-effort, errors are logged.
//
// Claims decoration:
//   - ClaimsDecorator is invoked at Login before the token is signed.
//     Decorators may add claims such as a role while protected claims (sub,
//     iss, aud, exp, etc.) remain immutable.
package auth
