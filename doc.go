// Package auth is the authentication core of the talent marketplace: the
// client side session state machine, role resolution for developer and
// company accounts, the route guard, and the password reset code protocol.
//
// Session state:
//   - SessionStore subscribes to a SessionChannel and reconciles every session
//     it reports with the RoleStore. A provisional profile built from the
//     session's role hint is published immediately; the durable lookup runs
//     on a Scheduler, never inside the channel callback, and its result is
//     dropped if a newer session was applied in the meantime.
//   - RoleResolver prefers a stored profile over any hint, trusts a hint when
//     nothing is stored, and otherwise infers the role from the developer and
//     company tables, writing the inferred profile back idempotently.
//
// Routing:
//   - Decide and DecideEntry turn a State into Wait, RedirectLogin,
//     RedirectHome or Render. Routes maps decisions to paths.
//
// Password reset codes:
//   - IssueResetCodeHandler and VerifyResetCodeHandler implement the six
//     digit code flow. Issuing always succeeds for well formed input so the
//     endpoint cannot be used to enumerate accounts; verifying reports an
//     opaque "invalid or expired" error for every code failure.
//
// Activity sinks:
//   - ActivitySink receives reset, email change and role inference events.
//     Sinks run best-effort (errors are logged).
package auth
