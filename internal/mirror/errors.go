package mirror

import "errors"

// Sentinel errors surfaced at the API boundary (§7: "Configuration errors
// ... rejected synchronously at the API boundary; never reach the core
// state"). httpapi maps these to their HTTP status codes.
var (
	ErrRoleConflict      = errors.New("session name would be both poll and post role")
	ErrUnknownSession    = errors.New("unknown session name")
	ErrNoPollSession     = errors.New("no online poll-eligible session available")
	ErrMissingPostIdentity = errors.New("job requires post_session_name or bot_token")
)
