package telegram

import (
	"regexp"
	"strconv"
	"time"
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry after (\d+)`)

// FloodWait inspects an API error's text for the Bot API's standard
// "Too Many Requests: retry after N" message and, if present, returns the
// duration to sleep before retrying. telego surfaces rate-limit errors as
// formatted error strings rather than a dedicated exported type, so this
// parses the description directly rather than asserting an unverified
// concrete error type.
func FloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// IsAdminRequiredError recognizes destination/source access errors that
// require no automated remediation (spec §7: destination/source access
// errors).
func IsAdminRequiredError(err error) bool {
	if err == nil {
		return false
	}
	for _, needle := range []string{"not enough rights", "chat not found", "have no rights", "CHAT_ADMIN_REQUIRED", "channel_private"} {
		if containsFold(err.Error(), needle) {
			return true
		}
	}
	return false
}
