package mirror

import "github.com/nextlevelbuilder/chanmirror/pkg/linkfmt"

// messageLink renders the §6 link format for a destination message.
func messageLink(host, username string, internalID, msgID int64) string {
	return linkfmt.Message(host, username, internalID, msgID)
}
