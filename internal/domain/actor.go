package domain

// Actor is whoever invokes an operation: a guild member or the bot itself.
type Actor struct {
	ID      string
	Name    string
	RoleIDs []string
	System  bool
}

// SystemActor represents automated operations such as the inactivity sweep.
func SystemActor(id, name string) Actor {
	return Actor{ID: id, Name: name, System: true}
}

// HasRole reports whether the actor carries roleID.
func (a Actor) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range a.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Mention formats a user mention for chat messages.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// ChannelMention formats a channel mention for chat messages.
func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}
