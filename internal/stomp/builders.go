package stomp

import "strings"

func Connect(host string) string {
	return Encode(CommandConnect, []Header{
		{HeaderAcceptVersion, "1.2"},
		{HeaderHost, host},
	}, "")
}

func Connected() string {
	return Encode(CommandConnected, []Header{{HeaderVersion, "1.2"}}, "")
}

func Subscribe(id, destination string) string {
	return Encode(CommandSubscribe, []Header{
		{HeaderID, id},
		{HeaderDestination, destination},
	}, "")
}

func Send(destination, body string) string {
	return Encode(CommandSend, []Header{
		{HeaderDestination, destination},
		{HeaderContentType, "application/json"},
	}, body)
}

func Message(destination, subscription, messageID, body string) string {
	return Encode(CommandMessage, []Header{
		{HeaderDestination, destination},
		{HeaderSubscription, subscription},
		{HeaderMessageID, messageID},
		{HeaderContentType, "application/json"},
	}, body)
}

func Error(message string) string {
	return Encode(CommandError, []Header{{HeaderMessage, message}}, "")
}

// TopicFor maps an application destination to the topic it is relayed to.
// Unknown destinations map to "".
func TopicFor(appDestination string) string {
	switch appDestination {
	case AppNoteUpdates:
		return TopicNoteUpdates
	case AppNoteDeletions:
		return TopicNoteDeletions
	}
	if rest, ok := strings.CutPrefix(appDestination, "/app/"); ok && rest != "" {
		return "/topic/" + rest
	}
	return ""
}
