package internal

// FilterCompatible maps outgoing messages to representations a legacy peer
// understands. Messages with no compatible representation are dropped with
// a warning; the rest keep their original relative order. Filtering an
// already-filtered batch is a no-op.
func FilterCompatible(msgs []Message) []Message {
	compatible := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		compat, ok := makeBackwardCompatible(msg)
		if ok {
			compatible = append(compatible, compat)
		} else {
			LogWarn("Incompatible %s message dropped", msg.Type)
		}
	}
	return compatible
}

// makeBackwardCompatible downgrades a single message for a legacy peer.
// Returns false when the message has no legacy representation at all.
func makeBackwardCompatible(msg Message) (Message, bool) {
	switch msg.Type {
	case MessageTypeDrawDabsPixelSquare:
		// Legacy peers only know the round pixel dab.
		msg.Type = MessageTypeDrawDabsPixel
		return msg, true
	case MessageTypeLayerCreate:
		// No legacy equivalent; sending it would get us kicked.
		return Message{}, false
	default:
		return msg, true
	}
}
