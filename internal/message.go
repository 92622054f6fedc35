package internal

import "fmt"

// MessageType identifies the kind of a protocol message.
type MessageType int

const (
	MessageTypeServerCommand MessageType = iota
	MessageTypeData
	MessageTypeDrawDabsClassic
	MessageTypeDrawDabsPixel
	MessageTypeDrawDabsPixelSquare
	MessageTypeUndoPoint
	MessageTypeUndo
	MessageTypePutImage
	MessageTypeCanvasResize
	MessageTypeLayerCreate
	MessageTypeChat
)

// MaxPayloadLength is the largest serialized message body the protocol
// allows. Messages exceeding it indicate a bug in the producing code.
const MaxPayloadLength = 0xFFFF

func (t MessageType) String() string {
	switch t {
	case MessageTypeServerCommand:
		return "server-command"
	case MessageTypeData:
		return "data"
	case MessageTypeDrawDabsClassic:
		return "draw-dabs-classic"
	case MessageTypeDrawDabsPixel:
		return "draw-dabs-pixel"
	case MessageTypeDrawDabsPixelSquare:
		return "draw-dabs-pixel-square"
	case MessageTypeUndoPoint:
		return "undo-point"
	case MessageTypeUndo:
		return "undo"
	case MessageTypePutImage:
		return "put-image"
	case MessageTypeCanvasResize:
		return "canvas-resize"
	case MessageTypeLayerCreate:
		return "layer-create"
	case MessageTypeChat:
		return "chat"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// IsDrawDabs reports whether the type is one of the dab-drawing commands.
func (t MessageType) IsDrawDabs() bool {
	switch t {
	case MessageTypeDrawDabsClassic, MessageTypeDrawDabsPixel, MessageTypeDrawDabsPixelSquare:
		return true
	default:
		return false
	}
}

// Message is an immutable protocol message. ContextID 0 means the message
// has no particular author (server-originated control messages).
type Message struct {
	Type      MessageType
	ContextID uint8
	Body      []byte

	// IndirectCompat marks draw-dab messages received in compatibility
	// mode so downstream layers apply them through the indirect path.
	IndirectCompat bool
}

// NewMessage creates a message with the given type, author and body.
func NewMessage(t MessageType, contextID uint8, body []byte) Message {
	return Message{Type: t, ContextID: contextID, Body: body}
}

// SerializeBody copies the message body into buf and returns the number of
// bytes written. Bodies over MaxPayloadLength or larger than buf are
// rejected; such messages should never have been constructed.
func (m Message) SerializeBody(buf []byte) (int, error) {
	n := len(m.Body)
	if n > MaxPayloadLength {
		return 0, fmt.Errorf("%s message body of %d bytes exceeds maximum payload length %d",
			m.Type, n, MaxPayloadLength)
	}
	if n > len(buf) {
		return 0, fmt.Errorf("%s message body of %d bytes does not fit buffer of %d bytes",
			m.Type, n, len(buf))
	}
	copy(buf, m.Body)
	return n, nil
}
