package internal

// Event is one variant of the client's outward event stream. The set is
// closed; consumers switch on the concrete type.
type Event interface {
	isEvent()
}

// ConnectedEvent fires when a transport connection attempt starts.
type ConnectedEvent struct {
	Host string
	Port int
}

// LoggedInEvent fires on the server's login acknowledgement.
type LoggedInEvent struct {
	Join          bool
	Compatibility bool
	JoinPassword  string
}

// DisconnectedEvent fires when the connection ends for any reason.
type DisconnectedEvent struct {
	Message         string
	ErrorCode       string
	LocalDisconnect bool
}

// MessagesReceivedEvent carries one batch of messages in arrival order.
type MessagesReceivedEvent struct {
	Messages []Message
}

// LocalCommandsEvent is the local echo of outgoing messages, emitted
// before they leave for the transport.
type LocalCommandsEvent struct {
	Messages []Message
}

// ServerMessageEvent carries a translated user-facing server message.
type ServerMessageEvent struct {
	Message string
	Alert   bool
}

// ServerLogEvent carries one formatted server log line.
type ServerLogEvent struct {
	Line string
}

// SessionConfEvent carries the raw session configuration object.
type SessionConfEvent struct {
	Config map[string]interface{}
}

// AutoresetRequestedEvent announces the server wants a session reset.
type AutoresetRequestedEvent struct {
	MaxSize int
	Query   bool
}

// ServerStatusEvent carries the server-reported session size.
type ServerStatusEvent struct {
	Size int
}

// CatchupProgressEvent reports catch-up progress as a 0-100 percentage.
type CatchupProgressEvent struct {
	Percent int
}

// NeedSnapshotEvent asks the local side to produce a full-state snapshot.
type NeedSnapshotEvent struct{}

// SessionResetEvent announces the session has been fully reset.
type SessionResetEvent struct{}

// UserInfoRequestedEvent asks for this client's user info.
type UserInfoRequestedEvent struct {
	ContextID uint8
}

// UserInfoReceivedEvent carries another user's info payload.
type UserInfoReceivedEvent struct {
	ContextID uint8
	Info      map[string]interface{}
}

// KickedEvent fires when this client was kicked from the session.
type KickedEvent struct {
	Message string
}

func (ConnectedEvent) isEvent()          {}
func (LoggedInEvent) isEvent()           {}
func (DisconnectedEvent) isEvent()       {}
func (MessagesReceivedEvent) isEvent()   {}
func (LocalCommandsEvent) isEvent()      {}
func (ServerMessageEvent) isEvent()      {}
func (ServerLogEvent) isEvent()          {}
func (SessionConfEvent) isEvent()        {}
func (AutoresetRequestedEvent) isEvent() {}
func (ServerStatusEvent) isEvent()       {}
func (CatchupProgressEvent) isEvent()    {}
func (NeedSnapshotEvent) isEvent()       {}
func (SessionResetEvent) isEvent()       {}
func (UserInfoRequestedEvent) isEvent()  {}
func (UserInfoReceivedEvent) isEvent()   {}
func (KickedEvent) isEvent()             {}
