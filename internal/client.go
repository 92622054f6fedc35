package internal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Client reconciles local and server-confirmed canvas state against one
// authoritative server. Local messages are echoed through the same event
// stream as server-confirmed ones so downstream consumers behave the same
// in connected and local-only mode. One goroutine owns each instance; the
// transport must deliver its callbacks on that goroutine.
type Client struct {
	transport   Transport
	subscribers []func(Event)

	sessionURL        *url.URL
	userID            uint8
	moderator         bool
	authenticated     bool
	supportsAutoReset bool
	compatibilityMode bool

	smoothDrainRate int
	catchup         CatchupTracker
}

// NewClient creates a disconnected client.
func NewClient() *Client {
	return &Client{smoothDrainRate: -1}
}

// Subscribe registers an event consumer. Subscribers are invoked
// synchronously, in registration order, on the client's owner goroutine.
func (c *Client) Subscribe(fn func(Event)) {
	c.subscribers = append(c.subscribers, fn)
}

func (c *Client) emit(e Event) {
	for _, fn := range c.subscribers {
		fn(e)
	}
}

// Connected reports whether a transport is attached.
func (c *Client) Connected() bool {
	return c.transport != nil
}

// Connect attaches a transport and starts the login exchange. Calling it
// while already connected is a programming error.
func (c *Client) Connect(transport Transport, handler *LoginHandler) {
	if c.transport != nil {
		panic("connect called while already connected")
	}
	c.transport = transport
	if c.smoothDrainRate >= 0 {
		transport.SetSmoothDrainRate(c.smoothDrainRate)
	}
	c.catchup.Reset()

	host := ""
	port := 0
	if handler.URL != nil {
		host = handler.URL.Hostname()
		port, _ = strconv.Atoi(handler.URL.Port())
	}
	if handler.Mode == LoginHost {
		handler.UserID = c.userID
	}
	c.emit(ConnectedEvent{Host: host, Port: port})
	transport.Login(handler)
}

// Disconnect requests a logout if connected, otherwise does nothing.
func (c *Client) Disconnect() {
	if c.transport != nil {
		c.transport.Logout()
	}
}

// SessionURL returns the URL of the current or last session, optionally
// stripped of user credentials.
func (c *Client) SessionURL(includeUser bool) *url.URL {
	if c.sessionURL == nil {
		return nil
	}
	u := *c.sessionURL
	if !includeUser {
		u.User = nil
	}
	return &u
}

// UserID returns the server-assigned local user id.
func (c *Client) UserID() uint8 { return c.userID }

// Moderator reports whether the local user has moderator status.
func (c *Client) Moderator() bool { return c.moderator }

// Authenticated reports whether the login was authenticated.
func (c *Client) Authenticated() bool { return c.authenticated }

// CompatibilityMode reports whether the session runs in the degraded
// interoperability mode for legacy peers.
func (c *Client) CompatibilityMode() bool { return c.compatibilityMode }

// SupportsAutoReset reports whether the server can auto-reset the session.
func (c *Client) SupportsAutoReset() bool { return c.supportsAutoReset }

// UploadQueueBytes reports the transport's pending upload size, 0 when
// disconnected.
func (c *Client) UploadQueueBytes() int {
	if c.transport != nil {
		return c.transport.UploadQueueBytes()
	}
	return 0
}

// SetSmoothDrainRate adjusts the paced delivery rate, now and for future
// connections.
func (c *Client) SetSmoothDrainRate(rate int) {
	c.smoothDrainRate = rate
	if c.transport != nil {
		c.transport.SetSmoothDrainRate(rate)
	}
}

// SendMessage sends a single message through the normal send path.
func (c *Client) SendMessage(msg Message) {
	c.SendMessages([]Message{msg})
}

// SendMessages filters for compatibility if needed, echoes the batch
// locally, and forwards it to the server. With no server attached the
// batch loops straight back as received messages.
func (c *Client) SendMessages(msgs []Message) {
	if c.compatibilityMode {
		msgs = FilterCompatible(msgs)
	}
	c.sendCompatibleMessages(msgs, false)
}

// SendResetMessage sends a single message through the reset path.
func (c *Client) SendResetMessage(msg Message) {
	c.SendResetMessages([]Message{msg})
}

// SendResetMessages is the full-state replacement send path. It filters
// like the normal path but skips the local echo, because reset messages
// are not incremental local predictions.
func (c *Client) SendResetMessages(msgs []Message) {
	if c.compatibilityMode {
		msgs = FilterCompatible(msgs)
	}
	c.sendCompatibleMessages(msgs, true)
}

func (c *Client) sendCompatibleMessages(msgs []Message, reset bool) {
	if len(msgs) == 0 {
		return
	}
	if !reset {
		// Echo locally even in local-only mode so the same code path
		// runs everywhere and bugs surface early.
		c.emit(LocalCommandsEvent{Messages: msgs})
	}
	if c.transport != nil {
		c.transport.SendMessages(msgs)
	} else {
		c.emit(MessagesReceivedEvent{Messages: msgs})
	}
}

// HandleConnect latches the login acknowledgement and announces it.
func (c *Client) HandleConnect(sessionURL *url.URL, userID uint8, join, auth,
	moderator, supportsAutoReset, compatibilityMode bool, joinPassword string) {
	c.sessionURL = sessionURL
	c.userID = userID
	c.moderator = moderator
	c.authenticated = auth
	c.supportsAutoReset = supportsAutoReset
	c.compatibilityMode = compatibilityMode
	c.emit(LoggedInEvent{Join: join, Compatibility: compatibilityMode, JoinPassword: joinPassword})
}

// HandleDisconnect tears down the connection state and announces it.
func (c *Client) HandleDisconnect(message, errorCode string, localDisconnect bool) {
	c.compatibilityMode = false
	c.moderator = false
	c.emit(DisconnectedEvent{Message: message, ErrorCode: errorCode, LocalDisconnect: localDisconnect})
	c.transport = nil
	c.catchup.Reset()
}

// HandleGracefulDisconnect surfaces an orderly server-side disconnect. A
// kick gets its own high-priority event; everything else becomes a server
// message.
func (c *Client) HandleGracefulDisconnect(reason GracefulDisconnect, message string) {
	var chat string
	switch reason {
	case DisconnectKick:
		c.emit(KickedEvent{Message: message})
		return
	case DisconnectError:
		chat = "A server error occurred!"
	case DisconnectShutdown:
		chat = "The server is shutting down!"
	default:
		chat = "Unknown error"
	}
	if message != "" {
		chat = fmt.Sprintf("%s (%s)", chat, message)
	}
	c.emit(ServerMessageEvent{Message: chat, Alert: true})
}

// HandleMessages processes one received batch in arrival order: control
// messages go to the reply interpreter, data messages addressed to this
// user to the user-info handler, and draw-dab messages get flagged for the
// indirect path in compatibility mode. The whole batch is re-emitted
// before catch-up bookkeeping runs.
func (c *Client) HandleMessages(msgs []Message) {
	for i := range msgs {
		msg := &msgs[i]
		switch msg.Type {
		case MessageTypeServerCommand:
			reply, err := ParseServerReply(msg.Body)
			if err != nil {
				LogWarn("Server reply: %v", err)
			} else {
				c.handleServerReply(reply)
			}
		case MessageTypeData:
			c.handleData(*msg)
		default:
			if c.compatibilityMode && msg.Type.IsDrawDabs() {
				msg.IndirectCompat = true
			}
		}
	}
	c.emit(MessagesReceivedEvent{Messages: msgs})

	if c.catchup.Active() {
		percent, changed, done := c.catchup.Add(len(msgs))
		if done {
			LogInfo("Catchup: caught up to target")
			c.emit(CatchupProgressEvent{Percent: 100})
			if c.transport != nil {
				c.transport.SetSmoothEnabled(true)
			}
		} else if changed {
			c.emit(CatchupProgressEvent{Percent: percent})
		}
	}
}

func (c *Client) handleServerReply(reply ServerReply) {
	switch reply.Type {
	case ReplyUnknown:
		LogWarn("Unknown server reply: %s", reply.Message)
	case ReplyLogin:
		LogWarn("Got login message while in session")
	case ReplyMessage, ReplyAlert, ReplyError, ReplyResult:
		c.emit(ServerMessageEvent{
			Message: TranslateReplyMessage(reply.Reply),
			Alert:   reply.Type == ReplyAlert,
		})
	case ReplyLog:
		c.emit(ServerLogEvent{Line: FormatServerLog(reply)})
	case ReplySessionConf:
		c.emit(SessionConfEvent{Config: mapField(reply.Reply, "config")})
	case ReplySizeLimit:
		// Obsolete; superseded by resetrequest.
	case ReplyResetRequest:
		c.emit(AutoresetRequestedEvent{
			MaxSize: intField(reply.Reply, "maxSize"),
			Query:   boolField(reply.Reply, "query"),
		})
	case ReplyStatus:
		c.emit(ServerStatusEvent{Size: intField(reply.Reply, "size")})
	case ReplyReset:
		c.handleResetReply(reply)
	case ReplyCatchup:
		if c.transport != nil {
			c.transport.SetSmoothEnabled(false)
		}
		count := intField(reply.Reply, "count")
		LogInfo("Catching up to %d messages", count)
		c.emit(CatchupProgressEvent{Percent: c.catchup.Begin(count)})
	}
}

func (c *Client) handleResetReply(reply ServerReply) {
	switch state := stringField(reply.Reply, "state"); state {
	case "init":
		LogDebug("Requested session reset")
		c.emit(NeedSnapshotEvent{})
	case "reset":
		LogDebug("Resetting session")
		c.emit(SessionResetEvent{})
	default:
		LogWarn("Unknown reset state %q: %s", state, reply.Message)
	}
}

// handleData routes out-of-band data messages. Only messages addressed to
// this client's user id are considered; the payload is JSON with a "type"
// discriminator.
func (c *Client) handleData(msg Message) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		LogWarn("Could not parse data message as a JSON object: %v", err)
		return
	}
	if uint8(intField(payload, "recipient")) != c.userID {
		return
	}
	switch dataType := stringField(payload, "type"); dataType {
	case "request_user_info":
		c.emit(UserInfoRequestedEvent{ContextID: msg.ContextID})
	case "user_info":
		c.emit(UserInfoReceivedEvent{ContextID: msg.ContextID, Info: payload})
	default:
		LogWarn("Unknown user info type %q", dataType)
	}
}
