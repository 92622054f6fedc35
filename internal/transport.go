package internal

import (
	"net/url"
	"time"
)

// GracefulDisconnect is the reason a server gave for ending a connection
// in an orderly fashion.
type GracefulDisconnect int

const (
	DisconnectKick GracefulDisconnect = iota
	DisconnectError
	DisconnectShutdown
	DisconnectUnknown
)

// LoginMode is the intent of a connection attempt.
type LoginMode int

const (
	LoginJoin LoginMode = iota
	LoginHost
)

// LoginHandler carries everything the external login exchange needs. The
// exchange itself happens outside this package; the client only passes the
// handler to the transport and reacts to the outcome via HandleConnect.
type LoginHandler struct {
	URL     *url.URL
	Mode    LoginMode
	UserID  uint8
	Timeout time.Duration
}

// Transport delivers ordered message frames to and from one server. The
// concrete implementation (socket handling, framing, timeouts) lives
// outside this package; it reports connects, disconnects and received
// batches back by invoking the client's Handle* methods.
type Transport interface {
	// Login starts the login exchange for the given handler.
	Login(handler *LoginHandler)
	// SendMessages queues a batch for delivery in order.
	SendMessages(msgs []Message)
	// Logout requests an orderly disconnect.
	Logout()
	// UploadQueueBytes reports how many bytes are queued for upload.
	UploadQueueBytes() int
	// SetSmoothEnabled toggles paced delivery of received messages.
	SetSmoothEnabled(enabled bool)
	// SetSmoothDrainRate adjusts the paced delivery rate.
	SetSmoothDrainRate(rate int)
}
