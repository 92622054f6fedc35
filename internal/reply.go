package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReplyType identifies a server control-channel reply.
type ReplyType int

const (
	ReplyUnknown ReplyType = iota
	ReplyLogin
	ReplyMessage
	ReplyAlert
	ReplyError
	ReplyResult
	ReplyLog
	ReplySessionConf
	ReplySizeLimit
	ReplyResetRequest
	ReplyStatus
	ReplyReset
	ReplyCatchup
)

var replyTypes = map[string]ReplyType{
	"login":        ReplyLogin,
	"msg":          ReplyMessage,
	"alert":        ReplyAlert,
	"error":        ReplyError,
	"result":       ReplyResult,
	"log":          ReplyLog,
	"sessionconf":  ReplySessionConf,
	"sizelimit":    ReplySizeLimit,
	"resetrequest": ReplyResetRequest,
	"status":       ReplyStatus,
	"reset":        ReplyReset,
	"catchup":      ReplyCatchup,
}

// ServerReply is a decoded control-channel message. Unknown discriminators
// decode to ReplyUnknown rather than an error so the caller can log and
// move on.
type ServerReply struct {
	Type    ReplyType
	Message string
	Reply   map[string]interface{}
}

// ParseServerReply decodes the body of a server-command message. The
// discriminator is validated up front; a missing or unrecognized "type"
// yields ReplyUnknown, malformed JSON an error.
func ParseServerReply(body []byte) (ServerReply, error) {
	var reply map[string]interface{}
	if err := json.Unmarshal(body, &reply); err != nil {
		return ServerReply{}, &ProtocolError{What: "server reply is not a JSON object", Err: err}
	}
	return ServerReply{
		Type:    replyTypes[stringField(reply, "type")],
		Message: stringField(reply, "message"),
		Reply:   reply,
	}, nil
}

// Administrative event keys sent under "T" with parameters under "P".
const (
	keyBan              = "ban"
	keyKick             = "kick"
	keyOpGive           = "opgive"
	keyOpTake           = "optake"
	keyTrustGive        = "trustgive"
	keyTrustTake        = "trusttake"
	keyResetCancel      = "resetcancel"
	keyResetFailed      = "resetfailed"
	keyResetPrepare     = "resetprepare"
	keyTerminateSession = "terminatesession"
)

// adminPhrase holds the two phrasings of a targeted administrative event:
// one naming the acting party and one for system-initiated actions.
type adminPhrase struct {
	withBy    string
	withoutBy string
}

var adminPhrases = map[string]adminPhrase{
	keyBan: {
		withBy:    "%[1]s banned by %[2]s.",
		withoutBy: "%[1]s banned by the server.",
	},
	keyKick: {
		withBy:    "%[1]s kicked by %[2]s.",
		withoutBy: "%[1]s kicked by the server.",
	},
	keyOpGive: {
		withBy:    "%[1]s made operator by %[2]s.",
		withoutBy: "%[1]s made operator by the server.",
	},
	keyOpTake: {
		withBy:    "Operator status revoked from %[1]s by %[2]s.",
		withoutBy: "Operator status revoked from %[1]s by the server.",
	},
	keyTrustGive: {
		withBy:    "%[1]s trusted by %[2]s.",
		withoutBy: "%[1]s trusted by the server.",
	},
	keyTrustTake: {
		withBy:    "%[1]s untrusted by %[2]s.",
		withoutBy: "%[1]s untrusted by the server.",
	},
}

var fixedPhrases = map[string]string{
	keyResetCancel: "Session reset cancelled! An operator must unlock the " +
		"canvas and reset the session manually.",
	keyResetFailed: "Session reset failed! An operator must unlock the " +
		"canvas and reset the session manually.",
	keyResetPrepare: "Preparing for session reset! Please wait, the session " +
		"should be available again shortly...",
}

// TranslateReplyMessage renders an administrative reply as a single
// human-readable sentence. Unknown keys fall back to the raw message field.
func TranslateReplyMessage(reply map[string]interface{}) string {
	key := stringField(reply, "T")
	params, _ := reply["P"].(map[string]interface{})
	target := stringField(params, "target")
	by := stringField(params, "by")

	if phrase, ok := adminPhrases[key]; ok {
		if by == "" {
			return fmt.Sprintf(phrase.withoutBy, target)
		}
		return fmt.Sprintf(phrase.withBy, target, by)
	}
	if phrase, ok := fixedPhrases[key]; ok {
		return phrase
	}
	if key == keyTerminateSession {
		return fmt.Sprintf("Session terminated by moderator (%s).", by)
	}
	return stringField(reply, "message")
}

// FormatServerLog renders a log reply as "[time] user: message". The
// timestamp is converted to local time; the user part is omitted when the
// entry has no actor.
func FormatServerLog(reply ServerReply) string {
	timestamp := stringField(reply.Reply, "timestamp")
	if parsed, err := time.Parse(time.RFC3339, timestamp); err == nil {
		timestamp = parsed.Local().Format(time.RFC3339)
	}
	user := stringField(reply.Reply, "user")
	if user == "" {
		return fmt.Sprintf("[%s] %s", timestamp, reply.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", timestamp, user, reply.Message)
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	// encoding/json decodes numbers in untyped maps as float64.
	f, _ := m[key].(float64)
	return int(f)
}

func boolField(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func mapField(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]interface{})
	return sub
}
