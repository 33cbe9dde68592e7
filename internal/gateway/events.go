package gateway

import (
	"encoding/json"

	"github.com/msaad732/meme-coin/internal/snowflake"
)

// Op codes for gateway payloads.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatAck   = 11
)

// Event names for DISPATCH payloads.
const (
	EventReady         = "READY"
	EventResumed       = "RESUMED"
	EventGuildCreate   = "GUILD_CREATE"
	EventChannelCreate = "CHANNEL_CREATE"
	EventChannelUpdate = "CHANNEL_UPDATE"
	EventChannelDelete = "CHANNEL_DELETE"
	EventThreadCreate  = "THREAD_CREATE"
	EventThreadUpdate  = "THREAD_UPDATE"
	EventMessageCreate = "MESSAGE_CREATE"
)

// Gateway intents.
const (
	IntentGuilds         = 1 << 0
	IntentGuildMessages  = 1 << 9
	IntentMessageContent = 1 << 15

	DefaultIntents = IntentGuilds | IntentGuildMessages | IntentMessageContent
)

// GatewayPayload is the envelope for all gateway messages.
type GatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Event    *string         `json:"t,omitempty"`
}

// IdentifyData is sent in an Op 2 IDENTIFY.
type IdentifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties IdentifyProperties `json:"properties"`
}

type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// ResumeData is sent in an Op 6 RESUME.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// HelloData is sent by the server after WebSocket connect.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// ReadyData is sent by the server after a successful IDENTIFY.
type ReadyData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             User   `json:"user"`
}

type User struct {
	ID         snowflake.ID `json:"id"`
	Username   string       `json:"username"`
	GlobalName *string      `json:"global_name"`
	Bot        bool         `json:"bot"`
}

// DisplayName prefers the user's global display name over the username.
func (u User) DisplayName() string {
	if u.GlobalName != nil && *u.GlobalName != "" {
		return *u.GlobalName
	}
	return u.Username
}

type Channel struct {
	ID      snowflake.ID `json:"id"`
	GuildID snowflake.ID `json:"guild_id"`
	Name    string       `json:"name"`
}

// GuildCreateData carries the channel lists used to seed the name cache.
type GuildCreateData struct {
	ID       snowflake.ID `json:"id"`
	Channels []Channel    `json:"channels"`
	Threads  []Channel    `json:"threads"`
}

// GuildMember is the partial member object attached to guild messages.
type GuildMember struct {
	Nick *string `json:"nick"`
}

type messageCreateData struct {
	ID        snowflake.ID `json:"id"`
	ChannelID snowflake.ID `json:"channel_id"`
	GuildID   snowflake.ID `json:"guild_id"`
	Author    User         `json:"author"`
	Member    *GuildMember `json:"member,omitempty"`
	Content   string       `json:"content"`
}

// authorName is the name shown for the author in the channel: the guild
// nickname, then the global display name, then the username.
func (m messageCreateData) authorName() string {
	if m.Member != nil && m.Member.Nick != nil && *m.Member.Nick != "" {
		return *m.Member.Nick
	}
	return m.Author.DisplayName()
}

// MessageCreate is a decoded MESSAGE_CREATE event. ChannelName is empty when
// the channel has not been seen in a guild or channel event.
type MessageCreate struct {
	ID          snowflake.ID
	ChannelID   snowflake.ID
	GuildID     snowflake.ID
	ChannelName string
	AuthorID    snowflake.ID
	AuthorName  string
	AuthorBot   bool
	Content     string
}
