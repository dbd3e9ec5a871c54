package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the client. Namespaces group related kinds so
// subscribers can listen to a whole family with one prefix.
const (
	// conversation.* : conversation store changes.
	KindConversationsReplaced = "conversation.replaced"
	KindConversationUpdated   = "conversation.updated"

	// message.* : message store changes for a single conversation.
	KindMessageUpserted   = "message.upserted"
	KindThreadReplaced    = "message.thread_replaced"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"

	// conn.* : connection monitor transitions.
	KindConnStatusChanged = "conn.status_changed"

	// push.* : best-effort hints from the notification socket.
	KindPushMessageNew = "push.message_new"
	KindPushConvDirty  = "push.conversation_dirty"
)

// ThreadRef points at one conversation's message list.
type ThreadRef struct {
	ConversationID int64
}

// MessageRef identifies one message within a conversation.
type MessageRef struct {
	ConversationID int64
	MessageID      string
}

// SendFailure carries the error surfaced when an optimistic send fails.
type SendFailure struct {
	ConversationID int64
	MessageID      string
	Err            error
}
