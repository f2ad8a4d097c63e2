// Package channel defines the contract between messaging platforms and the
// conversation pipeline. Each platform adapter turns its native updates into
// InboundMessage values and exposes a single way to send text back.
package channel

import (
	"context"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// InboundMessage is a platform-neutral chat message.
type InboundMessage struct {
	// PlatformUserID identifies the sender: a Telegram or Discord user ID, or a phone number.
	PlatformUserID string
	DisplayName    string
	Text           string
	// ConversationID is where replies go: a chat, channel or phone number.
	ConversationID string
}

// Sender delivers a text reply to a conversation.
type Sender interface {
	SendText(ctx context.Context, conversationID, text string) error
}

// Handler processes one inbound message and answers through sender.
type Handler interface {
	Handle(ctx context.Context, sender Sender, msg InboundMessage)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, sender Sender, msg InboundMessage)

func (f HandlerFunc) Handle(ctx context.Context, sender Sender, msg InboundMessage) {
	f(ctx, sender, msg)
}

// Channel is a running messaging platform adapter.
type Channel interface {
	Sender
	Name() string
	// Run receives messages and dispatches them to h until ctx is cancelled.
	Run(ctx context.Context, h Handler) error
}

// SplitText breaks text into chunks of at most limit runes, preferring to cut
// at line breaks. Platforms with a message size cap send one chunk per message.
func SplitText(text string, limit int) []string {
	return SplitTextFunc(text, limit, func(rune) int { return 1 })
}

// SplitTextFunc is SplitText with the size of each rune given by width, for
// platforms that do not count message length in runes.
func SplitTextFunc(text string, limit int, width func(rune) int) []string {
	if limit <= 0 || measure(text, width) <= limit {
		return []string{text}
	}

	var chunks []string
	for measure(text, width) > limit {
		end := prefixEnd(text, limit, width)
		if end == 0 {
			// A single rune wider than limit still has to go somewhere.
			_, end = utf8.DecodeRuneInString(text)
		}
		head := text[:end]
		cut := strings.LastIndexByte(head, '\n')
		if cut <= 0 {
			chunks = append(chunks, head)
			text = text[end:]
			continue
		}
		chunks = append(chunks, head[:cut])
		text = text[cut+1:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// UTF16Width is the number of UTF-16 code units needed for r.
func UTF16Width(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func measure(text string, width func(rune) int) int {
	n := 0
	for _, r := range text {
		n += width(r)
	}
	return n
}

// prefixEnd returns the byte offset of the longest prefix of text whose
// width fits in limit.
func prefixEnd(text string, limit int, width func(rune) int) int {
	n := 0
	for i, r := range text {
		n += width(r)
		if n > limit {
			return i
		}
	}
	return len(text)
}
