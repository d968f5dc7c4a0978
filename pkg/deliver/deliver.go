package deliver

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Message is one notification output bound for a single chat.
type Message struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// Result is the outcome of one send on one channel.
type Result struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chatId"`
	OK      bool   `json:"ok"`
	Err     string `json:"error,omitempty"`
}

// Sender delivers messages to one chat channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a notification out to every configured channel for
// every chat id and reports per-send results. A failing channel never
// affects the other sends: the contract is at-least-once with the
// failures surfaced for dead-lettering.
type Dispatcher struct {
	Senders []Sender
	Timeout time.Duration
}

// NewDispatcher creates a dispatcher with a per-send timeout.
func NewDispatcher(senders []Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{Senders: senders, Timeout: timeout}
}

// Deliver sends content to every chat id on every channel.
func (d *Dispatcher) Deliver(ctx context.Context, chatIDs []string, content string) []Result {
	var results []Result
	for _, sender := range d.Senders {
		for _, chatID := range chatIDs {
			results = append(results, d.sendOne(ctx, sender, Message{ChatID: chatID, Content: content}))
		}
	}
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, sender Sender, msg Message) (res Result) {
	res = Result{Channel: sender.Name(), ChatID: msg.ChatID}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("deliver: panic in %s sender: %v", sender.Name(), r)
			res.OK = false
			res.Err = fmt.Sprintf("panic: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	if err := sender.Send(sendCtx, msg); err != nil {
		res.Err = err.Error()
		return res
	}
	res.OK = true
	return res
}

// Summarize counts ok and failed results.
func Summarize(results []Result) (okCount, failCount int) {
	for _, r := range results {
		if r.OK {
			okCount++
		} else {
			failCount++
		}
	}
	return okCount, failCount
}
