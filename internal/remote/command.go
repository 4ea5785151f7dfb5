// Package remote implements a signaling provider whose protocol stack runs
// out of process. Call and peer state arrive through the API; hold and hangup
// leave as commands on a sink the stack subscribes to.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type CommandKind string

const (
	CommandHold   CommandKind = "hold"
	CommandHangup CommandKind = "hangup"
)

// Command asks the signaling stack to act on one peer.
type Command struct {
	ID         string      `json:"id"`
	Kind       CommandKind `json:"kind"`
	AccountID  string      `json:"account_id"`
	CallID     string      `json:"call_id"`
	PeerID     string      `json:"peer_id"`
	ReasonCode int         `json:"reason_code,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	IssuedAt   time.Time   `json:"issued_at"`
}

// CommandSink delivers commands to the signaling stack.
type CommandSink interface {
	Send(ctx context.Context, cmd Command) error
}

// CommandChannel is the pub/sub channel the stack of account listens on.
func CommandChannel(accountID string) string {
	return "callcore:commands:" + accountID
}

// RedisSink publishes commands as JSON on CommandChannel.
type RedisSink struct {
	rdb *redis.Client
}

func NewRedisSink(rdb *redis.Client) *RedisSink { return &RedisSink{rdb: rdb} }

func (s *RedisSink) Send(ctx context.Context, cmd Command) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	receivers, err := s.rdb.Publish(ctx, CommandChannel(cmd.AccountID), b).Result()
	if err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	if receivers == 0 {
		return ErrNoSignalingStack
	}
	return nil
}

// MemorySink collects commands. Err, when set, is returned by Send.
type MemorySink struct {
	mu       sync.Mutex
	commands []Command
	Err      error
}

func (s *MemorySink) Send(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.commands = append(s.commands, cmd)
	return nil
}

func (s *MemorySink) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}
