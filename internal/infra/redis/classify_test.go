package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/dal/internal/core/reconnect"
)

type serverError string

func (e serverError) Error() string { return string(e) }
func (serverError) RedisError()     {}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"key miss", redis.Nil, false},
		{"wrapped key miss", fmt.Errorf("get: %w", redis.Nil), false},
		{"caller cancelled", context.Canceled, false},
		{"caller deadline", context.DeadlineExceeded, false},
		{"wrong type", serverError("WRONGTYPE Operation against a key holding the wrong kind of value"), false},
		{"auth", serverError("WRONGPASS invalid username-password pair"), false},
		{"marked", reconnect.MarkTransient(errors.New("custom")), true},
		{"closed client", redis.ErrClosed, true},
		{"pool timeout", redis.ErrPoolTimeout, true},
		{"eof", io.EOF, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"closed conn", net.ErrClosed, true},
		{"loading", serverError("LOADING Redis is loading the dataset in memory"), true},
		{"readonly", serverError("READONLY You can't write against a read only replica."), true},
		{"cluster down", serverError("CLUSTERDOWN The cluster is down"), true},
		{"try again", serverError("TRYAGAIN Multiple keys request during rehashing of slot"), true},
		{"plain reset text", errors.New("write tcp 127.0.0.1:6379: connection reset by peer"), true},
		{"plain broken pipe", errors.New("write: broken pipe"), true},
		{"business", errors.New("category not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
