//go:build !windows

package client

import (
	"context"
	"errors"
	"net"
)

func dialPipe(ctx context.Context, name string) (net.Conn, error) {
	return nil, errors.New("named pipes are only supported on windows")
}
