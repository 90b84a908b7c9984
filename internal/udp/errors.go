package udp

import (
	"errors"
	"fmt"
)

// ErrPoolClosed is returned when a send task is submitted after Stop.
var ErrPoolClosed = errors.New("send pool closed")

// BindError means the socket could not be bound. The manager stays closed.
type BindError struct {
	Port int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind udp port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ReceiveFault is an I/O failure while blocked on receive. It ends the
// current session.
type ReceiveFault struct {
	Err error
}

func (e *ReceiveFault) Error() string {
	return fmt.Sprintf("receive: %v", e.Err)
}

func (e *ReceiveFault) Unwrap() error { return e.Err }

// SendFault is a resolution or transmission failure for one outbound
// datagram. The datagram is dropped.
type SendFault struct {
	Op   string // encode, submit, resolve, write or panic
	Host string
	Port int
	Err  error
}

func (e *SendFault) Error() string {
	return fmt.Sprintf("send %s %s: %v", e.Op, targetAddr(e.Host, e.Port), e.Err)
}

func (e *SendFault) Unwrap() error { return e.Err }

// ListenerFault is a panic raised by the receive listener.
type ListenerFault struct {
	Value any
	Stack []byte
}

func (e *ListenerFault) Error() string {
	return fmt.Sprintf("receive listener panicked: %v", e.Value)
}
