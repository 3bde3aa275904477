package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand"
	"sync/atomic"
	"time"

	"github.com/binsense/coapnode-go/pkg/model"
	"github.com/binsense/coapnode-go/pkg/transport"
	"github.com/binsense/coapnode-go/pkg/wire"
)

// Retransmission parameters (RFC 7252 section 4.8).
const (
	AckTimeout    = 2 * time.Second
	MaxRetransmit = 4
)

// TokenLength is the token size this client generates.
const TokenLength = 4

// Client errors.
var (
	// ErrTimeout indicates the server did not respond within the
	// retransmission budget.
	ErrTimeout = errors.New("client: request timed out")

	// ErrReset indicates the server rejected the request with a Reset.
	ErrReset = errors.New("client: request rejected with reset")

	// ErrErrorResponse indicates a 4.xx or 5.xx response; the response
	// itself is still returned alongside.
	ErrErrorResponse = errors.New("client: error response")
)

// Client is a synchronous CoAP client bound to one server.
type Client struct {
	conn      *transport.Conn
	messageID atomic.Uint32
}

// Dial connects to a CoAP server at address.
func Dial(address string) (*Client, error) {
	conn, err := transport.Dial(address)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn}
	c.messageID.Store(mrand.Uint32())
	return c, nil
}

// Close closes the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Get performs a confirmable GET on path.
func (c *Client) Get(ctx context.Context, path string) (*wire.Message, error) {
	req := c.newRequest(wire.CodeGET, path)
	return c.roundTrip(ctx, req)
}

// GetAccept performs a confirmable GET with the Accept option set.
func (c *Client) GetAccept(ctx context.Context, path string, contentFormat uint16) (*wire.Message, error) {
	req := c.newRequest(wire.CodeGET, path)
	req.SetUintOption(wire.OptionAccept, uint32(contentFormat))
	return c.roundTrip(ctx, req)
}

// Put performs a confirmable PUT on path.
func (c *Client) Put(ctx context.Context, path string, contentFormat uint16, body []byte) (*wire.Message, error) {
	req := c.newRequest(wire.CodePUT, path)
	req.SetContentFormat(contentFormat)
	req.Payload = body
	return c.roundTrip(ctx, req)
}

// Discover fetches and parses /.well-known/core.
func (c *Client) Discover(ctx context.Context) ([]model.Link, error) {
	resp, err := c.Get(ctx, model.PathDiscovery)
	if err != nil {
		return nil, err
	}
	return model.ParseLinkFormat(resp.Payload)
}

// Observe registers as an observer of path and invokes fn for the
// initial response and every notification, until ctx is cancelled. On
// cancellation the observation is deregistered with a follow-up GET.
func (c *Client) Observe(ctx context.Context, path string, fn func(*wire.Message)) error {
	req := c.newRequest(wire.CodeGET, path)
	req.SetObserve(wire.ObserveRegister)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	if _, ok := resp.Observe(); !ok {
		return fmt.Errorf("client: %s is not observable", path)
	}
	fn(resp)

	for {
		data, err := c.conn.Receive(time.Second)
		if err != nil {
			if errors.Is(err, transport.ErrReceiveTimeout) {
				select {
				case <-ctx.Done():
					return c.deregister(path, req.Token)
				default:
					continue
				}
			}
			return err
		}

		msg, err := wire.Decode(data)
		if err != nil || !bytes.Equal(msg.Token, req.Token) {
			continue
		}
		fn(msg)

		select {
		case <-ctx.Done():
			return c.deregister(path, req.Token)
		default:
		}
	}
}

// deregister sends a best-effort observe deregistration reusing the
// registration token.
func (c *Client) deregister(path string, token []byte) error {
	req := c.newRequest(wire.CodeGET, path)
	req.Token = token
	req.SetObserve(wire.ObserveDeregister)

	data, err := wire.Encode(req)
	if err != nil {
		return err
	}
	return c.conn.Send(data)
}

// newRequest builds a confirmable request with a fresh message ID and
// token.
func (c *Client) newRequest(code wire.Code, path string) *wire.Message {
	req := &wire.Message{
		Type:      wire.Confirmable,
		Code:      code,
		MessageID: uint16(c.messageID.Add(1)),
		Token:     newToken(),
	}
	req.SetPath(path)
	return req
}

// roundTrip sends a confirmable request and waits for the matching
// response, retransmitting with exponential backoff.
func (c *Client) roundTrip(ctx context.Context, req *wire.Message) (*wire.Message, error) {
	data, err := wire.Encode(req)
	if err != nil {
		return nil, err
	}

	timeout := AckTimeout
	for attempt := 0; attempt <= MaxRetransmit; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.conn.Send(data); err != nil {
			return nil, err
		}

		resp, err := c.awaitResponse(ctx, req, timeout)
		if err == nil || !errors.Is(err, transport.ErrReceiveTimeout) {
			return resp, err
		}
		timeout *= 2
	}
	return nil, ErrTimeout
}

// awaitResponse reads datagrams until one matches the request or the
// per-attempt timeout expires.
func (c *Client) awaitResponse(ctx context.Context, req *wire.Message, timeout time.Duration) (*wire.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, transport.ErrReceiveTimeout
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := c.conn.Receive(remaining)
		if err != nil {
			return nil, err
		}
		msg, err := wire.Decode(data)
		if err != nil {
			continue
		}

		if msg.Type == wire.Reset && msg.MessageID == req.MessageID {
			return nil, ErrReset
		}
		if !c.matches(req, msg) {
			continue
		}
		if msg.Code.IsResponse() && !msg.Code.IsSuccess() {
			return msg, fmt.Errorf("%w: %s", ErrErrorResponse, msg.Code)
		}
		return msg, nil
	}
}

// matches reports whether msg answers req: a piggybacked ACK carries
// the request's message ID, any response must echo its token.
func (c *Client) matches(req, msg *wire.Message) bool {
	if !msg.Code.IsResponse() {
		return false
	}
	if msg.Type == wire.Acknowledgement && msg.MessageID != req.MessageID {
		return false
	}
	return bytes.Equal(msg.Token, req.Token)
}

func newToken() []byte {
	token := make([]byte, TokenLength)
	rand.Read(token)
	return token
}
