package interaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/binsense/coapnode-go/pkg/log"
	"github.com/binsense/coapnode-go/pkg/model"
	"github.com/binsense/coapnode-go/pkg/payload"
	"github.com/binsense/coapnode-go/pkg/subscription"
	"github.com/binsense/coapnode-go/pkg/wire"
)

// Sender delivers an outbound message to a client endpoint. The
// dispatcher uses it for responses, notifications and resets.
type Sender func(endpoint string, msg *wire.Message)

// Server routes inbound CoAP messages to resources and manages the
// observe lifecycle.
type Server struct {
	mu sync.RWMutex

	registry  *model.Registry
	observers *subscription.Table
	sender    Sender
	logger    log.Logger

	// messageID seeds outbound message IDs. Only the low 16 bits are
	// used; the counter never repeats within a deduplication window.
	messageID atomic.Uint32
}

// NewServer creates a dispatcher over the given registry and observer
// table.
func NewServer(registry *model.Registry, observers *subscription.Table) *Server {
	s := &Server{
		registry:  registry,
		observers: observers,
		logger:    log.NoopLogger{},
	}
	s.messageID.Store(rand.Uint32())
	return s
}

// SetSender sets the outbound send path.
func (s *Server) SetSender(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// SetLogger sets the diagnostic logger. Pass nil to disable.
func (s *Server) SetLogger(logger log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = log.NoopLogger{}
	}
	s.logger = logger
}

// HandleDatagram decodes one inbound datagram and processes it fully:
// the response, reset or notification fan-out is handed to the sender
// before the call returns.
func (s *Server) HandleDatagram(ctx context.Context, endpoint string, data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		s.logError(log.LayerWire, endpoint, err, "decode")
		// Reject with a Reset when the message ID survived; drop
		// silently otherwise (RFC 7252 robustness).
		if mid, ok := wire.MessageIDFromHeader(data); ok {
			s.send(endpoint, &wire.Message{Type: wire.Reset, Code: wire.CodeEmpty, MessageID: mid})
		}
		return
	}

	s.logMessage(log.DirectionIn, endpoint, msg)

	switch {
	case msg.Type == wire.Reset:
		if path, ok := s.observers.CancelByReset(endpoint, msg.MessageID); ok {
			s.logSubscriptionState(endpoint, path, "REGISTERED", "CANCELLED", "reset received")
		}

	case msg.Code == wire.CodeEmpty && msg.Type == wire.Confirmable:
		// CoAP ping: answer with a Reset echoing the message ID.
		s.send(endpoint, &wire.Message{Type: wire.Reset, Code: wire.CodeEmpty, MessageID: msg.MessageID})

	case msg.Code.IsRequest():
		if resp := s.HandleRequest(ctx, endpoint, msg); resp != nil {
			s.send(endpoint, resp)
		}

	default:
		// Acknowledgements and stray responses carry no work for a
		// best-effort server.
	}
}

// HandleRequest processes a decoded request and returns the response to
// send, or nil when the request warrants silence.
func (s *Server) HandleRequest(ctx context.Context, endpoint string, req *wire.Message) (resp *wire.Message) {
	// Transactions are independent; a handler bug must not take the
	// process down with it.
	defer func() {
		if r := recover(); r != nil {
			s.logError(log.LayerService, endpoint, fmt.Errorf("handler panic: %v", r), req.Path())
			resp = s.errorResponse(req, wire.CodeInternalServerError, "internal error")
		}
	}()

	path := req.Path()
	if path == model.PathDiscovery {
		return s.handleDiscovery(req)
	}

	resource, err := s.registry.Lookup(path)
	if err != nil {
		return s.errorResponse(req, wire.CodeNotFound, path)
	}

	switch req.Code {
	case wire.CodeGET:
		return s.handleGet(endpoint, req, resource)
	case wire.CodePUT:
		return s.handlePut(endpoint, req, resource)
	default:
		return s.errorResponse(req, wire.CodeMethodNotAllowed, req.Code.String())
	}
}

// handleDiscovery synthesizes /.well-known/core from the registry. The
// representation is always link-format, regardless of the client's
// Accept option.
func (s *Server) handleDiscovery(req *wire.Message) *wire.Message {
	if req.Code != wire.CodeGET {
		return s.errorResponse(req, wire.CodeMethodNotAllowed, req.Code.String())
	}
	resp := s.response(req, wire.CodeContent)
	resp.SetContentFormat(wire.ContentFormatLinkFormat)
	resp.Payload = s.registry.LinkFormat()
	return resp
}

func (s *Server) handleGet(endpoint string, req *wire.Message, resource *model.Resource) *wire.Message {
	if accept, ok := req.UintOption(wire.OptionAccept); ok && uint16(accept) != resource.ContentFormat() {
		return s.errorResponse(req, wire.CodeNotAcceptable,
			fmt.Sprintf("content format %d", resource.ContentFormat()))
	}

	resp := s.response(req, wire.CodeContent)
	resp.SetContentFormat(resource.ContentFormat())
	resp.Payload = resource.Read()

	observe, hasObserve := req.Observe()
	if !hasObserve || !resource.Observable() {
		// An observe option on a non-observable resource is ignored;
		// the client gets a plain response without the option.
		return resp
	}

	switch observe {
	case wire.ObserveRegister:
		sub, err := s.observers.Subscribe(resource.Path(), endpoint, req.Token)
		if err != nil {
			if errors.Is(err, subscription.ErrSubscriberLimit) {
				return s.errorResponse(req, wire.CodeServiceUnavailable, "observer limit reached")
			}
			return s.errorResponse(req, wire.CodeInternalServerError, "subscribe failed")
		}
		resp.SetObserve(s.observers.NextSequence(resource.Path()))
		s.observers.RecordNotification(sub.ID, resp.MessageID)
		s.logSubscriptionState(endpoint, resource.Path(), "", "REGISTERED", "")

	case wire.ObserveDeregister:
		if s.observers.UnsubscribeBy(resource.Path(), endpoint) {
			s.logSubscriptionState(endpoint, resource.Path(), "REGISTERED", "CANCELLED", "deregister")
		}

	default:
		// Unknown observe values on a request are a client error.
		return s.errorResponse(req, wire.CodeBadRequest, "invalid observe value")
	}
	return resp
}

func (s *Server) handlePut(endpoint string, req *wire.Message, resource *model.Resource) *wire.Message {
	if !resource.Writable() {
		return s.errorResponse(req, wire.CodeMethodNotAllowed, "read-only resource")
	}
	if cf, ok := req.ContentFormat(); ok && cf != resource.ContentFormat() {
		return s.errorResponse(req, wire.CodeNotAcceptable,
			fmt.Sprintf("expected content format %d", resource.ContentFormat()))
	}

	changed, err := s.registry.Write(resource, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, payload.ErrBadShape), errors.Is(err, payload.ErrOutOfRange):
			return s.errorResponse(req, wire.CodeBadRequest, err.Error())
		default:
			s.logError(log.LayerService, endpoint, err, resource.Path())
			return s.errorResponse(req, wire.CodeInternalServerError, "write failed")
		}
	}

	if changed && resource.Observable() {
		s.NotifyObservers(resource.Path())
	}
	return s.response(req, wire.CodeChanged)
}

// NotifyObservers fans a resource's current representation out to its
// subscribers: one non-confirmable message per subscriber, in
// registration order, each with the subscriber's token, a fresh message
// ID and a freshly drawn observe sequence. The sampling scheduler calls
// this for changes it owns; PUT handling calls it for actuator writes.
func (s *Server) NotifyObservers(path string) {
	resource, err := s.registry.Lookup(path)
	if err != nil || !resource.Observable() {
		return
	}
	representation := resource.Read()

	for _, sub := range s.observers.SubscribersOf(path) {
		msg := &wire.Message{
			Type:      wire.NonConfirmable,
			Code:      wire.CodeContent,
			MessageID: s.nextMessageID(),
			Token:     sub.Token,
			Payload:   representation,
		}
		msg.SetObserve(s.observers.NextSequence(path))
		msg.SetContentFormat(resource.ContentFormat())

		// Remember the MID so a Reset from this endpoint can cancel
		// the subscription.
		s.observers.RecordNotification(sub.ID, msg.MessageID)
		s.send(sub.Endpoint, msg)
	}
}

// response builds the base response for a request: a piggybacked ACK
// for confirmable requests, a fresh NON otherwise. The request token is
// echoed either way.
func (s *Server) response(req *wire.Message, code wire.Code) *wire.Message {
	resp := &wire.Message{Code: code, Token: req.Token}
	if req.Type == wire.Confirmable {
		resp.Type = wire.Acknowledgement
		resp.MessageID = req.MessageID
	} else {
		resp.Type = wire.NonConfirmable
		resp.MessageID = s.nextMessageID()
	}
	return resp
}

// errorResponse builds an error response with a diagnostic text payload
// (RFC 7252 §5.5.2: no Content-Format option).
func (s *Server) errorResponse(req *wire.Message, code wire.Code, diagnostic string) *wire.Message {
	resp := s.response(req, code)
	if diagnostic != "" {
		resp.Payload = []byte(diagnostic)
	}
	return resp
}

func (s *Server) nextMessageID() uint16 {
	return uint16(s.messageID.Add(1))
}

func (s *Server) send(endpoint string, msg *wire.Message) {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()

	if sender == nil {
		return
	}
	s.logMessage(log.DirectionOut, endpoint, msg)
	sender(endpoint, msg)
}

func (s *Server) logMessage(dir log.Direction, endpoint string, msg *wire.Message) {
	event := log.Event{
		Timestamp:  time.Now(),
		Direction:  dir,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: endpoint,
		Message: &log.MessageEvent{
			MsgType:     msg.Type,
			Code:        msg.Code,
			MessageID:   msg.MessageID,
			Token:       msg.Token,
			PayloadSize: len(msg.Payload),
		},
	}
	if msg.Code.IsRequest() {
		event.Message.Path = msg.Path()
	}
	if v, ok := msg.Observe(); ok {
		observe := v
		event.Message.Observe = &observe
	}
	s.logger.Log(event)
}

func (s *Server) logSubscriptionState(endpoint, path, oldState, newState, reason string) {
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerService,
		Category:   log.CategoryState,
		RemoteAddr: endpoint,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: oldState,
			NewState: newState,
			Reason:   reason + " " + path,
		},
	})
}

func (s *Server) logError(layer log.Layer, endpoint string, err error, context string) {
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      layer,
		Category:   log.CategoryError,
		RemoteAddr: endpoint,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
