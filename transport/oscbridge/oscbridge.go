// Package oscbridge is a reference transport.OSCTransport implementation
// over github.com/hypebeast/go-osc, in the same shape the retrieved
// corpus's live-performance tooling uses it
// (osc.NewStandardDispatcher/osc.Server/osc.Client/osc.Message).
package oscbridge

import (
	"context"
	"fmt"
	"net"

	"github.com/hypebeast/go-osc/osc"
	"github.com/jean-emmanuel/mentat/transport"
)

// Bridge adapts a go-osc server+client pair to transport.OSCTransport.
type Bridge struct {
	protocol transport.Protocol
	port     string

	dispatcher *osc.StandardDispatcher
	server     *osc.Server
	client     *osc.Client

	inbound chan transport.InboundOSC
	errs    chan error
}

// New binds a UDP OSC server on addr (":<port>") and a client for
// outbound sends to host:sendPort, mirroring the bind-then-client
// pairing the corpus's tracker performs around SuperCollider.
func New(addr string, host string, sendPort int) (*Bridge, error) {
	b := &Bridge{
		protocol: transport.ProtoOSC,
		inbound:  make(chan transport.InboundOSC, 256),
		errs:     make(chan error, 1),
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("oscbridge: bad listen address %q: %w", addr, err)
	}
	b.port = port

	d := osc.NewStandardDispatcher()
	b.dispatcher = d
	b.client = osc.NewClient(host, sendPort)
	b.server = &osc.Server{Addr: addr, Dispatcher: d}

	// A single catch-all-ish set of handlers isn't possible with go-osc's
	// exact-address dispatch; AddMsgHandlerExt / wildcard matching is left
	// to the caller via RegisterAddress, since the engine's generic
	// control surface needs the raw address rather than a pre-bound
	// handler.
	go func() {
		if err := b.server.ListenAndServe(); err != nil {
			select {
			case b.errs <- err:
			default:
			}
		}
	}()

	return b, nil
}

// RegisterAddress wires a single OSC address into the dispatcher, pushing
// decoded messages onto the inbound channel Receive drains. The engine
// does not call it (transport.OSCTransport has no such method); whoever
// constructs the Bridge registers each address it wants delivered.
// Addresses never registered are effectively dropped by go-osc's
// exact-match dispatcher, matching "Unknown addresses ... return nil"
// at the codec layer one level up.
func (b *Bridge) RegisterAddress(address string) {
	b.dispatcher.AddMsgHandler(address, func(msg *osc.Message) {
		args := make([]any, len(msg.Arguments))
		for i, a := range msg.Arguments {
			args[i] = a
		}
		select {
		case b.inbound <- transport.InboundOSC{
			Address:  msg.Address,
			Args:     args,
			Typetags: msg.TypeTags(),
			Src:      transport.Source{Protocol: b.protocol, Port: b.port},
		}:
		default:
			// Bounded input queue (spec §5): drop rather than block the
			// OSC reader goroutine.
		}
	})
}

func (b *Bridge) Protocol() transport.Protocol { return b.protocol }
func (b *Bridge) Port() string                 { return b.port }

// Receive blocks for the next decoded inbound message.
func (b *Bridge) Receive(ctx context.Context) (transport.InboundOSC, error) {
	select {
	case <-ctx.Done():
		return transport.InboundOSC{}, ctx.Err()
	case err := <-b.errs:
		return transport.InboundOSC{}, err
	case msg := <-b.inbound:
		return msg, nil
	}
}

// Send transmits an outbound OSC message, logged-and-skipped by the
// engine on error per spec §7 transient I/O.
func (b *Bridge) Send(address string, args []any) error {
	msg := osc.NewMessage(address)
	for _, a := range args {
		msg.Append(a)
	}
	return b.client.Send(msg)
}

// Close shuts the underlying server down.
func (b *Bridge) Close() error {
	return b.server.CloseConnection()
}
