package capability

import "github.com/lunatix-kernel/lunatix/internal/dtree"

// Message is the fixed-size payload an endpoint rendezvous transfers:
// up to 7 data words (the non-a7 argument registers) and up to 4
// capability addresses to be copied into the receiver's CSpace, per
// spec.md §4.8.
type Message struct {
	Label uint64
	Data  [7]uint64
	NData int

	Caps  [4]CAddr
	NCaps int
}

// endpointState is an Endpoint capability's shared identity: its
// send/recv queues, each modeled as a single waiting task rather than a
// general multi-waiter queue (SPEC_FULL.md §4 Supplemented Features).
type endpointState struct {
	memory *memoryState
	offset int

	sendSet     TaskID
	sendMessage Message

	recvSet TaskID
}

// Endpoint is a synchronous rendezvous point with two queues: senders
// waiting for a receiver, receivers waiting for a sender (spec.md §3.1).
type Endpoint struct {
	state *endpointState
}

func (e *Endpoint) Kind() Kind { return KindEndpoint }

func (e *Endpoint) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*Endpoint)
	return ok && o.state == e.state
}

// SendResult reports the outcome of Send: either the message was
// delivered immediately to a waiting receiver, or the sender was parked.
type SendResult struct {
	Delivered bool
	Receiver  TaskID // valid iff Delivered
}

// Send implements spec.md §4.8's send half of the rendezvous. If a
// receiver is already waiting, it is dequeued and the message handed back
// to the caller to deliver (copying capabilities is the caller's
// responsibility, since it requires access to both CSpaces and the
// derivation tree, which this package does not hold a reference to).
// Otherwise, the sender is enqueued and ErrWouldBlock returned.
func (e *Endpoint) Send(sender TaskID, msg Message) (SendResult, error) {
	if e.state.recvSet != noTask {
		receiver := e.state.recvSet
		e.state.recvSet = noTask

		return SendResult{Delivered: true, Receiver: receiver}, nil
	}

	e.state.sendSet = sender
	e.state.sendMessage = msg

	return SendResult{}, ErrWouldBlock
}

// RecvResult reports the outcome of Recv.
type RecvResult struct {
	Delivered bool
	Message   Message
	Sender    TaskID // valid iff Delivered
}

// Recv implements spec.md §4.8's recv half of the rendezvous.
func (e *Endpoint) Recv(receiver TaskID) (RecvResult, error) {
	if e.state.sendSet != noTask {
		sender := e.state.sendSet
		msg := e.state.sendMessage
		e.state.sendSet = noTask

		return RecvResult{Delivered: true, Message: msg, Sender: sender}, nil
	}

	e.state.recvSet = receiver

	return RecvResult{}, ErrWouldBlock
}

// CancelWait removes task from whichever queue it is parked in, if any.
// Called via Task.CancelBlock when task itself is being destroyed, so
// its id does not linger in either queue after it is gone.
func (e *Endpoint) CancelWait(task TaskID) {
	if e.state.sendSet == task {
		e.state.sendSet = noTask
	}

	if e.state.recvSet == task {
		e.state.recvSet = noTask
	}
}

// Waiting reports the tasks currently parked in the send and receive
// queues, or noTask for an empty queue. Used when the endpoint itself
// is destroyed, to unblock whoever was waiting on it with an error
// return (spec.md §5).
func (e *Endpoint) Waiting() (sender, receiver TaskID) {
	return e.state.sendSet, e.state.recvSet
}
