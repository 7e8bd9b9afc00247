package syscall

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/capability"
	"github.com/lunatix-kernel/lunatix/internal/sv39"
	"github.com/lunatix-kernel/lunatix/internal/trapframe"
)

func debugPutc(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	ctx.Console.PutChar(byte(f.Arg(0)))
	return Success, [7]uint64{}, 0
}

// debugLog logs a placeholder referencing the caller-supplied pointer and
// length: this repository has no simulated byte-addressable user memory
// behind a VSpace mapping (internal/sv39 models page-table structure, not
// page contents), so the string itself cannot be read back. See
// DESIGN.md.
func debugLog(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	ctx.Console.Log(fmt.Sprintf("debug_log ptr=%#x len=%d", f.Arg(0), f.Arg(1)))
	return Success, [7]uint64{}, 0
}

func identify(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	slot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if slot.IsUninit() {
		return InvalidCap, [7]uint64{}, 0
	}

	return Success, [7]uint64{uint64(slot.Cap.Kind())}, 1
}

func allocPage(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	memSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	mem, ok := memSlot.Cap.(*capability.Memory)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	dstSlot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if !dstSlot.IsUninit() {
		return OccupiedSlot, [7]uint64{}, 0
	}

	page, node, err := mem.DerivePage(ctx.Tree, memSlot.Node)
	if err != nil {
		return translate(err), [7]uint64{}, 0
	}

	dstSlot.Cap, dstSlot.Node = page, node

	return Success, [7]uint64{}, 0
}

func mapPage(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	vslot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	vspace, ok := vslot.Cap.(*capability.VSpace)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	pslot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	page, ok := pslot.Cap.(*capability.Page)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	vaddr := sv39.VAddr(f.Arg(2))
	flags := sv39.EntryFlags(f.Arg(3))
	pageType := sv39.PageType(f.Arg(4))

	if err := vspace.MapPage(page, vaddr, flags, pageType); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

func assignIPCBuffer(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	pslot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	page, ok := pslot.Cap.(*capability.Page)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	if err := ctx.Task.AssignIPCBuffer(page); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

// deriveFromMem is the generic counterpart to AllocPage: a2 selects which
// kind to derive by its capability.Kind value, a3 supplies the one extra
// parameter a kind may need (CSpace's nbits).
func deriveFromMem(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	memSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	mem, ok := memSlot.Cap.(*capability.Memory)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	dstSlot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if !dstSlot.IsUninit() {
		return OccupiedSlot, [7]uint64{}, 0
	}

	kind := capability.Kind(f.Arg(2))
	extra := f.Arg(3)

	var (
		derived capability.Capability
		node    = ctx.Tree.Root()
		err     error
	)

	switch kind {
	case capability.KindPage:
		derived, node, err = mem.DerivePage(ctx.Tree, memSlot.Node)
	case capability.KindCSpace:
		derived, node, err = mem.DeriveCSpace(ctx.Tree, memSlot.Node, uint(extra))
	case capability.KindVSpace:
		derived, node, err = mem.DeriveVSpace(ctx.Tree, memSlot.Node, ctx.Store)
	case capability.KindTask:
		derived, node, err = mem.DeriveTask(ctx.Tree, memSlot.Node)
	case capability.KindEndpoint:
		derived, node, err = mem.DeriveEndpoint(ctx.Tree, memSlot.Node)
	case capability.KindNotification:
		derived, node, err = mem.DeriveNotification(ctx.Tree, memSlot.Node)
	default:
		return InvalidArg, [7]uint64{}, 0
	}

	if err != nil {
		return translate(err), [7]uint64{}, 0
	}

	dstSlot.Cap, dstSlot.Node = derived, node

	return Success, [7]uint64{}, 0
}

func taskAssignCSpace(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	tslot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	task, ok := tslot.Cap.(*capability.Task)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	csSlot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	cs, ok := csSlot.Cap.(*capability.CSpace)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	if err := task.AssignCSpace(cs); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

func taskAssignVSpace(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	tslot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	task, ok := tslot.Cap.(*capability.Task)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	vslot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	vspace, ok := vslot.Cap.(*capability.VSpace)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	if err := task.AssignVSpace(vspace); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

func taskAssignControlRegisters(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	tslot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	task, ok := tslot.Cap.(*capability.Task)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	pc, sp, gp, tp := f.Arg(1), f.Arg(2), f.Arg(3), f.Arg(4)

	if err := task.AssignControlRegisters(pc, sp, gp, tp); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

func yieldTo(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	tslot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if _, ok := tslot.Cap.(*capability.Task); !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	if err := ctx.Sched.YieldTo(tslot.Node); err != nil {
		return InvalidOp, [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

func yieldHandler(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	ctx.Sched.Yield()
	return Success, [7]uint64{}, 0
}

func irqControlClaim(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	icSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	ic, ok := icSlot.Cap.(*capability.IrqControl)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	line := int(f.Arg(1))

	notifSlot, code := ctx.resolve(f.Arg(2))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	notif, ok := notifSlot.Cap.(*capability.Notification)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	dstSlot, code := ctx.resolve(f.Arg(3))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if !dstSlot.IsUninit() {
		return OccupiedSlot, [7]uint64{}, 0
	}

	irq, node, err := ic.Claim(ctx.Tree, icSlot.Node, line, notif)
	if err != nil {
		return translate(err), [7]uint64{}, 0
	}

	dstSlot.Cap, dstSlot.Node = irq, node

	return Success, [7]uint64{}, 0
}

func waitOn(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	notifSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	notif, ok := notifSlot.Cap.(*capability.Notification)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	result := notif.WaitOn(ctx.TaskNode)
	if !result.Delivered {
		ctx.Task.Block(notif)
		ctx.Sched.Block(ctx.TaskNode)
		return WouldBlock, [7]uint64{}, 0
	}

	return Success, [7]uint64{result.Bits}, 1
}

func irqComplete(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	irqSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	irq, ok := irqSlot.Cap.(*capability.Irq)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	if ctx.IrqController != nil {
		ctx.IrqController.Complete(irq.Line())
	}

	return Success, [7]uint64{}, 0
}

func systemReset(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	if ctx.ResetRequested != nil {
		*ctx.ResetRequested = true
	}

	return Success, [7]uint64{}, 0
}

func mapDevmem(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	devSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	dev, ok := devSlot.Cap.(*capability.Devmem)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	vslot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	vspace, ok := vslot.Cap.(*capability.VSpace)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	vaddr := sv39.VAddr(f.Arg(2))
	flags := sv39.EntryFlags(f.Arg(3))

	if err := dev.MapInto(vspace, vaddr, flags); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

// sendHandler and recvHandler implement spec.md §4.8's rendezvous at the
// syscall boundary. Only a label and a single data word cross via
// registers -- this repository has no simulated IPC-buffer byte storage
// to carry the full 7-word/4-capability message capability.Message
// supports (see DESIGN.md); the full message shape is exercised directly
// against internal/capability in its own tests.
func sendHandler(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	epSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	ep, ok := epSlot.Cap.(*capability.Endpoint)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	label, data0 := f.Arg(1), f.Arg(2)

	msg := capability.Message{Label: label, NData: 1}
	msg.Data[0] = data0

	result, err := ep.Send(ctx.TaskNode, msg)
	if err != nil {
		ctx.Task.Block(ep)
		ctx.Sched.Block(ctx.TaskNode)
		return translate(err), [7]uint64{}, 0
	}

	if result.Delivered {
		if receiver, ok := ctx.Sched.TaskByID(result.Receiver); ok {
			rf := receiver.Frame()
			rf.SetArg(0, uint64(Success))
			rf.SetArg(1, label)
			rf.SetArg(2, data0)
			receiver.Unblock()
		}

		ctx.Sched.MakeRunnable(result.Receiver)
	}

	return Success, [7]uint64{}, 0
}

func recvHandler(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	epSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	ep, ok := epSlot.Cap.(*capability.Endpoint)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	result, err := ep.Recv(ctx.TaskNode)
	if err != nil {
		ctx.Task.Block(ep)
		ctx.Sched.Block(ctx.TaskNode)
		return translate(err), [7]uint64{}, 0
	}

	// Mirror the send path: a sender that parked first is resolved and
	// unblocked here exactly as a waiting receiver is unblocked above,
	// per spec.md §4.8's symmetric recv.
	if sender, ok := ctx.Sched.TaskByID(result.Sender); ok {
		sf := sender.Frame()
		sf.SetArg(0, uint64(Success))
		sf.SetArg(1, result.Message.Label)
		sf.SetArg(2, result.Message.Data[0])
		sender.Unblock()
	}

	ctx.Sched.MakeRunnable(result.Sender)

	return Success, [7]uint64{result.Message.Label, result.Message.Data[0]}, 2
}

func destroyHandler(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	slot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	cascade := capability.Destroy(ctx.Tree, slot)

	// Tasks are scrubbed out of whatever queue they were parked in
	// first. A task's node is already released by this point (dtree's
	// Destroy releases nodes before returning the cascade), so if the
	// same cascade also destroys the endpoint/notification it was
	// blocked on, CancelBlock must run before the second loop below
	// ever resolves that task's id again.
	for _, d := range cascade {
		task, ok := d.Payload.(*capability.Task)
		if !ok {
			continue
		}

		task.CancelBlock()
		ctx.Sched.Remove(d.Node)
	}

	// Per spec.md §5, destroying a capability a task is blocked on
	// unblocks that task with an error return. Only a Last removal
	// actually ends the resource's life -- a surviving copy means some
	// other node still names the same live endpoint/notification, so
	// anyone parked on it stays parked.
	for _, d := range cascade {
		if !d.Last {
			continue
		}

		switch cap := d.Payload.(type) {
		case *capability.Endpoint:
			sender, receiver := cap.Waiting()
			abortWait(ctx, sender)
			abortWait(ctx, receiver)
		case *capability.Notification:
			abortWait(ctx, cap.Waiting())
		}
	}

	return Success, [7]uint64{}, 0
}

// abortWait unblocks id, parked on a capability that has just been
// destroyed, with an InvalidCap error return rather than leaving it
// blocked forever. A no-op if id names no live task -- the queue was
// empty, or the task was already scrubbed by CancelBlock above.
func abortWait(ctx *Context, id capability.TaskID) {
	task, ok := ctx.Sched.TaskByID(id)
	if !ok {
		return
	}

	task.Frame().SetArg(0, uint64(InvalidCap))
	task.Unblock()
	ctx.Sched.MakeRunnable(id)
}

func copyHandler(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	srcSlot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if srcSlot.IsUninit() {
		return InvalidCap, [7]uint64{}, 0
	}

	dstSlot, code := ctx.resolve(f.Arg(1))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	if err := capability.Copy(ctx.Tree, srcSlot.Node, srcSlot.Cap, dstSlot); err != nil {
		return translate(err), [7]uint64{}, 0
	}

	return Success, [7]uint64{}, 0
}

func getPagePaddr(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	slot, code := ctx.resolve(f.Arg(0))
	if code != Success {
		return code, [7]uint64{}, 0
	}

	page, ok := slot.Cap.(*capability.Page)
	if !ok {
		return InvalidCap, [7]uint64{}, 0
	}

	return Success, [7]uint64{uint64(page.PAddr())}, 1
}

func exitHandler(ctx *Context, f *trapframe.Frame) (Error, [7]uint64, int) {
	ctx.Sched.Remove(ctx.TaskNode)
	return Success, [7]uint64{}, 0
}
