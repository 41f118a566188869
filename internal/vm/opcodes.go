// execute is the single dense dispatch switch spec §4.2 calls for; each
// case either handles a trivial stack literal inline or delegates to a
// small per-category handler defined in the sibling files (arith.go,
// comparison.go, control.go, memory.go, collections.go, closures.go,
// tagged.go, modules.go, effects.go, gcops.go, async.go, actor.go,
// strops.go, cells.go).
package vm

import (
	"corevm/internal/bytecode"
	vmerrors "corevm/internal/errors"
	"corevm/internal/value"
)

func (vm *VM) execute(frame *CallFrame, chunk *bytecodeChunk, instr bytecode.Instr) error {
	switch instr.Opcode {

	// Stack literals
	case bytecode.OpPush, bytecode.OpPushConst:
		return vm.opPushConst(frame, chunk, instr.Arg)
	case bytecode.OpPop:
		return vm.opPop(frame, chunk, instr.Arg)
	case bytecode.OpPopN:
		return vm.opPopN(frame, chunk, instr.Arg)
	case bytecode.OpDup:
		return vm.opDup(frame, chunk, instr.Arg)
	case bytecode.OpSwap:
		return vm.opSwap(frame, chunk, instr.Arg)
	case bytecode.OpPushInt0:
		return vm.push(value.Int(0))
	case bytecode.OpPushInt1:
		return vm.push(value.Int(1))
	case bytecode.OpPushInt2:
		return vm.push(value.Int(2))
	case bytecode.OpPushIntSmall:
		return vm.push(value.Int(int64(int32(instr.Arg))))
	case bytecode.OpPushTrue:
		return vm.push(value.Bool(true))
	case bytecode.OpPushFalse:
		return vm.push(value.Bool(false))
	case bytecode.OpPushNil:
		return vm.push(value.Nil())

	// Arithmetic
	case bytecode.OpAdd:
		return vm.opArith("add")
	case bytecode.OpSub:
		return vm.opArith("sub")
	case bytecode.OpMul:
		return vm.opArith("mul")
	case bytecode.OpDiv:
		return vm.opArith("div")
	case bytecode.OpMod:
		return vm.opArith("mod")
	case bytecode.OpNeg:
		return vm.opNeg(frame, chunk, instr.Arg)
	case bytecode.OpAddInt:
		return vm.opTypedIntBinary("addint")
	case bytecode.OpSubInt:
		return vm.opTypedIntBinary("subint")
	case bytecode.OpMulInt:
		return vm.opTypedIntBinary("mulint")
	case bytecode.OpDivInt:
		return vm.opTypedIntBinary("divint")
	case bytecode.OpAddFloat:
		return vm.opTypedFloatBinary("addfloat")
	case bytecode.OpSubFloat:
		return vm.opTypedFloatBinary("subfloat")
	case bytecode.OpMulFloat:
		return vm.opTypedFloatBinary("mulfloat")
	case bytecode.OpDivFloat:
		return vm.opTypedFloatBinary("divfloat")
	case bytecode.OpStrConcat:
		return vm.opStrConcat(frame, chunk, instr.Arg)

	// Comparison / logic
	case bytecode.OpEq:
		return vm.opEq(frame, chunk, instr.Arg)
	case bytecode.OpNe:
		return vm.opNe(frame, chunk, instr.Arg)
	case bytecode.OpLt:
		return vm.opLt(frame, chunk, instr.Arg)
	case bytecode.OpLe:
		return vm.opLe(frame, chunk, instr.Arg)
	case bytecode.OpGt:
		return vm.opGt(frame, chunk, instr.Arg)
	case bytecode.OpGe:
		return vm.opGe(frame, chunk, instr.Arg)
	case bytecode.OpAnd:
		return vm.opAnd(frame, chunk, instr.Arg)
	case bytecode.OpOr:
		return vm.opOr(frame, chunk, instr.Arg)
	case bytecode.OpNot:
		return vm.opNot(frame, chunk, instr.Arg)

	// Control flow
	case bytecode.OpJump:
		return vm.opJump(frame, chunk, instr.Arg)
	case bytecode.OpJumpIf:
		return vm.opJumpIf(frame, chunk, instr.Arg)
	case bytecode.OpJumpIfNot:
		return vm.opJumpIfNot(frame, chunk, instr.Arg)
	case bytecode.OpCall:
		return vm.opCall(frame, chunk, instr.Arg)
	case bytecode.OpTailCall:
		return vm.opTailCall(frame, chunk, instr.Arg)
	case bytecode.OpReturn:
		return vm.opReturn(frame, chunk, instr.Arg)
	case bytecode.OpLoopStart:
		return vm.opLoopStart(frame, chunk, instr.Arg)
	case bytecode.OpLoopEnd:
		return vm.opLoopEnd(frame, chunk, instr.Arg)
	case bytecode.OpHalt:
		return vm.opHalt(frame, chunk, instr.Arg)
	case bytecode.OpNop, bytecode.OpMakeEnv, bytecode.OpPopEnv:
		return vm.opNop(frame, chunk, instr.Arg)

	// Memory
	case bytecode.OpLoadLocal:
		return vm.opLoadLocal(frame, chunk, instr.Arg)
	case bytecode.OpLoadLocal0:
		return vm.opLoadLocalN(frame, 0)
	case bytecode.OpLoadLocal1:
		return vm.opLoadLocalN(frame, 1)
	case bytecode.OpLoadLocal2:
		return vm.opLoadLocalN(frame, 2)
	case bytecode.OpLoadLocal3:
		return vm.opLoadLocalN(frame, 3)
	case bytecode.OpStoreLocal:
		return vm.opStoreLocal(frame, chunk, instr.Arg)
	case bytecode.OpLoadGlobal:
		return vm.opLoadGlobal(frame, chunk, instr.Arg)
	case bytecode.OpStoreGlobal:
		return vm.opStoreGlobal(frame, chunk, instr.Arg)
	case bytecode.OpDefineGlobal:
		return vm.opDefineGlobal(frame, chunk, instr.Arg)
	case bytecode.OpLoadCaptured:
		return vm.opLoadCaptured(frame, chunk, instr.Arg)
	case bytecode.OpLoadUpvalue:
		return vm.opLoadUpvalue(frame, chunk, instr.Arg)
	case bytecode.OpStoreUpvalue:
		return vm.opStoreUpvalue(frame, chunk, instr.Arg)
	case bytecode.OpMakeCell:
		return vm.opMakeCell(frame, chunk, instr.Arg)
	case bytecode.OpLoadCell:
		return vm.opLoadCell(frame, chunk, instr.Arg)
	case bytecode.OpStoreCell:
		return vm.opStoreCell(frame, chunk, instr.Arg)

	// Collections
	case bytecode.OpMakeList:
		return vm.opMakeList(frame, chunk, instr.Arg)
	case bytecode.OpListGet:
		return vm.opListGet(frame, chunk, instr.Arg)
	case bytecode.OpListSet:
		return vm.opListSet(frame, chunk, instr.Arg)
	case bytecode.OpListHead:
		return vm.opListHead(frame, chunk, instr.Arg)
	case bytecode.OpListTail:
		return vm.opListTail(frame, chunk, instr.Arg)
	case bytecode.OpListCons:
		return vm.opListCons(frame, chunk, instr.Arg)
	case bytecode.OpListLen:
		return vm.opListLen(frame, chunk, instr.Arg)
	case bytecode.OpListEmpty:
		return vm.opListEmpty(frame, chunk, instr.Arg)
	case bytecode.OpMakeMap:
		return vm.opMakeMap(frame, chunk, instr.Arg)
	case bytecode.OpMapGet:
		return vm.opMapGet(frame, chunk, instr.Arg)
	case bytecode.OpMapSet:
		return vm.opMapSet(frame, chunk, instr.Arg)

	// Closures
	case bytecode.OpMakeFunc:
		return vm.opMakeFunc(frame, chunk, instr.Arg)
	case bytecode.OpMakeClosure:
		return vm.opMakeClosure(frame, chunk, instr.Arg)

	// Tagged values
	case bytecode.OpMakeTagged:
		return vm.opMakeTagged(frame, chunk, instr.Arg)
	case bytecode.OpGetTag:
		return vm.opGetTag(frame, chunk, instr.Arg)
	case bytecode.OpGetTaggedField:
		return vm.opGetTaggedField(frame, chunk, instr.Arg)
	case bytecode.OpIsTagged:
		return vm.opIsTagged(frame, chunk, instr.Arg)

	// Modules
	case bytecode.OpLoadModule:
		return vm.opLoadModule(frame, chunk, instr.Arg)
	case bytecode.OpBeginModule:
		return vm.opBeginModule(frame, chunk, instr.Arg)
	case bytecode.OpEndModule:
		return vm.opEndModule(frame, chunk, instr.Arg)
	case bytecode.OpExportBinding:
		return vm.opExportBinding(frame, chunk, instr.Arg)
	case bytecode.OpImportBinding:
		return vm.opImportBinding(frame, chunk, instr.Arg)
	case bytecode.OpImportAll:
		return vm.opImportAll(frame, chunk, instr.Arg)
	case bytecode.OpLoadQualified:
		return vm.opLoadQualified(frame, chunk, instr.Arg)

	// Effects & errors
	case bytecode.OpInstallHandler:
		return vm.opInstallHandler(frame, chunk, instr.Arg)
	case bytecode.OpUninstallHandler:
		return vm.opUninstallHandler(frame, chunk, instr.Arg)
	case bytecode.OpPerform:
		return vm.opPerform(frame, chunk, instr.Arg)
	case bytecode.OpTryStart:
		return vm.opTryStart(frame, chunk, instr.Arg)
	case bytecode.OpTryStartWithFinally:
		return vm.opTryStartWithFinally(frame, chunk, instr.Arg)
	case bytecode.OpTryEnd:
		return vm.opTryEnd(frame, chunk, instr.Arg)
	case bytecode.OpThrow:
		return vm.opThrow(frame, chunk, instr.Arg)
	case bytecode.OpFinallyStart:
		return vm.opFinallyStart(frame, chunk, instr.Arg)
	case bytecode.OpFinallyEnd:
		return vm.opFinallyEnd(frame, chunk, instr.Arg)

	// GC
	case bytecode.OpGcAlloc:
		return vm.opGcAlloc(frame, chunk, instr.Arg)
	case bytecode.OpGcDeref:
		return vm.opGcDeref(frame, chunk, instr.Arg)
	case bytecode.OpGcSet:
		return vm.opGcSet(frame, chunk, instr.Arg)
	case bytecode.OpGcCollect:
		return vm.opGcCollect(frame, chunk, instr.Arg)

	// Concurrent
	case bytecode.OpSpawn:
		return vm.opSpawn(frame, chunk, instr.Arg)
	case bytecode.OpAwait:
		return vm.opAwait(frame, chunk, instr.Arg)
	case bytecode.OpChannel:
		return vm.opChannel(frame, chunk, instr.Arg)
	case bytecode.OpChannelWithCapacity:
		return vm.opChannelWithCapacity(frame, chunk, instr.Arg)
	case bytecode.OpSend:
		return vm.opSend(frame, chunk, instr.Arg)
	case bytecode.OpReceive:
		return vm.opReceive(frame, chunk, instr.Arg)
	case bytecode.OpPromiseAll:
		return vm.opPromiseAll(frame, chunk, instr.Arg)
	case bytecode.OpPromiseRace:
		return vm.opPromiseRace(frame, chunk, instr.Arg)
	case bytecode.OpWithTimeout:
		return vm.opWithTimeout(frame, chunk, instr.Arg)
	case bytecode.OpSelect:
		return vm.opSelect(frame, chunk, instr.Arg)
	case bytecode.OpCreateActor:
		return vm.opCreateActor(frame, chunk, instr.Arg)
	case bytecode.OpActorSend:
		return vm.opActorSend(frame, chunk, instr.Arg)
	case bytecode.OpActorReceive:
		return vm.opActorReceive(frame, chunk, instr.Arg)
	case bytecode.OpBecome:
		return vm.opBecome(frame, chunk, instr.Arg)

	// String
	case bytecode.OpStrLen:
		return vm.opStrLen(frame, chunk, instr.Arg)
	case bytecode.OpStrUpper:
		return vm.opStrUpper(frame, chunk, instr.Arg)
	case bytecode.OpStrLower:
		return vm.opStrLower(frame, chunk, instr.Arg)

	default:
		return vmerrors.New(vmerrors.InvalidOpcode, "unrecognized opcode %s", instr.Opcode)
	}
}
