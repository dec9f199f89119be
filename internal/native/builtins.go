package native

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/minijvm/minijvm/internal/types"
)

// registerBuiltins installs the engine's built-in native set: the five
// spec.md §6 names (tempPrint, fillInStackTrace, System.arraycopy,
// Class.forName, Class.newInstance) plus the handful of JDK 7
// bootstrap natives needed to get java.lang.Object, java.lang.String,
// java.lang.StringBuilder, java.lang.Throwable, and the primitive
// wrapper classes through class-initialization and <init> without
// aborting. Anything else a loaded class needs is out of scope and
// aborts with UnsatisfiedLinkError at the call site.
func registerBuiltins(t *Table) {
	registerTempPrint(t)
	registerObjectNatives(t)
	registerClassNatives(t)
	registerSystemNatives(t)
	registerThrowableNatives(t)
	registerBoxedNumericNatives(t)
	registerNoOpRegistrations(t)
}

func noop(Context, []types.Value) (types.Value, error) { return types.Value{}, nil }

// registerTempPrint wires the println-equivalent native the spec's
// scenarios use to collect observable output: one overload per
// computational kind a test program might print, since JVM natives are
// resolved by exact descriptor rather than by a boxed/varargs argument.
func registerTempPrint(t *Table) {
	owner := "Native"
	t.Register(owner, "tempPrint", "(I)V", func(ctx Context, args []types.Value) (types.Value, error) {
		ctx.Emit(strconv.Itoa(int(args[0].I32)))
		return types.Value{}, nil
	})
	t.Register(owner, "tempPrint", "(J)V", func(ctx Context, args []types.Value) (types.Value, error) {
		ctx.Emit(strconv.FormatInt(args[0].I64, 10))
		return types.Value{}, nil
	})
	t.Register(owner, "tempPrint", "(F)V", func(ctx Context, args []types.Value) (types.Value, error) {
		ctx.Emit(strconv.FormatFloat(float64(args[0].F32), 'g', -1, 32))
		return types.Value{}, nil
	})
	t.Register(owner, "tempPrint", "(D)V", func(ctx Context, args []types.Value) (types.Value, error) {
		ctx.Emit(strconv.FormatFloat(args[0].F64, 'g', -1, 64))
		return types.Value{}, nil
	})
	t.Register(owner, "tempPrint", "(Z)V", func(ctx Context, args []types.Value) (types.Value, error) {
		ctx.Emit(strconv.FormatBool(args[0].I32 != 0))
		return types.Value{}, nil
	})
	t.Register(owner, "tempPrint", "(Ljava/lang/String;)V", func(ctx Context, args []types.Value) (types.Value, error) {
		s, _ := ctx.StringValue(args[0].Ref)
		ctx.Emit(s)
		return types.Value{}, nil
	})
}

func registerObjectNatives(t *Table) {
	t.Register("java/lang/Object", "registerNatives", "()V", noop)
	t.Register("java/lang/Object", "hashCode", "()I", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.IntValue(ctx.HeapOps().IdentityHash(args[0].Ref)), nil
	})
	t.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(ctx Context, args []types.Value) (types.Value, error) {
		class, ok := ctx.HeapOps().Object(args[0].Ref)
		if !ok {
			return types.Value{}, fmt.Errorf("getClass: %d is not an object reference", args[0].Ref)
		}
		ref, err := ctx.NewClassObject(class)
		if err != nil {
			return types.Value{}, err
		}
		return types.RefValue(ref), nil
	})
}

func registerClassNatives(t *Table) {
	t.Register("java/lang/Class", "registerNatives", "()V", noop)
	t.Register("java/lang/Class", "forName", "(Ljava/lang/String;)Ljava/lang/Class;", func(ctx Context, args []types.Value) (types.Value, error) {
		name, ok := ctx.StringValue(args[0].Ref)
		if !ok {
			return types.Value{}, fmt.Errorf("Class.forName: argument is not a String")
		}
		class, err := ctx.LoadClass(strings.ReplaceAll(name, ".", "/"))
		if err != nil {
			return types.Value{}, err
		}
		ref, err := ctx.NewClassObject(class)
		if err != nil {
			return types.Value{}, err
		}
		return types.RefValue(ref), nil
	})
	t.Register("java/lang/Class", "newInstance", "()Ljava/lang/Object;", func(ctx Context, args []types.Value) (types.Value, error) {
		class, ok := ctx.ClassOfObject(args[0].Ref)
		if !ok {
			return types.Value{}, fmt.Errorf("Class.newInstance: receiver is not a Class object")
		}
		ref, err := ctx.NewInstance(class)
		if err != nil {
			return types.Value{}, err
		}
		return types.RefValue(ref), nil
	})
}

func registerSystemNatives(t *Table) {
	t.Register("java/lang/System", "registerNatives", "()V", noop)
	t.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", func(ctx Context, args []types.Value) (types.Value, error) {
		src, srcPos, dst, dstPos, length := args[0].Ref, args[1].I32, args[2].Ref, args[3].I32, args[4].I32
		if err := ctx.HeapOps().CopyElements(src, int(srcPos), dst, int(dstPos), int(length)); err != nil {
			return types.Value{}, err
		}
		return types.Value{}, nil
	})
	t.Register("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", func(ctx Context, args []types.Value) (types.Value, error) {
		if args[0].Ref == types.NullRef {
			return types.IntValue(0), nil
		}
		return types.IntValue(ctx.HeapOps().IdentityHash(args[0].Ref)), nil
	})
	t.Register("java/lang/System", "currentTimeMillis", "()J", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.LongValue(time.Now().UnixMilli()), nil
	})
	t.Register("java/lang/System", "nanoTime", "()J", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.LongValue(time.Now().UnixNano()), nil
	})
}

// registerThrowableNatives wires fillInStackTrace to the engine's
// side-table stack capture (see Engine.CaptureStackTrace): the trace is
// an internal field the object model reserves, not a real JDK field.
func registerThrowableNatives(t *Table) {
	t.Register("java/lang/Throwable", "fillInStackTrace", "()Ljava/lang/Throwable;", func(ctx Context, args []types.Value) (types.Value, error) {
		receiver := args[0].Ref
		ctx.CaptureStackTrace(receiver)
		return types.RefValue(receiver), nil
	})
}

func registerBoxedNumericNatives(t *Table) {
	t.Register("java/lang/Float", "floatToRawIntBits", "(F)I", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.IntValue(int32(math.Float32bits(args[0].F32))), nil
	})
	t.Register("java/lang/Float", "isNaN", "(F)Z", func(ctx Context, args []types.Value) (types.Value, error) {
		if math.IsNaN(float64(args[0].F32)) {
			return types.IntValue(1), nil
		}
		return types.IntValue(0), nil
	})
	t.Register("java/lang/Double", "doubleToRawLongBits", "(D)J", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.LongValue(int64(math.Float64bits(args[0].F64))), nil
	})
	t.Register("java/lang/Double", "longBitsToDouble", "(J)D", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.DoubleValue(math.Float64frombits(uint64(args[0].I64))), nil
	})
	t.Register("java/lang/Math", "sqrt", "(D)D", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.DoubleValue(math.Sqrt(args[0].F64)), nil
	})
	t.Register("java/lang/Math", "pow", "(DD)D", func(ctx Context, args []types.Value) (types.Value, error) {
		return types.DoubleValue(math.Pow(args[0].F64, args[1].F64)), nil
	})
}

// registerNoOpRegistrations covers registerNatives declared by JDK
// classes this engine's six scenarios can load transitively (a static
// initializer calling an unregistered native aborts class-init
// entirely, so these need a body even though it does nothing).
func registerNoOpRegistrations(t *Table) {
	t.Register("java/lang/Thread", "registerNatives", "()V", noop)
}
