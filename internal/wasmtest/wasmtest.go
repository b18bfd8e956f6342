// Package wasmtest assembles minimal WebAssembly binaries for tests.
//
// Fixtures are built section by section with explicit opcodes so a test
// failure points at exactly one construct. Only what the tests execute is
// supported: scalar function types, one memory, one funcref table and
// active data/element segments.
package wasmtest

// Section ids and constants used by the fixtures.
const (
	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secExport   = 7
	secElement  = 9
	secCode     = 10
	secData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02

	typeI32 = 0x7f
	typeI64 = 0x7e
	typeF32 = 0x7d
	typeF64 = 0x7c
)

// Writer accumulates wasm binary output with LEB128 helpers.
type Writer struct {
	buf []byte
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// Byte writes a single byte.
func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

// Raw writes a byte slice.
func (w *Writer) Raw(data []byte) { w.buf = append(w.buf, data...) }

// U32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) U32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if v == 0 {
			return
		}
	}
}

// S32 writes a signed LEB128 encoded int32.
func (w *Writer) S32(v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.buf = append(w.buf, b)
			return
		}
		w.buf = append(w.buf, b|0x80)
	}
}

// Name writes a length-prefixed UTF-8 name.
func (w *Writer) Name(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Header returns the wasm magic and version.
func Header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

// Section frames content as a section with the given id.
func Section(id byte, content []byte) []byte {
	var w Writer
	w.Byte(id)
	w.U32(uint32(len(content)))
	w.Raw(content)
	return w.Bytes()
}

// Vec concatenates items behind a count prefix.
func Vec(items ...[]byte) []byte {
	var w Writer
	w.U32(uint32(len(items)))
	for _, it := range items {
		w.Raw(it)
	}
	return w.Bytes()
}

// Concat joins chunks into one buffer.
func Concat(chunks ...[]byte) []byte {
	var w Writer
	for _, c := range chunks {
		w.Raw(c)
	}
	return w.Bytes()
}

// FuncType encodes a function type with the given value types.
func FuncType(params, results []byte) []byte {
	var w Writer
	w.Byte(0x60)
	w.U32(uint32(len(params)))
	w.Raw(params)
	w.U32(uint32(len(results)))
	w.Raw(results)
	return w.Bytes()
}

// Import encodes a function import referencing a type index.
func Import(module, name string, typeIdx uint32) []byte {
	var w Writer
	w.Name(module)
	w.Name(name)
	w.Byte(kindFunc)
	w.U32(typeIdx)
	return w.Bytes()
}

// Export encodes an export entry.
func Export(name string, kind byte, idx uint32) []byte {
	var w Writer
	w.Name(name)
	w.Byte(kind)
	w.U32(idx)
	return w.Bytes()
}

// Body encodes a code entry with no locals and the given instructions,
// appending the end opcode.
func Body(code ...byte) []byte {
	var inner Writer
	inner.U32(0) // no local declarations
	inner.Raw(code)
	inner.Byte(0x0b)

	var w Writer
	w.U32(uint32(len(inner.Bytes())))
	w.Raw(inner.Bytes())
	return w.Bytes()
}

// funcIndices encodes the function section content for the given type
// indices.
func funcIndices(typeIdxs ...uint32) []byte {
	var w Writer
	w.U32(uint32(len(typeIdxs)))
	for _, ti := range typeIdxs {
		w.U32(ti)
	}
	return w.Bytes()
}

// memory encodes a memory section with one memory of min pages, no max.
func memory(minPages uint32) []byte {
	var w Writer
	w.U32(1)
	w.Byte(0x00)
	w.U32(minPages)
	return w.Bytes()
}

// dataSegment encodes one active data segment at the given offset.
func dataSegment(offset int32, data []byte) []byte {
	var w Writer
	w.Byte(0x00) // active, memory 0
	w.Byte(0x41) // i32.const
	w.S32(offset)
	w.Byte(0x0b)
	w.U32(uint32(len(data)))
	w.Raw(data)
	return w.Bytes()
}

// NameSection encodes a custom "name" section carrying just the module
// name. Custom sections may appear after any other section, so appending
// this to a complete module yields a self-naming binary:
//
//	Concat(MathModule(), NameSection("calc"))
func NameSection(module string) []byte {
	var sub Writer
	sub.Name(module)

	var w Writer
	w.Name("name")
	w.Byte(0x00) // module name subsection
	w.U32(uint32(len(sub.Bytes())))
	w.Raw(sub.Bytes())
	return Section(secCustom, w.Bytes())
}

// MathModule exports scalar arithmetic entry points:
//
//	add(i32, i32) -> i32
//	div(i32, i32) -> i32   traps on divide by zero and INT32_MIN / -1
//	crash()                executes unreachable
func MathModule() []byte {
	tIIi := FuncType([]byte{typeI32, typeI32}, []byte{typeI32})
	tV := FuncType(nil, nil)
	return Concat(
		Header(),
		Section(secType, Vec(tIIi, tV)),
		Section(secFunction, funcIndices(0, 0, 1)),
		Section(secExport, Vec(
			Export("add", kindFunc, 0),
			Export("div", kindFunc, 1),
			Export("crash", kindFunc, 2),
		)),
		Section(secCode, Vec(
			Body(0x20, 0x00, 0x20, 0x01, 0x6a), // local.get 0; local.get 1; i32.add
			Body(0x20, 0x00, 0x20, 0x01, 0x6d), // local.get 0; local.get 1; i32.div_s
			Body(0x00),                         // unreachable
		)),
	)
}

// RecurseModule exports recurse(), which calls itself until the engine
// reports stack exhaustion.
func RecurseModule() []byte {
	tV := FuncType(nil, nil)
	return Concat(
		Header(),
		Section(secType, Vec(tV)),
		Section(secFunction, funcIndices(0)),
		Section(secExport, Vec(Export("recurse", kindFunc, 0))),
		Section(secCode, Vec(
			Body(0x10, 0x00), // call 0
		)),
	)
}

// MemModule defines one page of linear memory initialized with "hello" at
// offset 0 and exports:
//
//	memory
//	peek(i32) -> i32    i32.load at the given address
//	poke(i32, i32)      i32.store at the given address
//	oob() -> i32        i32.load at address -1, always out of bounds
func MemModule() []byte {
	tIi := FuncType([]byte{typeI32}, []byte{typeI32})
	tIIv := FuncType([]byte{typeI32, typeI32}, nil)
	tVi := FuncType(nil, []byte{typeI32})
	return Concat(
		Header(),
		Section(secType, Vec(tIi, tIIv, tVi)),
		Section(secFunction, funcIndices(0, 1, 2)),
		Section(secMemory, memory(1)),
		Section(secExport, Vec(
			Export("memory", kindMemory, 0),
			Export("peek", kindFunc, 0),
			Export("poke", kindFunc, 1),
			Export("oob", kindFunc, 2),
		)),
		Section(secCode, Vec(
			Body(0x20, 0x00, 0x28, 0x02, 0x00),             // local.get 0; i32.load align=4
			Body(0x20, 0x00, 0x20, 0x01, 0x36, 0x02, 0x00), // local.get 0; local.get 1; i32.store
			Body(0x41, 0x7f, 0x28, 0x02, 0x00),             // i32.const -1; i32.load
		)),
		Section(secData, Vec(dataSegment(0, []byte("hello")))),
	)
}

// HostCallModule imports (module, name) as (i32, i32) -> i32 and exports
// call_host(i32, i32) -> i32 forwarding to it.
func HostCallModule(module, name string) []byte {
	tIIi := FuncType([]byte{typeI32, typeI32}, []byte{typeI32})
	return Concat(
		Header(),
		Section(secType, Vec(tIIi)),
		Section(secImport, Vec(Import(module, name, 0))),
		Section(secFunction, funcIndices(0)),
		Section(secExport, Vec(Export("call_host", kindFunc, 1))),
		Section(secCode, Vec(
			Body(0x20, 0x00, 0x20, 0x01, 0x10, 0x00), // local.get 0; local.get 1; call 0
		)),
	)
}

// HostMemModule combines a host import with guest memory: it imports
// (module, name) as (i32) -> i32, defines one page of memory initialized
// with "hello" at offset 0, and exports:
//
//	memory
//	call_host(i32) -> i32   forwards its argument to the import
func HostMemModule(module, name string) []byte {
	tIi := FuncType([]byte{typeI32}, []byte{typeI32})
	return Concat(
		Header(),
		Section(secType, Vec(tIi)),
		Section(secImport, Vec(Import(module, name, 0))),
		Section(secFunction, funcIndices(0)),
		Section(secMemory, memory(1)),
		Section(secExport, Vec(
			Export("memory", kindMemory, 0),
			Export("call_host", kindFunc, 1),
		)),
		Section(secCode, Vec(
			Body(0x20, 0x00, 0x10, 0x00), // local.get 0; call 0
		)),
		Section(secData, Vec(dataSegment(0, []byte("hello")))),
	)
}

// ProcExitModule imports wasi_snapshot_preview1.proc_exit and exports
// start_exit(), which calls it with the given code. The code must fit a
// single LEB byte.
func ProcExitModule(code byte) []byte {
	tIv := FuncType([]byte{typeI32}, nil)
	tV := FuncType(nil, nil)
	return Concat(
		Header(),
		Section(secType, Vec(tIv, tV)),
		Section(secImport, Vec(Import("wasi_snapshot_preview1", "proc_exit", 0))),
		Section(secFunction, funcIndices(1)),
		Section(secExport, Vec(Export("start_exit", kindFunc, 1))),
		Section(secCode, Vec(
			Body(0x41, code, 0x10, 0x00), // i32.const code; call 0
		)),
	)
}

// TrapsModule covers the trap categories the arithmetic fixtures cannot:
//
//	conv(f64) -> i32        i32.trunc_f64_s, traps on NaN
//	indirect_bad_type()     call_indirect with a mismatched type
//	indirect_oob()          call_indirect past the end of the table
//
// The one-entry table holds an unexported () -> i32 function.
func TrapsModule() []byte {
	tVi := FuncType(nil, []byte{typeI32})
	tFi := FuncType([]byte{typeF64}, []byte{typeI32})
	tV := FuncType(nil, nil)

	var table Writer
	table.U32(1)
	table.Byte(0x70) // funcref
	table.Byte(0x00)
	table.U32(1)

	var elem Writer
	elem.U32(1)
	elem.Byte(0x00)                    // active, table 0
	elem.Raw([]byte{0x41, 0x00, 0x0b}) // i32.const 0
	elem.U32(1)
	elem.U32(0) // func 0

	return Concat(
		Header(),
		Section(secType, Vec(tVi, tFi, tV)),
		Section(secFunction, funcIndices(0, 1, 2, 2)),
		Section(secTable, table.Bytes()),
		Section(secExport, Vec(
			Export("conv", kindFunc, 1),
			Export("indirect_bad_type", kindFunc, 2),
			Export("indirect_oob", kindFunc, 3),
		)),
		Section(secElement, elem.Bytes()),
		Section(secCode, Vec(
			Body(0x41, 0x28),                   // i32.const 40
			Body(0x20, 0x00, 0xaa),             // local.get 0; i32.trunc_f64_s
			Body(0x41, 0x00, 0x11, 0x02, 0x00), // i32.const 0; call_indirect (type 2)
			Body(0x41, 0x05, 0x11, 0x02, 0x00), // i32.const 5; call_indirect (type 2)
		)),
	)
}
