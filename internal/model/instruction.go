package model

// OpKind is the operation performed by an abstract instruction.
type OpKind string

const (
	// OpLoadLocal reads a local binding.
	OpLoadLocal OpKind = "load_local"
	// OpLoadField reads (or borrows) a struct field.
	OpLoadField OpKind = "load_field"
	// OpCall invokes another function.
	OpCall OpKind = "call"
	// OpBranch evaluates alternative arms and merges them.
	OpBranch OpKind = "branch"
	// OpReturn hands a value back to the caller.
	OpReturn OpKind = "return"
)

// Borrow describes how a field is accessed.
type Borrow string

const (
	// BorrowNone copies the field value.
	BorrowNone Borrow = ""
	// BorrowImmutable takes `&s.f`.
	BorrowImmutable Borrow = "imm"
	// BorrowMutable takes `&mut s.f`.
	BorrowMutable Borrow = "mut"
)

// Instruction is one step of an abstracted function body. Which fields are
// meaningful depends on Op:
//
//	load_local: Local, Dest
//	load_field: Local (base), Struct, Field, Borrow, Dest
//	call:       Callee, Args, Dest
//	branch:     Arms, Dest
//	return:     Local (empty means the last produced value)
type Instruction struct {
	Op       OpKind
	Dest     string
	Local    string
	Struct   StructRef
	Field    string
	Borrow   Borrow
	Callee   FunctionID
	Args     []string
	Arms     [][]Instruction
	Location Location
}
