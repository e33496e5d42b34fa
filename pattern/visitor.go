package pattern

// Visitor is called with the concrete variant of a pattern through
// Pattern.Accept.
type Visitor interface {
	VisitUnsigned(*Unsigned)
	VisitSigned(*Signed)
	VisitFloat(*Float)
	VisitBoolean(*Boolean)
	VisitCharacter(*Character)
	VisitWideCharacter(*WideCharacter)
	VisitString(*String)
	VisitWideString(*WideString)
	VisitEnum(*Enum)
	VisitBitfield(*Bitfield)
	VisitBitfieldField(*BitfieldField)
	VisitStaticArray(*StaticArray)
	VisitDynamicArray(*DynamicArray)
	VisitStruct(*Struct)
	VisitUnion(*Union)
	VisitPointer(*Pointer)
	VisitPadding(*Padding)
	VisitError(*Error)
}

// BaseVisitor implements Visitor with no-op methods. Embed it to handle only
// some variants.
type BaseVisitor struct{}

func (BaseVisitor) VisitUnsigned(*Unsigned)           {}
func (BaseVisitor) VisitSigned(*Signed)               {}
func (BaseVisitor) VisitFloat(*Float)                 {}
func (BaseVisitor) VisitBoolean(*Boolean)             {}
func (BaseVisitor) VisitCharacter(*Character)         {}
func (BaseVisitor) VisitWideCharacter(*WideCharacter) {}
func (BaseVisitor) VisitString(*String)               {}
func (BaseVisitor) VisitWideString(*WideString)       {}
func (BaseVisitor) VisitEnum(*Enum)                   {}
func (BaseVisitor) VisitBitfield(*Bitfield)           {}
func (BaseVisitor) VisitBitfieldField(*BitfieldField) {}
func (BaseVisitor) VisitStaticArray(*StaticArray)     {}
func (BaseVisitor) VisitDynamicArray(*DynamicArray)   {}
func (BaseVisitor) VisitStruct(*Struct)               {}
func (BaseVisitor) VisitUnion(*Union)                 {}
func (BaseVisitor) VisitPointer(*Pointer)             {}
func (BaseVisitor) VisitPadding(*Padding)             {}
func (BaseVisitor) VisitError(*Error)                 {}
