package config

// Platform core type names.
const (
	ObjectClass    = "java.lang.Object"
	ThrowableClass = "java.lang.Throwable"
	ClassClass     = "java.lang.Class"
	StringClass    = "java.lang.String"
)

// Platform method signatures the synthesized code calls.
const (
	FinalizeSig           = "<java.lang.Object: void finalize()>"
	ObjectConstructorSig  = "<java.lang.Object: void <init>()>"
	ForNameSig            = "<java.lang.Class: java.lang.Class forName(java.lang.String)>"
	NewInstanceSig        = "<java.lang.Class: java.lang.Object newInstance()>"
	DefaultConstructorSub = "void <init>()"
)

// Default names of the synthesized root classes and their members.
const (
	DefaultAbstractLibraryClass = "surrogate.AbstractLibrary"
	DefaultLibraryClass         = "surrogate.Library"
	DefaultSurrogateSuffix      = "$Surrogate"

	LibraryPointsToField  = "libraryPointsTo"
	FinalizePointsToField = "finalizePointsTo"
	InstanceField         = "instance"
	DoItAllMethod         = "doItAll"
)

// OptionsFileNames are the file names FindOptions looks for.
var OptionsFileNames = []string{"surrogate.yaml", "surrogate.yml"}
