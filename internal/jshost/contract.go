package jshost

// Contract names every host-internal shape the adapter depends on. It is the
// single place to update when the compiled runtime's internals change.
type Contract struct {
	// PlatformObject is the global holding the runtime's initializer.
	PlatformObject string
	Initialize     string

	// TestContextGlobal is the global the test-context API is published
	// under, for bundles that reference it directly instead of requiring it.
	TestContextGlobal string
	// ModuleName is passed to the program constructor alongside the
	// container module.
	ModuleName string
	Embed      string

	CtorField   string
	FakeAppCtor string
	Tuple2Ctor  string
	ConsCtor    string
	NilCtor     string

	// effect trees
	KindField     string
	LeafKind      string
	NodeKind      string
	HomeField     string
	ValueField    string
	BranchesField string
	TaskHome      string
	PerformCtor   string

	// tasks
	SucceedCtor  string
	FailCtor     string
	AndThenCtor  string
	OnErrorCtor  string
	TaskValue    string
	TaskCallback string
	TaskInner    string
}

// Elm018 is the contract for Elm 0.18 compiled output.
var Elm018 = Contract{
	PlatformObject:    "_elm_lang$core$Native_Platform",
	Initialize:        "initialize",
	TestContextGlobal: "_user$project$Native_TestContext",
	ModuleName:        "<TestContext fake module>",
	Embed:             "embed",

	CtorField:   "ctor",
	FakeAppCtor: "FakeApp",
	Tuple2Ctor:  "_Tuple2",
	ConsCtor:    "::",
	NilCtor:     "[]",

	KindField:     "type",
	LeafKind:      "leaf",
	NodeKind:      "node",
	HomeField:     "home",
	ValueField:    "value",
	BranchesField: "branches",
	TaskHome:      "Task",
	PerformCtor:   "Perform",

	SucceedCtor:  "_Task_succeed",
	FailCtor:     "_Task_fail",
	AndThenCtor:  "_Task_andThen",
	OnErrorCtor:  "_Task_onError",
	TaskValue:    "value",
	TaskCallback: "callback",
	TaskInner:    "task",
}
