package store

// Command is the sum type of mutations/queries a Store can Execute. Each
// concrete command implements the marker method so a type switch in Execute
// (and in the codec) is exhaustive and compiler-checked against additions.
type Command interface {
	isCommand()
}

// DelCommand removes the given keys. A key absent from the store is skipped
// silently; the result reports only the keys actually removed.
type DelCommand struct {
	Keys []string
}

// ExistsCommand reports how many of the given keys are present. Duplicate
// keys in the argument are each counted independently if the key exists,
// so EXISTS k k against a present k returns 2.
type ExistsCommand struct {
	Keys []string
}

// GetCommand returns the value for a single key, if present.
type GetCommand struct {
	Key string
}

// KeysCommand returns every key matching pattern. "*" matches everything;
// any other "*" is translated to the regex wildcard ".*" and anchored with
// ^...$.
type KeysCommand struct {
	Pattern string
}

// SetCommand inserts or overwrites Key with Value.
type SetCommand struct {
	Key   string
	Value string
}

func (DelCommand) isCommand()    {}
func (ExistsCommand) isCommand() {}
func (GetCommand) isCommand()    {}
func (KeysCommand) isCommand()   {}
func (SetCommand) isCommand()    {}

// Result is the sum type returned by Execute.
type Result interface {
	isResult()
}

// DelResult reports the number of keys actually removed.
type DelResult struct {
	Count int
}

// ExistsResult reports how many supplied keys exist.
type ExistsResult struct {
	Count int
}

// GetResult carries the value for a GetCommand, or nil if absent.
type GetResult struct {
	Value *string
}

// KeysResult lists the keys matching a KeysCommand's pattern. Order is
// unspecified.
type KeysResult struct {
	Keys []string
}

// SetResult reports whether the SET succeeded (it always does).
type SetResult struct {
	OK bool
}

// UndefinedResult is produced when a command cannot be meaningfully resolved
// into one of the above — currently unused by Execute itself but kept as a
// wire shape so nodes can report a diagnostic instead of dropping a message.
type UndefinedResult struct {
	Message string
}

func (DelResult) isResult()       {}
func (ExistsResult) isResult()    {}
func (GetResult) isResult()       {}
func (KeysResult) isResult()      {}
func (SetResult) isResult()       {}
func (UndefinedResult) isResult() {}
