// Package commands is the single registry of the HyperFixi command
// vocabulary and its per-command metadata. The parser, the analyzer and the
// AOT compiler all consult this table so that command classification cannot
// drift between passes.
package commands

import "sort"

// Name identifies a command in the closed vocabulary.
type Name string

const (
	Toggle     Name = "toggle"
	Add        Name = "add"
	Remove     Name = "remove"
	Put        Name = "put"
	Append     Name = "append"
	Set        Name = "set"
	Get        Name = "get"
	Call       Name = "call"
	Log        Name = "log"
	Send       Name = "send"
	Trigger    Name = "trigger"
	Wait       Name = "wait"
	Settle     Name = "settle"
	Show       Name = "show"
	Hide       Name = "hide"
	Take       Name = "take"
	Increment  Name = "increment"
	Decrement  Name = "decrement"
	Focus      Name = "focus"
	Blur       Name = "blur"
	Go         Name = "go"
	Return     Name = "return"
	Transition Name = "transition"
	Swap       Name = "swap"
	Morph      Name = "morph"
	Tell       Name = "tell"
	JS         Name = "js"
	Halt       Name = "halt"
	Exit       Name = "exit"
	Throw      Name = "throw"
	Fetch      Name = "fetch"
)

// Meta describes how the other passes treat one command.
type Meta struct {
	// Helpers are the runtime helper functions the command requires when it
	// is executed or compiled. Pure-DOM commands need none.
	Helpers []string

	// Async marks commands that suspend handler execution.
	Async bool

	// Throws marks commands that abort handler execution.
	Throws bool

	// Compilable marks membership in the AOT compiler's known-safe subset.
	// The lowering functions themselves live in runtime/compiler, keyed by
	// the same Name, so the two can never disagree on membership.
	Compilable bool
}

var registry = map[Name]Meta{
	Toggle:     {Compilable: true},
	Add:        {Compilable: true},
	Remove:     {Compilable: true},
	Put:        {Helpers: []string{"putContent"}, Compilable: true},
	Append:     {Helpers: []string{"putContent"}},
	Set:        {Helpers: []string{"setProp"}, Compilable: true},
	Get:        {Helpers: []string{"getProp"}},
	Call:       {Helpers: []string{"call"}},
	Log:        {Compilable: true},
	Send:       {Helpers: []string{"send"}, Compilable: true},
	Trigger:    {Helpers: []string{"send"}, Compilable: true},
	Wait:       {Helpers: []string{"wait"}, Async: true, Compilable: true},
	Settle:     {Helpers: []string{"settle"}, Async: true},
	Show:       {Compilable: true},
	Hide:       {Compilable: true},
	Take:       {Helpers: []string{"takeClass"}},
	Increment:  {Helpers: []string{"setProp"}, Compilable: true},
	Decrement:  {Helpers: []string{"setProp"}, Compilable: true},
	Focus:      {Compilable: true},
	Blur:       {Compilable: true},
	Go:         {Helpers: []string{"navigate"}},
	Return:     {},
	Transition: {Helpers: []string{"transition"}, Async: true},
	Swap:       {Helpers: []string{"swapContent"}},
	Morph:      {Helpers: []string{"swapContent"}},
	Tell:       {Helpers: []string{"tell"}},
	JS:         {Helpers: []string{"evalJS"}},
	Halt:       {Throws: true},
	Exit:       {Throws: true},
	Throw:      {Throws: true},
	Fetch:      {Helpers: []string{"fetchJSON", "fetchText"}, Async: true},
}

// Lookup returns the metadata for name. The second result reports whether
// name is part of the vocabulary at all.
func Lookup(name Name) (Meta, bool) {
	m, ok := registry[name]
	return m, ok
}

// IsCommand reports whether word is a command verb.
func IsCommand(word string) bool {
	_, ok := registry[Name(word)]
	return ok
}

// All returns every command name in stable sorted order.
func All() []Name {
	names := make([]Name, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Helpers returns the runtime helpers required by name, nil for unknown or
// helper-free commands.
func Helpers(name Name) []string {
	return registry[name].Helpers
}

// IsAsync reports whether name suspends handler execution.
func IsAsync(name Name) bool {
	return registry[name].Async
}

// Throws reports whether name aborts handler execution.
func Throws(name Name) bool {
	return registry[name].Throws
}

// Compilable reports whether name is in the AOT compiler's supported subset.
func Compilable(name Name) bool {
	return registry[name].Compilable
}
