package filter

import (
	"github.com/mirthctl/mirthctl/mirth"
)

// MessageFilter is a compiled predicate over channel messages
type MessageFilter interface {
	// Evaluate checks if a message matches the filter criteria
	Evaluate(message mirth.Message) bool

	// Expression returns the original filter expression
	Expression() string
}

// EventFilter is a compiled predicate over server events
type EventFilter interface {
	// Evaluate checks if an event matches the filter criteria
	Evaluate(event mirth.Event) bool

	// Expression returns the original filter expression
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	// CompileMessage parses and compiles a message filter expression
	CompileMessage(expression string) (MessageFilter, error)

	// CompileEvent parses and compiles an event filter expression
	CompileEvent(expression string) (EventFilter, error)
}

// CachingCompiler provides caching for compiled filters
type CachingCompiler interface {
	Compiler

	// Clear removes all cached filters
	Clear()

	// Size returns the number of cached filters
	Size() int
}
