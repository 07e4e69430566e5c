package filter

import (
	"maps"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mirthctl/mirthctl/mirth"
)

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newFilterCache(size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		helperFuncs: createHelperFunctions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exprCompiler implements CachingCompiler for expr-based filters
type exprCompiler struct {
	helperFuncs map[string]any
	cache       *filterCache
}

// CompileMessage compiles an expression into a message filter
func (c *exprCompiler) CompileMessage(expression string) (MessageFilter, error) {
	expression = strings.TrimSpace(expression)

	if cached, ok := c.lookup("message", expression); ok {
		return cached.(MessageFilter), nil
	}

	program, err := c.compile(expression)
	if err != nil {
		return nil, err
	}

	filter := &messageFilter{expression: expression, program: program}
	c.store("message", expression, filter)
	return filter, nil
}

// CompileEvent compiles an expression into an event filter
func (c *exprCompiler) CompileEvent(expression string) (EventFilter, error) {
	expression = strings.TrimSpace(expression)

	if cached, ok := c.lookup("event", expression); ok {
		return cached.(EventFilter), nil
	}

	program, err := c.compile(expression)
	if err != nil {
		return nil, err
	}

	filter := &eventFilter{expression: expression, program: program}
	c.store("event", expression, filter)
	return filter, nil
}

// compile validates and compiles an expression. Filter fields are injected
// at evaluation time, so compilation validates against the helper functions
// only.
func (c *exprCompiler) compile(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(c.helperFuncs),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	return program, nil
}

// Message and event filters share the cache under distinct key prefixes.
func (c *exprCompiler) lookup(kind, expression string) (compiledFilter, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.get(kind + "\x00" + expression)
}

func (c *exprCompiler) store(kind, expression string, filter compiledFilter) {
	if c.cache != nil {
		c.cache.put(kind+"\x00"+expression, filter)
	}
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.size()
	}
	return 0
}

// messageFilter implements MessageFilter using the expr language
type messageFilter struct {
	expression string
	program    *vm.Program
}

// Evaluate evaluates the filter against a message. Messages whose
// evaluation errors are treated as non-matching.
func (f *messageFilter) Evaluate(message mirth.Message) bool {
	result, err := expr.Run(f.program, messageEnvironment(message))
	if err != nil {
		return false
	}
	return result.(bool)
}

// Expression returns the original expression
func (f *messageFilter) Expression() string {
	return f.expression
}

// eventFilter implements EventFilter using the expr language
type eventFilter struct {
	expression string
	program    *vm.Program
}

// Evaluate evaluates the filter against an event. Events whose evaluation
// errors are treated as non-matching.
func (f *eventFilter) Evaluate(event mirth.Event) bool {
	result, err := expr.Run(f.program, eventEnvironment(event))
	if err != nil {
		return false
	}
	return result.(bool)
}

// Expression returns the original expression
func (f *eventFilter) Expression() string {
	return f.expression
}
