package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage indicates no runtime is registered for a language.
// It is a configuration error surfaced before any process is spawned.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Command is an argv to execute relative to the run's working directory.
type Command struct {
	Name string
	Args []string
}

// Argv returns the command as a single slice, name first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Runtime describes how to materialize and execute code for one language.
// Compiled languages report a compile command; interpreted ones do not.
// Commands use paths relative to the working directory so the same runtime
// drives both the process executor and the container executor.
type Runtime interface {
	Language() string
	FileName() string
	CommentPrefix() string
	Image() string
	Compile() (Command, bool)
	Run() Command
}

type interpreted struct {
	language string
	fileName string
	comment  string
	image    string
	run      Command
}

func (r interpreted) Language() string         { return r.language }
func (r interpreted) FileName() string         { return r.fileName }
func (r interpreted) CommentPrefix() string    { return r.comment }
func (r interpreted) Image() string            { return r.image }
func (r interpreted) Compile() (Command, bool) { return Command{}, false }
func (r interpreted) Run() Command             { return r.run }

type compiled struct {
	interpreted
	compile Command
}

func (r compiled) Compile() (Command, bool) { return r.compile, true }

// Registry maps language identifiers to runtime implementations. It is
// resolved once at startup and read-only afterwards, so it is safe for
// concurrent use.
type Registry struct {
	runtimes map[string]Runtime
}

// NewRegistry constructs a registry with every supported language.
func NewRegistry() *Registry {
	r := &Registry{runtimes: make(map[string]Runtime)}
	for _, rt := range []Runtime{Python(), JavaScript(), Cpp(), Java()} {
		r.runtimes[rt.Language()] = rt
	}
	return r
}

// Resolve returns the runtime for a language identifier, normalising case
// and surrounding whitespace.
func (r *Registry) Resolve(language string) (Runtime, error) {
	key := strings.ToLower(strings.TrimSpace(language))
	rt, ok := r.runtimes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return rt, nil
}

// Languages lists the registered language identifiers.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.runtimes))
	for k := range r.runtimes {
		out = append(out, k)
	}
	return out
}
