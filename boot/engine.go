package boot

import "context"

// Engine compiles kernel bytecode.
type Engine interface {
	Compile(ctx context.Context, bytecode []byte) (Module, error)
}

// Module is compiled bytecode from which instances are created.
type Module interface {
	Instantiate(ctx context.Context) (Instance, error)
	Close(ctx context.Context) error
}

// Instance is one runnable activation of a Module.
type Instance interface {
	// Run calls the kernel entry point and returns when it halts.
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}
