package llm

import "context"

// Middleware wraps a Client with additional behavior.
type Middleware func(next Client) Client

type clientFunc struct {
	complete func(context.Context, Request) (string, error)
	model    func() string
}

func (f clientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) Model() string {
	return f.model()
}

// WrapClient builds a Client from a completion function, delegating Model to next.
func WrapClient(next Client, complete func(context.Context, Request) (string, error)) Client {
	return clientFunc{complete: complete, model: next.Model}
}

// Chain composes middlewares around base. Earlier middlewares are outermost:
//
//	Chain(c, a, b) // a -> b -> c
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		client = middlewares[i](client)
	}
	return client
}
