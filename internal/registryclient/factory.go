package registryclient

import (
	"context"

	"golang.org/x/oauth2"
)

// HTTPFactory implements Factory by constructing HTTPClients, optionally
// attaching a token credential supplied by the embedder.
type HTTPFactory struct {
	Insecure bool
	// TokenSource, if non-nil, is attached to every client this factory
	// creates. A nil TokenSource means the client falls back to the
	// local Docker credential store.
	TokenSource oauth2.TokenSource
}

var _ Factory = (*HTTPFactory)(nil)

func (f *HTTPFactory) NewBlobClient(ctx context.Context, registryHost, repository string) (BlobClient, error) {
	client := NewHTTPClient(registryHost, repository, f.Insecure)
	if f.TokenSource != nil {
		client.SetTokenSource(f.TokenSource)
	} else {
		// A missing or empty Docker credential store is not fatal: many
		// registries allow anonymous pulls, so we fall back to
		// unauthenticated requests rather than failing client
		// construction.
		_ = client.LoadDockerCredentials(ctx, registryHost)
	}
	return client, nil
}

// MemoryFactory implements Factory by keeping one MemoryClient per
// (registryHost, repository) pair and returning it each time that pair
// is asked for, so tests can
// seed one fake repository and have both push and pull code paths reach
// it.
type MemoryFactory struct {
	clients map[string]*MemoryClient
}

// NewMemoryFactory returns an empty MemoryFactory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{clients: map[string]*MemoryClient{}}
}

var _ Factory = (*MemoryFactory)(nil)

func (f *MemoryFactory) NewBlobClient(_ context.Context, registryHost, repository string) (BlobClient, error) {
	key := registryHost + "/" + repository
	c, ok := f.clients[key]
	if !ok {
		c = NewMemoryClient()
		f.clients[key] = c
	}
	return c, nil
}

// Store returns the backing MemoryClient for a (registryHost,
// repository) pair, creating it if necessary, so tests can seed a
// manifest before exercising the dispatcher.
func (f *MemoryFactory) Store(registryHost, repository string) *MemoryClient {
	c, err := f.NewBlobClient(context.Background(), registryHost, repository)
	if err != nil {
		panic(err) // MemoryFactory.NewBlobClient never errors
	}
	return c.(*MemoryClient)
}
