package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/pacsforge/dicomnet/dicom/uid"
	"github.com/pacsforge/dicomnet/dimse/dul"
	"github.com/pacsforge/dicomnet/dimse/pdu"
	"github.com/pacsforge/dicomnet/dimse/scu"
	"github.com/pacsforge/dicomnet/reliability"
)

// StoreSender delivers queue items over pooled associations guarded by
// per-endpoint circuit breakers and the retry executor. It is the default
// Sender wiring: dequeue → pool acquire → association → C-STORE.
type StoreSender struct {
	Breakers *reliability.BreakerRegistry
	Retry    reliability.RetryPolicy
	Pool     reliability.PoolConfig
	Timeouts dul.Timeouts
	// MaxPDULength is proposed on new associations; zero uses the default.
	MaxPDULength uint32

	mu    sync.Mutex
	pools map[string]*reliability.Pool
}

// NewStoreSender builds a sender with the given reliability settings.
func NewStoreSender(breakers *reliability.BreakerRegistry, retry reliability.RetryPolicy, pool reliability.PoolConfig) *StoreSender {
	return &StoreSender{
		Breakers: breakers,
		Retry:    retry,
		Pool:     pool,
		Timeouts: dul.DefaultTimeouts(),
		pools:    make(map[string]*reliability.Pool),
	}
}

// pooledClient adapts an SCU client to the pool's connection interface.
type pooledClient struct {
	client *scu.Client
}

func (p *pooledClient) Validate(ctx context.Context) error {
	return p.client.Echo(ctx)
}

func (p *pooledClient) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

// Send delivers one item, retrying per policy through the endpoint's
// circuit breaker.
func (s *StoreSender) Send(ctx context.Context, item *Item, data []byte) error {
	pool := s.poolFor(item)
	breaker := s.Breakers.For(item.Host, item.Port)

	return reliability.ExecuteBreaker(ctx, s.Retry, breaker, func(ctx context.Context) error {
		lease, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		client := lease.Conn.(*pooledClient).client

		err = client.StoreRaw(ctx, data, item.SOPClassUID, item.SOPInstanceUID)
		healthy := err == nil || reliability.Classify(err) == reliability.CategoryPermanent
		pool.Release(ctx, lease, healthy)
		return err
	})
}

// Close shuts down every endpoint pool.
func (s *StoreSender) Close(ctx context.Context) {
	s.mu.Lock()
	pools := s.pools
	s.pools = make(map[string]*reliability.Pool)
	s.mu.Unlock()
	for _, pool := range pools {
		pool.Close(ctx)
	}
}

// poolFor returns the endpoint pool keyed by host, port, and AE pair.
func (s *StoreSender) poolFor(item *Item) *reliability.Pool {
	key := fmt.Sprintf("%s:%d/%s→%s", item.Host, item.Port, item.CallingAE, item.CalledAE)
	s.mu.Lock()
	defer s.mu.Unlock()
	if pool, ok := s.pools[key]; ok {
		return pool
	}

	cfg := scu.Config{
		CallingAETitle: item.CallingAE,
		CalledAETitle:  item.CalledAE,
		Host:           item.Host,
		Port:           item.Port,
		MaxPDULength:   s.MaxPDULength,
		Timeouts:       s.Timeouts,
		PresentationContexts: []pdu.PresentationContextRQ{{
			ID:               1,
			AbstractSyntax:   item.SOPClassUID,
			TransferSyntaxes: transferSyntaxesFor(item),
		}, {
			ID:               3,
			AbstractSyntax:   uid.Verification,
			TransferSyntaxes: uid.StandardTransferSyntaxes,
		}},
	}

	pool := reliability.NewPool(item.Host, item.Port, s.Pool, func(ctx context.Context) (reliability.PooledConn, error) {
		client := scu.NewClient(cfg)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return &pooledClient{client: client}, nil
	})
	s.pools[key] = pool
	return pool
}

// transferSyntaxesFor proposes only the item's own transfer syntax (the
// standard uncompressed set when it has none) so the stored bytes can be
// sent without transcoding.
func transferSyntaxesFor(item *Item) []string {
	if item.TransferSyntaxUID == "" {
		return uid.StandardTransferSyntaxes
	}
	return []string{item.TransferSyntaxUID}
}
