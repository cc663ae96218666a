// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"sync"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Endpoint связывает адрес узла с готовым клиентом
type Endpoint[C any] struct {
	URL    string
	Client C
}

// Pool представляет упорядоченный пул взаимозаменяемых узлов с курсором.
// Курсор всегда в [0, len) и меняется только под мьютексом.
type Pool[C any] struct {
	name      string
	endpoints []*Endpoint[C]
	logger    *zap.Logger

	mu   sync.Mutex
	curr int
}

// NodePool - пул Solana JSON-RPC узлов
type NodePool = Pool[*solanarpc.Client]

// NewPool создает пул, вызывая dial для каждого адреса
func NewPool[C any](name string, urls []string, dial func(url string) C, logger *zap.Logger) (*Pool[C], error) {
	if len(urls) == 0 {
		return nil, ErrEmptyPool
	}

	endpoints := make([]*Endpoint[C], 0, len(urls))
	for _, url := range urls {
		endpoints = append(endpoints, &Endpoint[C]{URL: url, Client: dial(url)})
	}

	return &Pool[C]{
		name:      name,
		endpoints: endpoints,
		logger:    logger.Named("pool").With(zap.String("pool", name)),
	}, nil
}

// NewNodePool создает пул RPC клиентов solana-go
func NewNodePool(urls []string, logger *zap.Logger) (*NodePool, error) {
	return NewPool("solana-rpc", urls, func(url string) *solanarpc.Client {
		return solanarpc.New(url)
	}, logger)
}

// Name возвращает имя пула (используется в метриках)
func (p *Pool[C]) Name() string {
	return p.name
}

// Len возвращает количество узлов
func (p *Pool[C]) Len() int {
	return len(p.endpoints)
}

// Current возвращает узел под курсором
func (p *Pool[C]) Current() *Endpoint[C] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.curr]
}

// Index возвращает позицию курсора
func (p *Pool[C]) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curr
}

// Advance сдвигает курсор на следующий узел по кругу и возвращает его
func (p *Pool[C]) Advance() *Endpoint[C] {
	p.mu.Lock()
	defer p.mu.Unlock()

	from := p.endpoints[p.curr].URL
	p.curr = (p.curr + 1) % len(p.endpoints)
	next := p.endpoints[p.curr]

	p.logger.Debug("Switching endpoint",
		zap.String("from", from),
		zap.String("to", next.URL),
		zap.Int("index", p.curr))

	return next
}
