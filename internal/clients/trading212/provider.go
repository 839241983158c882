package trading212

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/providers"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrMissingToken is returned when an account has no API key.
var ErrMissingToken = errors.New("trading212 account has no API token")

// Provider adapts the Trading212 client to providers.Provider for one account
type Provider struct {
	client  *Client
	account domain.Account
	config  providers.SyncConfig
	now     func() time.Time
	log     zerolog.Logger
}

var _ providers.Provider = (*Provider)(nil)

// NewProvider creates a provider bound to account using an existing client
func NewProvider(client *Client, account domain.Account, log zerolog.Logger) *Provider {
	return &Provider{
		client:  client,
		account: account,
		config:  providers.DefaultSyncConfig(),
		now:     time.Now,
		log: log.With().
			Str("provider", string(domain.ProviderTrading212)).
			Int64("account_id", account.ID).
			Logger(),
	}
}

// NewConstructor returns a providers.Constructor that builds a fresh client
// per account from the account token.
func NewConstructor(log zerolog.Logger, opts ...ClientOption) providers.Constructor {
	return func(account domain.Account) (providers.Provider, error) {
		if account.Token == "" {
			return nil, ErrMissingToken
		}
		client := NewClient(account.Token, log, opts...)
		return NewProvider(client, account, log), nil
	}
}

// SyncConfig returns the dividends/positions cadence
func (p *Provider) SyncConfig() providers.SyncConfig {
	return p.config
}

// LoadInstruments keeps only the catalog entries for currently held tickers
func (p *Provider) LoadInstruments(ctx context.Context) (*domain.InstrumentIndex, error) {
	instruments, err := p.client.GetInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get instruments: %w", err)
	}
	positions, err := p.client.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open positions: %w", err)
	}

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		held[pos.Ticker] = true
	}

	kept := make([]domain.Instrument, 0, len(positions))
	for _, in := range instruments {
		if held[in.Ticker] {
			kept = append(kept, transformInstrument(in))
		}
	}

	p.log.Debug().
		Int("catalog", len(instruments)).
		Int("held", len(kept)).
		Msg("Instrument index built")

	return domain.NewInstrumentIndex(kept), nil
}

// Dividends returns the full paid-dividend history of every open position
func (p *Provider) Dividends(ctx context.Context, idx *domain.InstrumentIndex) ([]domain.DividendRecord, error) {
	positions, err := p.client.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open positions: %w", err)
	}

	var records []domain.DividendRecord
	for _, pos := range positions {
		paid, err := p.client.GetPaidOutDividends(ctx, pos.Ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to get dividends for %s: %w", pos.Ticker, err)
		}
		for _, d := range paid {
			records = append(records, transformDividend(p.account, pos, d, idx))
		}
	}

	return records, nil
}

// Snapshot fetches positions and cash concurrently and stamps them with the current time
func (p *Provider) Snapshot(ctx context.Context, idx *domain.InstrumentIndex) (*domain.AccountSnapshot, error) {
	var (
		positions []Position
		cash      *Cash
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		positions, err = p.client.GetOpenPositions(gctx)
		if err != nil {
			return fmt.Errorf("failed to get open positions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cash, err = p.client.GetCash(gctx)
		if err != nil {
			return fmt.Errorf("failed to get cash: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return transformSnapshot(p.account, positions, cash, idx, p.now()), nil
}
