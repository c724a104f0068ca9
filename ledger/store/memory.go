// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cableworks/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore and ledger.InventoryStore.
type Memory struct {
	mu sync.RWMutex
	memoryState
}

type memoryState struct {
	parties      map[ledger.PartyID]ledger.Party
	byName       map[partyName]ledger.PartyID
	transactions map[ledger.PartyID][]ledger.Transaction
	invoices     map[ledger.InvoiceRef]ledger.Invoice
	products     map[string]ledger.Product
	seq          int64
}

type partyName struct {
	Kind ledger.PartyKind
	Name string
}

func NewMemory() *Memory {
	return &Memory{memoryState: memoryState{
		parties:      make(map[ledger.PartyID]ledger.Party),
		byName:       make(map[partyName]ledger.PartyID),
		transactions: make(map[ledger.PartyID][]ledger.Transaction),
		invoices:     make(map[ledger.InvoiceRef]ledger.Invoice),
		products:     make(map[string]ledger.Product),
	}}
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) GetParty(ctx context.Context, id ledger.PartyID) (*ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getParty(id)
}

func (m *Memory) GetPartyByName(ctx context.Context, kind ledger.PartyKind, name string) (*ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPartyByName(kind, name)
}

func (m *Memory) ListParties(ctx context.Context, kind ledger.PartyKind) ([]ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listParties(kind), nil
}

func (m *Memory) GetInvoice(ctx context.Context, ref ledger.InvoiceRef) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getInvoice(ref)
}

func (m *Memory) InvoiceTransaction(ctx context.Context, partyID ledger.PartyID, ref ledger.InvoiceRef) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoiceTransaction(partyID, ref)
}

func (m *Memory) ListTransactions(ctx context.Context, id ledger.PartyID, r ledger.DateRange) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactions(id, r), nil
}

func (m *Memory) ListInvoices(ctx context.Context, partyID ledger.PartyID) ([]ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInvoices(partyID), nil
}

func (m *Memory) GetProduct(ctx context.Context, id string) (*ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProduct(id)
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) CreateParty(ctx context.Context, p ledger.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createParty(p)
}

func (m *Memory) SetBalance(ctx context.Context, id ledger.PartyID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setBalance(id, balance)
}

// AppendTransaction adds a log row. Append-only.
func (m *Memory) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransaction(tx)
}

func (m *Memory) SaveInvoice(ctx context.Context, inv ledger.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInvoice(inv)
}

func (m *Memory) SaveProduct(ctx context.Context, p ledger.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustStock(productID, delta)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{state: &m.memoryState}
	if err := fn(view); err != nil {
		m.memoryState = snapshot
		return err
	}
	return nil
}

func (s *memoryState) snapshot() memoryState {
	cp := memoryState{
		parties:      make(map[ledger.PartyID]ledger.Party, len(s.parties)),
		byName:       make(map[partyName]ledger.PartyID, len(s.byName)),
		transactions: make(map[ledger.PartyID][]ledger.Transaction, len(s.transactions)),
		invoices:     make(map[ledger.InvoiceRef]ledger.Invoice, len(s.invoices)),
		products:     make(map[string]ledger.Product, len(s.products)),
		seq:          s.seq,
	}
	for k, v := range s.parties {
		cp.parties[k] = v
	}
	for k, v := range s.byName {
		cp.byName[k] = v
	}
	for k, v := range s.transactions {
		cp.transactions[k] = append([]ledger.Transaction(nil), v...)
	}
	for k, v := range s.invoices {
		cp.invoices[k] = v
	}
	for k, v := range s.products {
		cp.products[k] = v
	}
	return cp
}

// txView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it works on the state directly.
type txView struct {
	state *memoryState
}

func (v *txView) GetParty(_ context.Context, id ledger.PartyID) (*ledger.Party, error) {
	return v.state.getParty(id)
}

func (v *txView) GetPartyByName(_ context.Context, kind ledger.PartyKind, name string) (*ledger.Party, error) {
	return v.state.getPartyByName(kind, name)
}

func (v *txView) ListParties(_ context.Context, kind ledger.PartyKind) ([]ledger.Party, error) {
	return v.state.listParties(kind), nil
}

func (v *txView) GetInvoice(_ context.Context, ref ledger.InvoiceRef) (*ledger.Invoice, error) {
	return v.state.getInvoice(ref)
}

func (v *txView) InvoiceTransaction(_ context.Context, partyID ledger.PartyID, ref ledger.InvoiceRef) (*ledger.Transaction, error) {
	return v.state.invoiceTransaction(partyID, ref)
}

func (v *txView) CreateParty(_ context.Context, p ledger.Party) error {
	return v.state.createParty(p)
}

func (v *txView) SetBalance(_ context.Context, id ledger.PartyID, balance decimal.Decimal) error {
	return v.state.setBalance(id, balance)
}

func (v *txView) AppendTransaction(_ context.Context, tx *ledger.Transaction) error {
	return v.state.appendTransaction(tx)
}

func (v *txView) ListTransactions(_ context.Context, id ledger.PartyID, r ledger.DateRange) ([]ledger.Transaction, error) {
	return v.state.listTransactions(id, r), nil
}

func (v *txView) SaveInvoice(_ context.Context, inv ledger.Invoice) error {
	return v.state.saveInvoice(inv)
}

func (v *txView) ListInvoices(_ context.Context, partyID ledger.PartyID) ([]ledger.Invoice, error) {
	return v.state.listInvoices(partyID), nil
}

func (v *txView) GetProduct(_ context.Context, id string) (*ledger.Product, error) {
	return v.state.getProduct(id)
}

func (v *txView) SaveProduct(_ context.Context, p ledger.Product) error {
	v.state.products[p.ID] = p
	return nil
}

func (v *txView) AdjustStock(_ context.Context, productID string, delta decimal.Decimal) (decimal.Decimal, error) {
	return v.state.adjustStock(productID, delta)
}

// =============================================================================
// STATE (callers hold the lock)
// =============================================================================

func (s *memoryState) getParty(id ledger.PartyID) (*ledger.Party, error) {
	p, ok := s.parties[id]
	if !ok {
		return nil, ledger.ErrPartyNotFound
	}
	return &p, nil
}

func (s *memoryState) getPartyByName(kind ledger.PartyKind, name string) (*ledger.Party, error) {
	id, ok := s.byName[partyName{Kind: kind, Name: name}]
	if !ok {
		return nil, ledger.ErrPartyNotFound
	}
	return s.getParty(id)
}

func (s *memoryState) listParties(kind ledger.PartyKind) []ledger.Party {
	var out []ledger.Party
	for _, p := range s.parties {
		if kind == "" || p.Kind == kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func (s *memoryState) createParty(p ledger.Party) error {
	k := partyName{Kind: p.Kind, Name: p.Name}
	if _, taken := s.byName[k]; taken {
		return ledger.ErrDuplicateParty
	}
	if _, taken := s.parties[p.ID]; taken {
		return ledger.ErrDuplicateParty
	}
	s.parties[p.ID] = p
	s.byName[k] = p.ID
	return nil
}

func (s *memoryState) setBalance(id ledger.PartyID, balance decimal.Decimal) error {
	p, ok := s.parties[id]
	if !ok {
		return ledger.ErrPartyNotFound
	}
	p.Balance = balance
	s.parties[id] = p
	return nil
}

func (s *memoryState) appendTransaction(tx *ledger.Transaction) error {
	if _, ok := s.parties[tx.PartyID]; !ok {
		return ledger.ErrPartyNotFound
	}
	s.seq++
	tx.Seq = s.seq
	s.transactions[tx.PartyID] = append(s.transactions[tx.PartyID], *tx)
	return nil
}

func (s *memoryState) listTransactions(id ledger.PartyID, r ledger.DateRange) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tx := range s.transactions[id] {
		if r.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

func (s *memoryState) invoiceTransaction(partyID ledger.PartyID, ref ledger.InvoiceRef) (*ledger.Transaction, error) {
	for _, tx := range s.transactions[partyID] {
		if tx.References(ref) {
			return &tx, nil
		}
	}
	return nil, ledger.ErrTransactionNotFound
}

func (s *memoryState) getInvoice(ref ledger.InvoiceRef) (*ledger.Invoice, error) {
	inv, ok := s.invoices[ref]
	if !ok {
		return nil, ledger.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (s *memoryState) saveInvoice(inv ledger.Invoice) error {
	if _, taken := s.invoices[inv.Ref]; taken {
		return ledger.ErrDuplicateInvoice
	}
	inv.Items = append([]ledger.InvoiceItem(nil), inv.Items...)
	s.invoices[inv.Ref] = inv
	return nil
}

func (s *memoryState) listInvoices(partyID ledger.PartyID) []ledger.Invoice {
	var out []ledger.Invoice
	for _, inv := range s.invoices {
		if inv.PartyID == partyID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Ref.Number < out[j].Ref.Number
	})
	return out
}

func (s *memoryState) getProduct(id string) (*ledger.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, ledger.ErrProductNotFound
	}
	return &p, nil
}

func (s *memoryState) adjustStock(productID string, delta decimal.Decimal) (decimal.Decimal, error) {
	p, ok := s.products[productID]
	if !ok {
		return decimal.Zero, ledger.ErrProductNotFound
	}
	next := p.Quantity.Add(delta)
	if next.IsNegative() {
		return p.Quantity, &ledger.InsufficientStockError{
			ProductID: productID,
			Available: p.Quantity,
			Requested: delta.Neg(),
		}
	}
	p.Quantity = next
	s.products[productID] = p
	return next, nil
}
