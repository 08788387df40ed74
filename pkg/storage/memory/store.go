// Package memory is a single-process implementation of the storage interfaces.
// It backs local mode and service tests; every method holds one mutex so that
// each conditional mutation is atomic in the same way the DynamoDB conditions are.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// Store implements storage.Storage and storage.ChallengeStore in memory.
type Store struct {
	mu           sync.Mutex
	vendors      map[string]models.Vendor
	customers    map[string]models.Customer
	relations    map[models.RelationKey]*models.Relation
	transactions map[string]*models.Transaction
	tokens       map[string]*models.QRToken
	challenges   map[string]*models.Challenge
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		vendors:      make(map[string]models.Vendor),
		customers:    make(map[string]models.Customer),
		relations:    make(map[models.RelationKey]*models.Relation),
		transactions: make(map[string]*models.Transaction),
		tokens:       make(map[string]*models.QRToken),
		challenges:   make(map[string]*models.Challenge),
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage        = (*Store)(nil)
	_ storage.ChallengeStore = (*Store)(nil)
)

// PutVendor stores or replaces a vendor.
func (s *Store) PutVendor(_ context.Context, vendor *models.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[vendor.VendorID] = *vendor
	return nil
}

// GetVendor retrieves a vendor.
func (s *Store) GetVendor(_ context.Context, vendorID string) (*models.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[vendorID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

// EnsureCustomer inserts the customer unless its phone is already known.
func (s *Store) EnsureCustomer(_ context.Context, customer *models.Customer) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.customers[customer.Phone]; ok {
		return &existing, nil
	}
	s.customers[customer.Phone] = *customer
	c := *customer
	return &c, nil
}

// GetCustomerByPhone retrieves a customer by phone.
func (s *Store) GetCustomerByPhone(_ context.Context, phone string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[phone]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// GetRelation retrieves a relation by key.
func (s *Store) GetRelation(_ context.Context, key models.RelationKey) (*models.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRelation(rel), nil
}

// FindRelationByPhone retrieves the relation a phone holds with a vendor.
func (s *Store) FindRelationByPhone(_ context.Context, phone, vendorID string) (*models.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range s.relations {
		if rel.CustomerPhone == phone && rel.VendorID == vendorID {
			return copyRelation(rel), nil
		}
	}
	return nil, storage.ErrNotFound
}

// CountActiveRelationsByPhone counts active relations for a phone.
func (s *Store) CountActiveRelationsByPhone(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rel := range s.relations {
		if rel.CustomerPhone == phone && rel.Status == models.ACTIVE {
			n++
		}
	}
	return n, nil
}

// CreateRelation inserts a relation if its key is free.
func (s *Store) CreateRelation(_ context.Context, rel *models.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relations[rel.Key()]; ok {
		return storage.ErrAlreadyExists
	}
	s.relations[rel.Key()] = copyRelation(rel)
	return nil
}

// ApplyDraw debits the relation, records the transaction and consumes the token under one lock.
func (s *Store) ApplyDraw(_ context.Context, in storage.DrawInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relations[in.Key]
	if !ok || rel.Status != models.ACTIVE || rel.AvailableCredit < in.Amount {
		return storage.ErrBalanceCheckFailed
	}
	var tok *models.QRToken
	if in.Token != "" {
		tok, ok = s.tokens[in.Token]
		if !ok || tok.Used || tok.VendorID != in.Key.VendorID || tok.Expired(in.Now) {
			return storage.ErrTokenCheckFailed
		}
	}
	if _, exists := s.transactions[in.Transaction.TransactionID]; exists {
		return storage.ErrAlreadyExists
	}

	rel.AvailableCredit -= in.Amount
	rel.UsedCredit += in.Amount
	rel.TransactionCount++
	rel.TotalSpent += in.Amount
	rel.Version++
	now := in.Now
	rel.LastTransactionAt = &now
	rel.UpdatedAt = now

	if tok != nil {
		tok.Used = true
		tok.UsedBy = in.Key.CustomerID
		tok.UsedAt = &now
	}

	tx := *in.Transaction
	s.transactions[tx.TransactionID] = &tx
	return nil
}

// ApplyRepayment restores credit and settles the transaction under one lock.
func (s *Store) ApplyRepayment(_ context.Context, in storage.RepaymentInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relations[in.Key]
	if !ok || rel.Version != in.ExpectedVersion || rel.UsedCredit < in.Restore {
		return storage.ErrVersionConflict
	}
	tx, ok := s.transactions[in.TransactionID]
	if !ok || (tx.PaymentStatus != models.PENDING && tx.PaymentStatus != models.OVERDUE) {
		return storage.ErrTransactionSettled
	}

	now := in.Now
	rel.UsedCredit -= in.Restore
	rel.AvailableCredit += in.Restore
	rel.TotalRepaid += in.Amount
	if in.OnTime {
		rel.OnTimePayments++
	} else {
		rel.LatePayments++
	}
	rel.Version++
	rel.LastPaymentAt = &now
	rel.UpdatedAt = now

	tx.PaymentStatus = models.PAID
	tx.PaidDate = &now
	tx.PaymentMethod = in.PaymentMethod
	tx.RepaidAmount = in.Amount
	tx.UpdatedAt = now
	return nil
}

// IncrementDefaults adds one to the default count.
func (s *Store) IncrementDefaults(_ context.Context, key models.RelationKey, now time.Time) (*models.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rel.DefaultCount++
	rel.Version++
	rel.UpdatedAt = now
	return copyRelation(rel), nil
}

// UpdateStatus moves a relation between statuses.
func (s *Store) UpdateStatus(_ context.Context, key models.RelationKey, from, to models.RelationStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[key]
	if !ok || rel.Status != from {
		return storage.ErrConditionFailed
	}
	rel.Status = to
	rel.Version++
	rel.UpdatedAt = now
	return nil
}

// UpdateProfile changes the profile fields of a non-blocked relation.
func (s *Store) UpdateProfile(_ context.Context, key models.RelationKey, customerName string, kycVerified bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[key]
	if !ok || rel.Status == models.BLOCKED {
		return storage.ErrConditionFailed
	}
	if customerName != "" {
		rel.CustomerName = customerName
	}
	rel.KYCVerified = kycVerified
	rel.Version++
	rel.UpdatedAt = now
	return nil
}

// AppendScore sets the score and appends to the history.
func (s *Store) AppendScore(_ context.Context, key models.RelationKey, entry models.ScoreEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[key]
	if !ok {
		return storage.ErrNotFound
	}
	rel.TrustScore = entry.Score
	rel.TrustScoreHistory = append(rel.TrustScoreHistory, entry)
	rel.UpdatedAt = entry.CalculatedAt
	return nil
}

// GetTransaction retrieves a transaction.
func (s *Store) GetTransaction(_ context.Context, txID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// ListTransactionsByRelation lists a relation's transactions, newest first.
func (s *Store) ListTransactionsByRelation(_ context.Context, key models.RelationKey, limit int32) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.CustomerID == key.CustomerID && tx.VendorID == key.VendorID {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

// ListDueTransactions lists transactions in status whose due date is before cutoff.
func (s *Store) ListDueTransactions(_ context.Context, status models.PaymentStatus, cutoff time.Time) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.PaymentStatus == status && tx.DueDate.Before(cutoff) {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// MarkOverdue moves a pending transaction to overdue.
func (s *Store) MarkOverdue(_ context.Context, txID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[txID]
	if !ok || tx.PaymentStatus != models.PENDING {
		return storage.ErrConditionFailed
	}
	tx.PaymentStatus = models.OVERDUE
	tx.UpdatedAt = now
	return nil
}

// MarkDefaulted stamps defaulted_at once on an overdue transaction.
func (s *Store) MarkDefaulted(_ context.Context, txID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[txID]
	if !ok || tx.PaymentStatus != models.OVERDUE || tx.DefaultedAt != nil {
		return storage.ErrConditionFailed
	}
	tx.DefaultedAt = &now
	tx.UpdatedAt = now
	return nil
}

// PutToken inserts a token if absent.
func (s *Store) PutToken(_ context.Context, token *models.QRToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token.Token]; ok {
		return storage.ErrAlreadyExists
	}
	cp := *token
	s.tokens[token.Token] = &cp
	return nil
}

// GetToken retrieves a token.
func (s *Store) GetToken(_ context.Context, token string) (*models.QRToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// MarkTokenUsed flips an unused, unexpired token to used.
func (s *Store) MarkTokenUsed(_ context.Context, token, customerID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.Used || t.Expired(now) {
		return storage.ErrConditionFailed
	}
	t.Used = true
	t.UsedBy = customerID
	t.UsedAt = &now
	return nil
}

// ListActiveTokens lists a vendor's unexpired tokens, newest first.
func (s *Store) ListActiveTokens(_ context.Context, vendorID string, now time.Time) ([]models.QRToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QRToken
	for _, t := range s.tokens {
		if t.VendorID == vendorID && !t.Expired(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.After(out[j].ExpiresAt) })
	return out, nil
}

// SaveChallenge replaces the pending challenge for a phone.
func (s *Store) SaveChallenge(_ context.Context, challenge *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *challenge
	s.challenges[challenge.Phone] = &cp
	return nil
}

// ConsumeChallenge compares and deletes under one lock.
func (s *Store) ConsumeChallenge(_ context.Context, phone, code string, now time.Time, maxAttempts int) (storage.ConsumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[phone]
	if !ok {
		return storage.ChallengeMissing, nil
	}
	if now.After(c.ExpiresAt) {
		delete(s.challenges, phone)
		return storage.ChallengeMissing, nil
	}
	if c.Code == code {
		delete(s.challenges, phone)
		return storage.ChallengeMatched, nil
	}
	c.Attempts++
	if maxAttempts > 0 && c.Attempts >= maxAttempts {
		delete(s.challenges, phone)
		return storage.ChallengeExhausted, nil
	}
	return storage.ChallengeMismatch, nil
}

func copyRelation(rel *models.Relation) *models.Relation {
	cp := *rel
	cp.TrustScoreHistory = append([]models.ScoreEntry(nil), rel.TrustScoreHistory...)
	return &cp
}
