// internal/store/memstore/memstore.go

// Package memstore keeps the whole ledger in process memory. A single mutex
// serializes every call; WithinTx works on a copy of the state and swaps it in
// only when fn succeeds, which gives the same all-or-nothing behaviour as the
// postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/javajoker/earnings-ledger/internal/models"
	"github.com/javajoker/earnings-ledger/internal/store"
)

type state struct {
	users       map[uuid.UUID]models.User
	accounts    map[uuid.UUID]models.PayoutAccount
	payments    map[uuid.UUID]models.Payment
	purchases   map[uuid.UUID]models.Purchase
	commissions map[uuid.UUID]models.Commission
	maturations map[uuid.UUID]models.Maturation
	payouts     map[uuid.UUID]models.Payout
	audit       []models.AuditLog
}

func newState() *state {
	return &state{
		users:       map[uuid.UUID]models.User{},
		accounts:    map[uuid.UUID]models.PayoutAccount{},
		payments:    map[uuid.UUID]models.Payment{},
		purchases:   map[uuid.UUID]models.Purchase{},
		commissions: map[uuid.UUID]models.Commission{},
		maturations: map[uuid.UUID]models.Maturation{},
		payouts:     map[uuid.UUID]models.Payout{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		users:       cloneMap(s.users),
		accounts:    cloneMap(s.accounts),
		payments:    cloneMap(s.payments),
		purchases:   cloneMap(s.purchases),
		commissions: cloneMap(s.commissions),
		maturations: cloneMap(s.maturations),
		payouts:     cloneMap(s.payouts),
		audit:       append([]models.AuditLog(nil), s.audit...),
	}
}

type database struct {
	mu sync.Mutex
	st *state
}

// Store implements store.Store. The zero value is not usable; call New.
type Store struct {
	db *database
	tx *state
	// clock stamps created_at/updated_at; tests may replace it.
	clock func() time.Time
}

func New() *Store {
	return &Store{db: &database{st: newState()}, clock: time.Now}
}

// WithClock returns a view of the same data that stamps records with clock.
func (s *Store) WithClock(clock func() time.Time) *Store {
	return &Store{db: s.db, tx: s.tx, clock: clock}
}

func (s *Store) run(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.st)
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	work := s.db.st.clone()
	if err := fn(&Store{db: s.db, tx: work, clock: s.clock}); err != nil {
		return err
	}
	s.db.st = work
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) stamp(b *models.BaseModel) {
	now := s.clock()
	b.EnsureID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Users and wallets

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.run(func(st *state) error {
		for _, u := range st.users {
			if u.ID == user.ID || u.Username == user.Username || u.Email == user.Email {
				return store.ErrDuplicate
			}
		}
		s.stamp(&user.BaseModel)
		if user.Wallet.Currency == "" {
			user.Wallet.Currency = "PKR"
		}
		row := *user
		row.PayoutAccounts = nil
		st.users[row.ID] = row
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := s.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *Store) FindPlatformUser(ctx context.Context) (*models.User, error) {
	var out *models.User
	err := s.run(func(st *state) error {
		for _, u := range st.users {
			if u.Role != models.UserRoleSuperadmin {
				continue
			}
			if out == nil || u.CreatedAt.Before(out.CreatedAt) {
				u := u
				out = &u
			}
		}
		if out == nil {
			return store.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (s *Store) updateWallet(userID uuid.UUID, fn func(w *models.Wallet) error) error {
	return s.run(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return store.ErrNotFound
		}
		if err := fn(&u.Wallet); err != nil {
			return err
		}
		u.UpdatedAt = s.clock()
		st.users[userID] = u
		return nil
	})
}

func (s *Store) CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.updateWallet(userID, func(w *models.Wallet) error {
		w.TotalEarnings = w.TotalEarnings.Add(amount)
		w.PendingBalance = w.PendingBalance.Add(amount)
		return nil
	})
}

func (s *Store) MatureWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.updateWallet(userID, func(w *models.Wallet) error {
		if w.PendingBalance.LessThan(amount) {
			return store.ErrConditionFailed
		}
		w.PendingBalance = w.PendingBalance.Sub(amount)
		w.AvailableBalance = w.AvailableBalance.Add(amount)
		return nil
	})
}

func (s *Store) DebitAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.updateWallet(userID, func(w *models.Wallet) error {
		if w.AvailableBalance.LessThan(amount) {
			return store.ErrConditionFailed
		}
		w.AvailableBalance = w.AvailableBalance.Sub(amount)
		return nil
	})
}

func (s *Store) RestoreAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return s.updateWallet(userID, func(w *models.Wallet) error {
		w.AvailableBalance = w.AvailableBalance.Add(amount)
		return nil
	})
}

// Payout accounts

func accountConflicts(st *state, a *models.PayoutAccount) bool {
	for id, other := range st.accounts {
		if id == a.ID {
			continue
		}
		if other.UserID == a.UserID && other.Method == a.Method {
			return true
		}
		if other.Method == a.Method && other.AccountNumber == a.AccountNumber {
			return true
		}
	}
	return false
}

func (s *Store) CreatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	return s.run(func(st *state) error {
		account.EnsureID()
		if _, exists := st.accounts[account.ID]; exists || accountConflicts(st, account) {
			return store.ErrDuplicate
		}
		s.stamp(&account.BaseModel)
		st.accounts[account.ID] = *account
		return nil
	})
}

func (s *Store) UpdatePayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	return s.run(func(st *state) error {
		if _, ok := st.accounts[account.ID]; !ok {
			return store.ErrNotFound
		}
		if accountConflicts(st, account) {
			return store.ErrDuplicate
		}
		account.UpdatedAt = s.clock()
		st.accounts[account.ID] = *account
		return nil
	})
}

func (s *Store) GetPayoutAccount(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error) {
	var out *models.PayoutAccount
	err := s.run(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (s *Store) findAccount(match func(a models.PayoutAccount) bool) (*models.PayoutAccount, error) {
	var out *models.PayoutAccount
	err := s.run(func(st *state) error {
		for _, a := range st.accounts {
			if match(a) {
				a := a
				out = &a
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) FindPayoutAccount(ctx context.Context, userID uuid.UUID, method models.PayoutMethod) (*models.PayoutAccount, error) {
	return s.findAccount(func(a models.PayoutAccount) bool {
		return a.UserID == userID && a.Method == method
	})
}

func (s *Store) FindPayoutAccountByNumber(ctx context.Context, method models.PayoutMethod, accountNumber string) (*models.PayoutAccount, error) {
	return s.findAccount(func(a models.PayoutAccount) bool {
		return a.Method == method && a.AccountNumber == accountNumber
	})
}

func (s *Store) ListPayoutAccounts(ctx context.Context, userID uuid.UUID) ([]models.PayoutAccount, error) {
	var out []models.PayoutAccount
	err := s.run(func(st *state) error {
		for _, a := range st.accounts {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, err
}

// Payments

func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return s.run(func(st *state) error {
		payment.EnsureID()
		for id, p := range st.payments {
			if id == payment.ID || p.Tracker == payment.Tracker || p.OrderID == payment.OrderID {
				return store.ErrDuplicate
			}
		}
		if payment.Status == "" {
			payment.Status = models.PaymentStatusPending
		}
		if payment.EarningsStatus == "" {
			payment.EarningsStatus = models.EarningsStatusPending
		}
		s.stamp(&payment.BaseModel)
		st.payments[payment.ID] = *payment
		return nil
	})
}

func (s *Store) FindPayment(ctx context.Context, lookup store.PaymentLookup) (*models.Payment, error) {
	matchers := []func(p models.Payment) bool{}
	if lookup.Tracker != "" {
		matchers = append(matchers, func(p models.Payment) bool { return p.Tracker == lookup.Tracker })
	}
	if lookup.GatewayReference != "" {
		matchers = append(matchers, func(p models.Payment) bool { return p.GatewayReference == lookup.GatewayReference })
	}
	if lookup.OrderID != "" {
		matchers = append(matchers, func(p models.Payment) bool { return p.OrderID == lookup.OrderID })
	}
	if lookup.PaymentID != uuid.Nil {
		matchers = append(matchers, func(p models.Payment) bool { return p.ID == lookup.PaymentID })
	}

	var out *models.Payment
	err := s.run(func(st *state) error {
		for _, match := range matchers {
			for _, p := range st.payments {
				if match(p) {
					p := p
					out = &p
					return nil
				}
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) TransitionPayment(ctx context.Context, id uuid.UUID, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	changed := false
	err := s.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return nil
		}
		for _, f := range from {
			if p.Status == f {
				p.Status = to
				p.UpdatedAt = s.clock()
				st.payments[id] = p
				changed = true
				return nil
			}
		}
		return nil
	})
	return changed, err
}

func (s *Store) FindPendingPayment(ctx context.Context, buyerID, itemID uuid.UUID, format models.ItemFormat, since time.Time) (*models.Payment, error) {
	var out *models.Payment
	err := s.run(func(st *state) error {
		for _, p := range st.payments {
			if p.BuyerID != buyerID || p.ItemID != itemID || p.Format != format ||
				p.Status != models.PaymentStatusPending || p.CreatedAt.Before(since) {
				continue
			}
			if out == nil || p.CreatedAt.After(out.CreatedAt) {
				p := p
				out = &p
			}
		}
		if out == nil {
			return store.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return s.run(func(st *state) error {
		if _, ok := st.payments[payment.ID]; !ok {
			return store.ErrNotFound
		}
		payment.UpdatedAt = s.clock()
		st.payments[payment.ID] = *payment
		return nil
	})
}

// Purchases

func (s *Store) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return s.run(func(st *state) error {
		purchase.EnsureID()
		for id, p := range st.purchases {
			if id == purchase.ID || p.PaymentID == purchase.PaymentID {
				return store.ErrDuplicate
			}
		}
		if ownedElsewhere(st, purchase) {
			return store.ErrAlreadyOwned
		}
		if purchase.PaymentStatus == "" {
			purchase.PaymentStatus = models.PurchaseStatusPending
		}
		if purchase.EarningsStatus == "" {
			purchase.EarningsStatus = models.EarningsStatusPending
		}
		s.stamp(&purchase.BaseModel)
		st.purchases[purchase.ID] = *purchase
		return nil
	})
}

func (s *Store) FindPurchaseByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Purchase, error) {
	var out *models.Purchase
	err := s.run(func(st *state) error {
		for _, p := range st.purchases {
			if p.PaymentID == paymentID {
				p := p
				out = &p
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) UpdatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return s.run(func(st *state) error {
		if _, ok := st.purchases[purchase.ID]; !ok {
			return store.ErrNotFound
		}
		if ownedElsewhere(st, purchase) {
			return store.ErrAlreadyOwned
		}
		purchase.UpdatedAt = s.clock()
		st.purchases[purchase.ID] = *purchase
		return nil
	})
}

// ownedElsewhere mirrors the partial unique index on completed purchases.
func ownedElsewhere(st *state, purchase *models.Purchase) bool {
	if purchase.PaymentStatus != models.PurchaseStatusCompleted {
		return false
	}
	for id, p := range st.purchases {
		if id != purchase.ID && p.BuyerID == purchase.BuyerID && p.ItemID == purchase.ItemID &&
			p.Format == purchase.Format && p.PaymentStatus == models.PurchaseStatusCompleted {
			return true
		}
	}
	return false
}

func (s *Store) HasCompletedPurchase(ctx context.Context, buyerID, itemID uuid.UUID, format models.ItemFormat) (bool, error) {
	found := false
	err := s.run(func(st *state) error {
		for _, p := range st.purchases {
			if p.BuyerID == buyerID && p.ItemID == itemID && p.Format == format &&
				p.PaymentStatus == models.PurchaseStatusCompleted {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// Commissions

func (s *Store) CreateCommission(ctx context.Context, commission *models.Commission) error {
	return s.run(func(st *state) error {
		commission.EnsureID()
		for id, c := range st.commissions {
			if id == commission.ID || c.PaymentID == commission.PaymentID {
				return store.ErrDuplicate
			}
		}
		if commission.Status == "" {
			commission.Status = models.CommissionStatusProcessed
		}
		s.stamp(&commission.BaseModel)
		row := *commission
		row.Notes = append(pq.StringArray(nil), commission.Notes...)
		st.commissions[row.ID] = row
		return nil
	})
}

func (s *Store) GetCommission(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	var out *models.Commission
	err := s.run(func(st *state) error {
		c, ok := st.commissions[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) FindCommissionByPayment(ctx context.Context, paymentID uuid.UUID) (*models.Commission, error) {
	var out *models.Commission
	err := s.run(func(st *state) error {
		for _, c := range st.commissions {
			if c.PaymentID == paymentID {
				c := c
				out = &c
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func matchCommission(c models.Commission, f store.CommissionFilter) bool {
	if f.SellerID != nil && c.SellerID != *f.SellerID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.From != nil && c.ProcessedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !c.ProcessedAt.Before(*f.To) {
		return false
	}
	return true
}

func (s *Store) filterCommissions(f store.CommissionFilter) ([]models.Commission, error) {
	var out []models.Commission
	err := s.run(func(st *state) error {
		for _, c := range st.commissions {
			if matchCommission(c, f) {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ListCommissions(ctx context.Context, filter store.CommissionFilter) ([]models.Commission, int64, error) {
	all, err := s.filterCommissions(filter)
	if err != nil {
		return nil, 0, err
	}

	key := func(c models.Commission) time.Time { return c.CreatedAt }
	if filter.Sort == "processed_at" {
		key = func(c models.Commission) time.Time { return c.ProcessedAt }
	}
	asc := filter.Order == "asc"
	sort.SliceStable(all, func(i, j int) bool {
		if asc {
			return key(all[i]).Before(key(all[j]))
		}
		return key(all[i]).After(key(all[j]))
	})

	return paginate(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func (s *Store) MarkCommissionPaidOut(ctx context.Context, id uuid.UUID, paidAt time.Time, note string) (bool, error) {
	changed := false
	err := s.run(func(st *state) error {
		c, ok := st.commissions[id]
		if !ok || c.Status != models.CommissionStatusProcessed {
			return nil
		}
		c.Status = models.CommissionStatusPaidOut
		c.PaidAt = &paidAt
		if note != "" {
			notes := append(pq.StringArray(nil), c.Notes...)
			c.Notes = append(notes, note)
		}
		c.UpdatedAt = s.clock()
		st.commissions[id] = c
		changed = true
		return nil
	})
	return changed, err
}

func addTotals(t *store.CommissionTotals, c models.Commission) {
	t.Count++
	t.Gross = t.Gross.Add(c.TotalAmount)
	t.Seller = t.Seller.Add(c.SellerAmount)
	t.Platform = t.Platform.Add(c.SuperadminAmount)
}

func (s *Store) SumCommissions(ctx context.Context, filter store.CommissionFilter) (*store.CommissionTotals, error) {
	all, err := s.filterCommissions(filter)
	if err != nil {
		return nil, err
	}
	totals := &store.CommissionTotals{Gross: decimal.Zero, Seller: decimal.Zero, Platform: decimal.Zero}
	for _, c := range all {
		addTotals(totals, c)
	}
	return totals, nil
}

func (s *Store) DailyCommissionTotals(ctx context.Context, filter store.CommissionFilter) ([]store.DailyTotal, error) {
	all, err := s.filterCommissions(filter)
	if err != nil {
		return nil, err
	}

	byDay := map[string]*store.DailyTotal{}
	for _, c := range all {
		day := c.ProcessedAt.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &store.DailyTotal{Day: day}
			byDay[day] = d
		}
		addTotals(&d.CommissionTotals, c)
	}

	days := make([]store.DailyTotal, 0, len(byDay))
	for _, d := range byDay {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// Maturations

func (s *Store) CreateMaturation(ctx context.Context, maturation *models.Maturation) error {
	return s.run(func(st *state) error {
		maturation.EnsureID()
		for id, m := range st.maturations {
			if id == maturation.ID || (m.CommissionID == maturation.CommissionID && m.UserID == maturation.UserID) {
				return store.ErrDuplicate
			}
		}
		if maturation.Status == "" {
			maturation.Status = models.MaturationStatusPending
		}
		s.stamp(&maturation.BaseModel)
		st.maturations[maturation.ID] = *maturation
		return nil
	})
}

func (s *Store) listMaturations(match func(m models.Maturation) bool, limit int) ([]models.Maturation, error) {
	var out []models.Maturation
	err := s.run(func(st *state) error {
		for _, m := range st.maturations {
			if match(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s *Store) ListDueMaturations(ctx context.Context, now time.Time, limit int) ([]models.Maturation, error) {
	return s.listMaturations(func(m models.Maturation) bool {
		return m.Status == models.MaturationStatusPending && !m.DueAt.After(now)
	}, limit)
}

func (s *Store) ListPendingMaturations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Maturation, error) {
	return s.listMaturations(func(m models.Maturation) bool {
		return m.UserID == userID && m.Status == models.MaturationStatusPending
	}, limit)
}

func (s *Store) MarkMatured(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	changed := false
	err := s.run(func(st *state) error {
		m, ok := st.maturations[id]
		if !ok || m.Status != models.MaturationStatusPending {
			return nil
		}
		m.Status = models.MaturationStatusMatured
		m.MaturedAt = &at
		m.UpdatedAt = s.clock()
		st.maturations[id] = m
		changed = true
		return nil
	})
	return changed, err
}

// Payouts

func (s *Store) CreatePayout(ctx context.Context, payout *models.Payout) error {
	return s.run(func(st *state) error {
		payout.EnsureID()
		for id, p := range st.payouts {
			if id == payout.ID || p.Reference == payout.Reference {
				return store.ErrDuplicate
			}
		}
		if payout.Status == "" {
			payout.Status = models.PayoutStatusPending
		}
		s.stamp(&payout.BaseModel)
		st.payouts[payout.ID] = *payout
		return nil
	})
}

func (s *Store) GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var out *models.Payout
	err := s.run(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *Store) ListPayouts(ctx context.Context, filter store.PayoutFilter) ([]models.Payout, int64, error) {
	var all []models.Payout
	err := s.run(func(st *state) error {
		for _, p := range st.payouts {
			if filter.UserID != nil && p.UserID != *filter.UserID {
				continue
			}
			if filter.Status != nil && p.Status != *filter.Status {
				continue
			}
			all = append(all, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	asc := filter.Order == "asc"
	sort.SliceStable(all, func(i, j int) bool {
		if asc {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func (s *Store) TransitionPayout(ctx context.Context, id uuid.UUID, from []models.PayoutStatus, to models.PayoutStatus, by *uuid.UUID, note string, at time.Time) (bool, error) {
	changed := false
	err := s.run(func(st *state) error {
		p, ok := st.payouts[id]
		if !ok {
			return nil
		}
		for _, f := range from {
			if p.Status != f {
				continue
			}
			p.Status = to
			p.ResolvedAt = &at
			p.ResolvedBy = by
			if note != "" {
				p.Notes = note
			}
			p.UpdatedAt = s.clock()
			st.payouts[id] = p
			changed = true
			return nil
		}
		return nil
	})
	return changed, err
}

// Audit

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return s.run(func(st *state) error {
		s.stamp(&entry.BaseModel)
		st.audit = append(st.audit, *entry)
		return nil
	})
}

func (s *Store) ListAuditLogs(ctx context.Context, resourceType string, limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := s.run(func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			if resourceType != "" && st.audit[i].ResourceType != resourceType {
				continue
			}
			out = append(out, st.audit[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func paginate[T any](rows []T, page, limit int) []T {
	if limit <= 0 {
		return rows
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(rows) {
		return []T{}
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

var _ store.Store = (*Store)(nil)
