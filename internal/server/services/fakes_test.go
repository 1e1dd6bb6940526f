package services

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/dues"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/groups"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/preferences"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/pushsubs"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/users"
	"github.com/shopspring/decimal"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// newSQLMockDB returns a pool whose Begin/Commit the fakes never touch; tests
// that go through dbx.WithTx register ExpectBegin/ExpectCommit on it.
func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type membershipKey struct{ user, group int64 }

// memStore backs every fake repository with the same in-memory tables.
type memStore struct {
	mu     sync.Mutex
	nextID int64

	users         map[int64]*models.User
	refreshTokens map[string]*models.RefreshToken
	groups        map[int64]*models.Group
	members       map[membershipKey]*models.Membership
	invitations   map[string]*models.Invitation
	transactions  map[int64]*models.Transaction
	dues          map[membershipKey]*models.Dues
	logs          []models.NotificationLog
	prefs         map[int64]bool
	push          map[string]*models.PushSubscription

	// collisions makes the next n code-generating inserts fail.
	collisions int
	// fail injects an error into the named repository method.
	fail map[string]error
	// calls counts repository method invocations.
	calls map[string]int
	// monthlySince is the last window start passed to MonthlyStats.
	monthlySince time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[int64]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		groups:        map[int64]*models.Group{},
		members:       map[membershipKey]*models.Membership{},
		invitations:   map[string]*models.Invitation{},
		transactions:  map[int64]*models.Transaction{},
		dues:          map[membershipKey]*models.Dues{},
		prefs:         map[int64]bool{},
		push:          map[string]*models.PushSubscription{},
		fail:          map[string]error{},
		calls:         map[string]int{},
	}
}

// enter locks the store and reports an injected failure for method.
func (s *memStore) enter(method string) error {
	s.mu.Lock()
	s.calls[method]++
	return s.fail[method]
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// --- seeding helpers ---

func (s *memStore) addUser(name, email string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users[id] = &models.User{ID: id, Name: name, Email: email, Role: models.DefaultUserRole, CreatedAt: time.Now()}
	return id
}

func (s *memStore) addGroup(name string, members map[int64]models.Role) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.groups[id] = &models.Group{ID: id, Name: name, Code: "G" + strconv.FormatInt(id, 10), CreatedAt: time.Now()}
	for uid, role := range members {
		s.members[membershipKey{uid, id}] = &models.Membership{UserID: uid, GroupID: id, Role: role, JoinedAt: time.Now()}
	}
	return id
}

func (s *memStore) roleOf(userID, groupID int64) models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[membershipKey{userID, groupID}]; ok {
		return m.Role
	}
	return models.RoleNone
}

func (s *memStore) adminCount(groupID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, m := range s.members {
		if k.group == groupID && m.Role == models.RoleAdmin {
			n++
		}
	}
	return n
}

// --- repository manager ---

type fakeRepoManager struct {
	s          *memStore
	migrateErr error
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{s: newMemStore()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return m.migrateErr }

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return fakeUsers{m.s} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return fakeRefresh{m.s} }
func (m *fakeRepoManager) Groups(dbx.DBTX) groups.Repository               { return fakeGroups{m.s} }
func (m *fakeRepoManager) Invitations(dbx.DBTX) invitations.Repository     { return fakeInvitations{m.s} }
func (m *fakeRepoManager) Transactions(dbx.DBTX) transactions.Repository   { return fakeTransactions{m.s} }
func (m *fakeRepoManager) Dues(dbx.DBTX) dues.Repository                   { return fakeDues{m.s} }
func (m *fakeRepoManager) Notifications(dbx.DBTX) notifications.Repository { return fakeNotifications{m.s} }
func (m *fakeRepoManager) Preferences(dbx.DBTX) preferences.Repository     { return fakePreferences{m.s} }
func (m *fakeRepoManager) PushSubscriptions(dbx.DBTX) pushsubs.Repository  { return fakePush{m.s} }

// --- users ---

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if err := f.s.enter("Users.Create"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.NewError(common.ErrorConflict, "email already registered")
		}
	}
	out := *u
	out.ID = f.s.id()
	out.Role = models.DefaultUserRole
	out.CreatedAt = time.Now()
	f.s.users[out.ID] = &out
	cp := out
	return &cp, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if err := f.s.enter("Users.GetByEmail"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	if err := f.s.enter("Users.GetByID"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

// --- refresh tokens ---

type fakeRefresh struct{ s *memStore }

func (f fakeRefresh) Create(_ context.Context, userID int64, token string, validity time.Duration) error {
	if err := f.s.enter("RefreshTokens.Create"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	f.s.refreshTokens[token] = &models.RefreshToken{ID: f.s.id(), UserID: userID, Token: token, Expires: time.Now().Add(validity), CreatedAt: time.Now()}
	return nil
}

func (f fakeRefresh) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	if err := f.s.enter("RefreshTokens.Find"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	t, ok := f.s.refreshTokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f fakeRefresh) Delete(_ context.Context, token string) error {
	if err := f.s.enter("RefreshTokens.Delete"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	delete(f.s.refreshTokens, token)
	return nil
}

func (f fakeRefresh) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if err := f.s.enter("RefreshTokens.DeleteExpired"); err != nil {
		f.s.mu.Unlock()
		return 0, err
	}
	defer f.s.mu.Unlock()
	var n int64
	for k, t := range f.s.refreshTokens {
		if t.Expires.Before(now) {
			delete(f.s.refreshTokens, k)
			n++
		}
	}
	return n, nil
}

// --- groups ---

type fakeGroups struct{ s *memStore }

func (f fakeGroups) Create(_ context.Context, name, code string) (*models.Group, error) {
	if err := f.s.enter("Groups.Create"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	if f.s.collisions > 0 {
		f.s.collisions--
		return nil, common.ErrorCodeCollision
	}
	for _, g := range f.s.groups {
		if g.Code == code {
			return nil, common.ErrorCodeCollision
		}
	}
	g := &models.Group{ID: f.s.id(), Name: name, Code: code, CreatedAt: time.Now()}
	f.s.groups[g.ID] = g
	cp := *g
	return &cp, nil
}

func (f fakeGroups) GetByID(_ context.Context, id int64) (*models.Group, error) {
	if err := f.s.enter("Groups.GetByID"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	g, ok := f.s.groups[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *g
	return &cp, nil
}

// Delete mirrors ON DELETE CASCADE.
func (f fakeGroups) Delete(_ context.Context, id int64) error {
	if err := f.s.enter("Groups.Delete"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	if _, ok := f.s.groups[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.groups, id)
	for k := range f.s.members {
		if k.group == id {
			delete(f.s.members, k)
		}
	}
	for k := range f.s.dues {
		if k.group == id {
			delete(f.s.dues, k)
		}
	}
	for k, t := range f.s.transactions {
		if t.GroupID == id {
			delete(f.s.transactions, k)
		}
	}
	for k, inv := range f.s.invitations {
		if inv.GroupID == id {
			delete(f.s.invitations, k)
		}
	}
	return nil
}

func (f fakeGroups) ListIDs(context.Context) ([]int64, error) {
	if err := f.s.enter("Groups.ListIDs"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	out := []int64{}
	for id := range f.s.groups {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f fakeGroups) ListForUser(_ context.Context, userID int64) ([]models.GroupWithRole, error) {
	if err := f.s.enter("Groups.ListForUser"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	out := []models.GroupWithRole{}
	for k, m := range f.s.members {
		if k.user == userID {
			out = append(out, models.GroupWithRole{Group: *f.s.groups[k.group], Role: m.Role, JoinedAt: m.JoinedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f fakeGroups) LockGroup(_ context.Context, groupID int64) error {
	if err := f.s.enter("Groups.LockGroup"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	if _, ok := f.s.groups[groupID]; !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (f fakeGroups) AddMember(_ context.Context, userID, groupID int64, role models.Role) (*models.Membership, error) {
	if err := f.s.enter("Groups.AddMember"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	k := membershipKey{userID, groupID}
	if _, ok := f.s.members[k]; ok {
		return nil, common.NewError(common.ErrorConflict, "user is already a member of the group")
	}
	m := &models.Membership{UserID: userID, GroupID: groupID, Role: role, JoinedAt: time.Now()}
	f.s.members[k] = m
	cp := *m
	return &cp, nil
}

func (f fakeGroups) AddMemberIfAbsent(_ context.Context, userID, groupID int64, role models.Role) (bool, error) {
	if err := f.s.enter("Groups.AddMemberIfAbsent"); err != nil {
		f.s.mu.Unlock()
		return false, err
	}
	defer f.s.mu.Unlock()
	k := membershipKey{userID, groupID}
	if _, ok := f.s.members[k]; ok {
		return false, nil
	}
	f.s.members[k] = &models.Membership{UserID: userID, GroupID: groupID, Role: role, JoinedAt: time.Now()}
	return true, nil
}

func (f fakeGroups) GetRole(_ context.Context, userID, groupID int64) (models.Role, error) {
	if err := f.s.enter("Groups.GetRole"); err != nil {
		f.s.mu.Unlock()
		return models.RoleNone, err
	}
	defer f.s.mu.Unlock()
	m, ok := f.s.members[membershipKey{userID, groupID}]
	if !ok {
		return models.RoleNone, common.ErrorNotFound
	}
	return m.Role, nil
}

func (f fakeGroups) SetRole(_ context.Context, userID, groupID int64, role models.Role) (*models.Membership, error) {
	if err := f.s.enter("Groups.SetRole"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	m, ok := f.s.members[membershipKey{userID, groupID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	m.Role = role
	cp := *m
	return &cp, nil
}

func (f fakeGroups) RemoveMember(_ context.Context, userID, groupID int64) error {
	if err := f.s.enter("Groups.RemoveMember"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	delete(f.s.members, membershipKey{userID, groupID})
	return nil
}

func (f fakeGroups) CountAdmins(_ context.Context, groupID int64) (int, error) {
	if err := f.s.enter("Groups.CountAdmins"); err != nil {
		f.s.mu.Unlock()
		return 0, err
	}
	f.s.mu.Unlock()
	return f.s.adminCount(groupID), nil
}

func (f fakeGroups) CountMembers(_ context.Context, groupID int64) (int, error) {
	if err := f.s.enter("Groups.CountMembers"); err != nil {
		f.s.mu.Unlock()
		return 0, err
	}
	defer f.s.mu.Unlock()
	n := 0
	for k := range f.s.members {
		if k.group == groupID {
			n++
		}
	}
	return n, nil
}

func (f fakeGroups) ListMembers(_ context.Context, groupID int64) ([]models.Member, error) {
	if err := f.s.enter("Groups.ListMembers"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	out := []models.Member{}
	for k, m := range f.s.members {
		if k.group != groupID {
			continue
		}
		u := f.s.users[k.user]
		mem := models.Member{UserID: k.user, Role: m.Role, JoinedAt: m.JoinedAt}
		if u != nil {
			mem.Name, mem.Email = u.Name, u.Email
		}
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role == models.RoleAdmin
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// --- invitations ---

type fakeInvitations struct{ s *memStore }

func (f fakeInvitations) Create(_ context.Context, groupID, createdBy int64, code string, expiresAt time.Time) (*models.Invitation, error) {
	if err := f.s.enter("Invitations.Create"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	if f.s.collisions > 0 {
		f.s.collisions--
		return nil, common.ErrorCodeCollision
	}
	if _, ok := f.s.invitations[code]; ok {
		return nil, common.ErrorCodeCollision
	}
	inv := &models.Invitation{ID: f.s.id(), GroupID: groupID, Code: code, CreatedBy: createdBy, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	f.s.invitations[code] = inv
	cp := *inv
	return &cp, nil
}

func (f fakeInvitations) GetByCodeForUpdate(_ context.Context, code string) (*models.Invitation, error) {
	if err := f.s.enter("Invitations.GetByCodeForUpdate"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	inv, ok := f.s.invitations[code]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f fakeInvitations) MarkAccepted(_ context.Context, id, userID int64, at time.Time) error {
	if err := f.s.enter("Invitations.MarkAccepted"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	for _, inv := range f.s.invitations {
		if inv.ID == id {
			if inv.AcceptedAt != nil {
				return common.NewError(common.ErrorConflict, "invitation already accepted")
			}
			a, u := at, userID
			inv.AcceptedAt, inv.AcceptedBy = &a, &u
			return nil
		}
	}
	return common.NewError(common.ErrorConflict, "invitation already accepted")
}

func (f fakeInvitations) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if err := f.s.enter("Invitations.DeleteExpired"); err != nil {
		f.s.mu.Unlock()
		return 0, err
	}
	defer f.s.mu.Unlock()
	var n int64
	for k, inv := range f.s.invitations {
		if inv.ExpiresAt.Before(now) && inv.AcceptedAt == nil {
			delete(f.s.invitations, k)
			n++
		}
	}
	return n, nil
}

// --- transactions ---

type fakeTransactions struct{ s *memStore }

func (f fakeTransactions) Create(_ context.Context, t *models.Transaction) error {
	if err := f.s.enter("Transactions.Create"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	t.ID = f.s.id()
	t.CreatedAt = time.Now()
	cp := *t
	f.s.transactions[t.ID] = &cp
	return nil
}

func (f fakeTransactions) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	if err := f.s.enter("Transactions.GetByID"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	t, ok := f.s.transactions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f fakeTransactions) GetByReceiptKey(_ context.Context, key string) (*models.Transaction, error) {
	if err := f.s.enter("Transactions.GetByReceiptKey"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	var best *models.Transaction
	for _, t := range f.s.transactions {
		if t.ReceiptURL == nil {
			continue
		}
		r := *t.ReceiptURL
		if r == key || (len(r) > len(key) && r[len(r)-len(key)-1:] == "/"+key) {
			if best == nil || t.ID < best.ID {
				best = t
			}
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	cp := *best
	return &cp, nil
}

func (f fakeTransactions) Update(_ context.Context, id int64, p models.TransactionPatch) (*models.Transaction, error) {
	if err := f.s.enter("Transactions.Update"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	t, ok := f.s.transactions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.ReceiptURL != nil {
		t.ReceiptURL = p.ReceiptURL
	}
	if p.Category != nil {
		t.Category = p.Category
	}
	cp := *t
	return &cp, nil
}

func (f fakeTransactions) Delete(_ context.Context, id int64) error {
	if err := f.s.enter("Transactions.Delete"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	if _, ok := f.s.transactions[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.transactions, id)
	return nil
}

func inRange(d time.Time, rng models.DateRange) bool {
	if !rng.From.IsZero() && d.Before(rng.From) {
		return false
	}
	if !rng.To.IsZero() && !d.Before(rng.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func (f fakeTransactions) byGroup(groupID int64, rng models.DateRange) []models.Transaction {
	out := []models.Transaction{}
	for _, t := range f.s.transactions {
		if t.GroupID == groupID && inRange(t.Date, rng) {
			out = append(out, *t)
		}
	}
	return out
}

func (f fakeTransactions) ListByGroup(_ context.Context, groupID int64, limit, offset int) ([]models.Transaction, error) {
	if err := f.s.enter("Transactions.ListByGroup"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	all := f.byGroup(groupID, models.DateRange{})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return []models.Transaction{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f fakeTransactions) ListRange(_ context.Context, groupID int64, rng models.DateRange) ([]models.Transaction, error) {
	if err := f.s.enter("Transactions.ListRange"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	all := f.byGroup(groupID, rng)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func (f fakeTransactions) Stats(_ context.Context, groupID int64, rng models.DateRange) (models.GroupStats, error) {
	if err := f.s.enter("Transactions.Stats"); err != nil {
		f.s.mu.Unlock()
		return models.GroupStats{}, err
	}
	defer f.s.mu.Unlock()
	var st models.GroupStats
	for _, t := range f.byGroup(groupID, rng) {
		if t.Type == models.TransactionIncome {
			st.TotalIncome = st.TotalIncome.Add(t.Amount)
		} else {
			st.TotalExpense = st.TotalExpense.Add(t.Amount)
		}
	}
	st.CurrentBalance = st.TotalIncome.Sub(st.TotalExpense)
	return st, nil
}

func (f fakeTransactions) MonthlyStats(_ context.Context, groupID int64, since time.Time) ([]models.MonthlyStat, error) {
	if err := f.s.enter("Transactions.MonthlyStats"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	f.s.monthlySince = since
	buckets := map[string]*models.MonthlyStat{}
	for _, t := range f.byGroup(groupID, models.DateRange{From: since}) {
		k := t.Date.Format("2006-01")
		b, ok := buckets[k]
		if !ok {
			b = &models.MonthlyStat{Month: k}
			buckets[k] = b
		}
		if t.Type == models.TransactionIncome {
			b.Income = b.Income.Add(t.Amount)
		} else {
			b.Expense = b.Expense.Add(t.Amount)
		}
	}
	out := []models.MonthlyStat{}
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (f fakeTransactions) CategoryStats(_ context.Context, groupID int64, rng models.DateRange) ([]models.CategoryStat, error) {
	if err := f.s.enter("Transactions.CategoryStats"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	buckets := map[string]*models.CategoryStat{}
	for _, t := range f.byGroup(groupID, rng) {
		k := models.UncategorizedLabel
		if t.Category != nil && *t.Category != "" {
			k = *t.Category
		}
		b, ok := buckets[k]
		if !ok {
			b = &models.CategoryStat{Category: k}
			buckets[k] = b
		}
		if t.Type == models.TransactionIncome {
			b.Income = b.Income.Add(t.Amount)
		} else {
			b.Expense = b.Expense.Add(t.Amount)
		}
		b.Total = b.Income.Sub(b.Expense)
	}
	out := []models.CategoryStat{}
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// --- dues ---

type fakeDues struct{ s *memStore }

func (f fakeDues) Upsert(_ context.Context, groupID, userID int64, isPaid bool) (*models.Dues, error) {
	if err := f.s.enter("Dues.Upsert"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	d := &models.Dues{GroupID: groupID, UserID: userID, IsPaid: isPaid, UpdatedAt: time.Now()}
	if isPaid {
		now := time.Now()
		d.PaidAt = &now
	}
	f.s.dues[membershipKey{userID, groupID}] = d
	cp := *d
	return &cp, nil
}

func (f fakeDues) ListByGroup(_ context.Context, groupID int64) ([]models.MemberDues, error) {
	if err := f.s.enter("Dues.ListByGroup"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	out := []models.MemberDues{}
	for k := range f.s.members {
		if k.group != groupID {
			continue
		}
		md := models.MemberDues{UserID: k.user}
		if u := f.s.users[k.user]; u != nil {
			md.Name, md.Email = u.Name, u.Email
		}
		if d, ok := f.s.dues[k]; ok {
			md.IsPaid, md.PaidAt = d.IsPaid, d.PaidAt
		}
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- notifications ---

type fakeNotifications struct{ s *memStore }

func (f fakeNotifications) Append(_ context.Context, l *models.NotificationLog) error {
	if err := f.s.enter("Notifications.Append"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	l.ID = f.s.id()
	l.SentAt = time.Now()
	f.s.logs = append(f.s.logs, *l)
	return nil
}

func (f fakeNotifications) newest(keep func(models.NotificationLog) bool, limit int) []models.NotificationLog {
	out := []models.NotificationLog{}
	for i := len(f.s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(f.s.logs[i]) {
			out = append(out, f.s.logs[i])
		}
	}
	return out
}

func (f fakeNotifications) ListByGroup(_ context.Context, groupID int64, userID *int64, limit int) ([]models.NotificationLog, error) {
	if err := f.s.enter("Notifications.ListByGroup"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	return f.newest(func(l models.NotificationLog) bool {
		return l.GroupID != nil && *l.GroupID == groupID && (userID == nil || l.UserID == *userID)
	}, limit), nil
}

func (f fakeNotifications) ListByUser(_ context.Context, userID int64, limit int) ([]models.NotificationLog, error) {
	if err := f.s.enter("Notifications.ListByUser"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	return f.newest(func(l models.NotificationLog) bool { return l.UserID == userID }, limit), nil
}

func (f fakeNotifications) UnpaidCandidates(_ context.Context, groupID int64) ([]models.ReminderCandidate, error) {
	if err := f.s.enter("Notifications.UnpaidCandidates"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	g, ok := f.s.groups[groupID]
	if !ok {
		return []models.ReminderCandidate{}, nil
	}
	out := []models.ReminderCandidate{}
	for k := range f.s.members {
		if k.group != groupID {
			continue
		}
		c := models.ReminderCandidate{GroupID: groupID, GroupName: g.Name, UserID: k.user, ReceiveDuesReminders: true}
		if u := f.s.users[k.user]; u != nil {
			c.UserName, c.Email = u.Name, u.Email
		}
		if v, ok := f.s.prefs[k.user]; ok {
			c.ReceiveDuesReminders = v
		}
		if d, ok := f.s.dues[k]; !ok || !d.IsPaid {
			c.UnpaidCount = 1
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// --- preferences ---

type fakePreferences struct{ s *memStore }

func (f fakePreferences) Get(_ context.Context, userID int64) (*models.UserPreference, error) {
	if err := f.s.enter("Preferences.Get"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	v, ok := f.s.prefs[userID]
	if !ok {
		v = true
	}
	return &models.UserPreference{UserID: userID, ReceiveDuesReminders: v}, nil
}

func (f fakePreferences) Upsert(_ context.Context, userID int64, receive bool) (*models.UserPreference, error) {
	if err := f.s.enter("Preferences.Upsert"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	f.s.prefs[userID] = receive
	return &models.UserPreference{UserID: userID, ReceiveDuesReminders: receive, UpdatedAt: time.Now()}, nil
}

// --- push subscriptions ---

type fakePush struct{ s *memStore }

func (f fakePush) Upsert(_ context.Context, userID int64, token, platform string) (*models.PushSubscription, error) {
	if err := f.s.enter("Push.Upsert"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	sub, ok := f.s.push[token]
	if !ok {
		sub = &models.PushSubscription{ID: f.s.id(), Token: token, CreatedAt: time.Now()}
		f.s.push[token] = sub
	}
	sub.UserID, sub.Platform = userID, platform
	cp := *sub
	return &cp, nil
}

func (f fakePush) Delete(_ context.Context, userID int64, token string) (bool, error) {
	if err := f.s.enter("Push.Delete"); err != nil {
		f.s.mu.Unlock()
		return false, err
	}
	defer f.s.mu.Unlock()
	sub, ok := f.s.push[token]
	if !ok || sub.UserID != userID {
		return false, nil
	}
	delete(f.s.push, token)
	return true, nil
}

func (f fakePush) DeleteToken(_ context.Context, token string) error {
	if err := f.s.enter("Push.DeleteToken"); err != nil {
		f.s.mu.Unlock()
		return err
	}
	defer f.s.mu.Unlock()
	delete(f.s.push, token)
	return nil
}

func (f fakePush) ListByUser(_ context.Context, userID int64) ([]models.PushSubscription, error) {
	if err := f.s.enter("Push.ListByUser"); err != nil {
		f.s.mu.Unlock()
		return nil, err
	}
	defer f.s.mu.Unlock()
	out := []models.PushSubscription{}
	for _, sub := range f.s.push {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strp(s string) *string { return &s }
