package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// In-memory repository fakes. Missing rows surface as pgx.ErrNoRows to
// mirror the Postgres implementations.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int64]domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{nextID: 1, tickets: map[int64]domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = r.nextID
	r.nextID++
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListAll(_ context.Context) ([]domain.Ticket, error) {
	return r.listWhere(func(domain.Ticket) bool { return true }), nil
}

func (r *fakeTicketRepo) ListByOwner(_ context.Context, ownerID int64) ([]domain.Ticket, error) {
	return r.listWhere(func(t domain.Ticket) bool { return t.OwnerID == ownerID }), nil
}

func (r *fakeTicketRepo) ListByAssignee(_ context.Context, assigneeID int64) ([]domain.Ticket, error) {
	return r.listWhere(func(t domain.Ticket) bool {
		return t.AssigneeID != nil && *t.AssigneeID == assigneeID
	}), nil
}

func (r *fakeTicketRepo) CountActiveByAssignee(_ context.Context, assigneeID int64) (int, error) {
	count := 0
	for _, t := range r.listWhere(func(t domain.Ticket) bool {
		return t.AssigneeID != nil && *t.AssigneeID == assigneeID
	}) {
		if domain.ActiveStatus(t.Status) {
			count++
		}
	}
	return count, nil
}

func (r *fakeTicketRepo) listWhere(pred func(domain.Ticket) bool) []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if pred(ticket) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// duplicatingTicketRepo wraps a repo and doubles every listing result,
// exercising the dedup step in search.
type duplicatingTicketRepo struct {
	repository.TicketRepository
}

func (r *duplicatingTicketRepo) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := r.TicketRepository.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return append(tickets, tickets...), nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64][]domain.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{nextID: 1, comments: map[int64][]domain.Comment{}}
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextID
	r.nextID++
	r.comments[comment.TicketID] = append(r.comments[comment.TicketID], *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Comment(nil), r.comments[ticketID]...), nil
}

type fakeResetRepo struct {
	mu     sync.Mutex
	nextID int64
	tokens map[string]repository.PasswordResetToken
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{nextID: 1, tokens: map[string]repository.PasswordResetToken{}}
}

func (r *fakeResetRepo) Create(_ context.Context, token *repository.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = r.nextID
	token.CreatedAt = time.Now()
	r.nextID++
	r.tokens[token.Token] = *token
	return nil
}

func (r *fakeResetRepo) GetByToken(_ context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := token
	return &copied, nil
}

func (r *fakeResetRepo) MarkUsed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for key, token := range r.tokens {
		if token.ID == id {
			token.UsedAt = &now
			r.tokens[key] = token
		}
	}
	return nil
}

// recordingMailer captures outbound mail for assertions.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}
