// Package memory implements the repository interfaces in process memory.
// It backs the server's development mode and the service and handler tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/repository"
)

// ErrNotParticipant mirrors the insufficient_privilege error leave_chat_room
// raises for strangers.
var ErrNotParticipant = errors.New("not a participant of this chat room")

// DB holds every table. The repositories it hands out share one lock.
type DB struct {
	mu            sync.RWMutex
	adminPassword string
	now           func() time.Time

	users      map[uuid.UUID]*domain.User
	brands     []domain.Brand
	categories []domain.Category
	products   map[uuid.UUID]*domain.Product
	rooms      map[uuid.UUID]*domain.ChatRoom
	messages   map[uuid.UUID][]domain.Message
}

func New(adminPassword string) *DB {
	return &DB{
		adminPassword: adminPassword,
		now:           monotonicClock(),
		users:         make(map[uuid.UUID]*domain.User),
		products:      make(map[uuid.UUID]*domain.Product),
		rooms:         make(map[uuid.UUID]*domain.ChatRoom),
		messages:      make(map[uuid.UUID][]domain.Message),
	}
}

// monotonicClock never returns the same instant twice, so created_at
// ordering matches insertion order like a sequence would.
func monotonicClock() func() time.Time {
	var mu sync.Mutex
	var last time.Time
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := time.Now().UTC()
		if !t.After(last) {
			t = last.Add(time.Microsecond)
		}
		last = t
		return t
	}
}

func (db *DB) Users() repository.UserRepository       { return userRepo{db} }
func (db *DB) Catalog() repository.CatalogRepository  { return catalogRepo{db} }
func (db *DB) Products() repository.ProductRepository { return productRepo{db} }
func (db *DB) Rooms() repository.RoomRepository       { return roomRepo{db} }
func (db *DB) Messages() repository.MessageRepository { return messageRepo{db} }

// --- users ---

type userRepo struct{ db *DB }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username) {
			return errors.New("duplicate profile")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.db.now()
		user.UpdatedAt = user.CreatedAt
	}
	cp := *user
	r.db.users[user.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if u, ok := r.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Username, username) }), nil
}

func (r userRepo) find(match func(*domain.User) bool) *domain.User {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r userRepo) ClaimAdmin(_ context.Context, userID uuid.UUID, password string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok || r.db.adminPassword == "" || password != r.db.adminPassword {
		return false, nil
	}
	u.IsAdmin = true
	u.UpdatedAt = r.db.now()
	return true, nil
}

func (r userRepo) Count(context.Context) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return int64(len(r.db.users)), nil
}

// --- catalog ---

type catalogRepo struct{ db *DB }

func (r catalogRepo) ListBrands(context.Context) ([]domain.Brand, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := append([]domain.Brand(nil), r.db.brands...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r catalogRepo) ListCategories(context.Context) ([]domain.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := append([]domain.Category(nil), r.db.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r catalogRepo) CreateBrand(_ context.Context, name string) (*domain.Brand, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b := domain.Brand{ID: int64(len(r.db.brands) + 1), Name: name}
	r.db.brands = append(r.db.brands, b)
	return &b, nil
}

func (r catalogRepo) CreateCategory(_ context.Context, name string) (*domain.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := domain.Category{ID: int64(len(r.db.categories) + 1), Name: name}
	r.db.categories = append(r.db.categories, c)
	return &c, nil
}

func (r catalogRepo) GetBrand(_ context.Context, id int64) (*domain.Brand, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, b := range r.db.brands {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, nil
}

func (r catalogRepo) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

// --- products ---

type productRepo struct{ db *DB }

func (r productRepo) Create(_ context.Context, p *domain.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.db.now()
	cp := *p
	cp.Images = append([]string(nil), p.Images...)
	r.db.products[p.ID] = &cp
	return nil
}

func (r productRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.products[id]
	if !ok {
		return nil, nil
	}
	out := r.db.joinProduct(p)
	return &out, nil
}

func (r productRepo) List(_ context.Context, filter domain.ProductFilter, limit int) ([]domain.Product, error) {
	q := strings.ToLower(filter.Query)
	return r.collect(func(p *domain.Product) bool {
		if filter.BrandID != 0 && p.BrandID != filter.BrandID {
			return false
		}
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			return false
		}
		if q == "" {
			return true
		}
		desc := ""
		if p.Description != nil {
			desc = *p.Description
		}
		return strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(desc), q)
	}, limit), nil
}

func (r productRepo) ListByCategory(_ context.Context, categoryID int64, exclude uuid.UUID, limit int) ([]domain.Product, error) {
	return r.collect(func(p *domain.Product) bool {
		return p.CategoryID == categoryID && p.ID != exclude
	}, limit), nil
}

func (r productRepo) ListLatest(_ context.Context, exclude uuid.UUID, limit int) ([]domain.Product, error) {
	return r.collect(func(p *domain.Product) bool { return p.ID != exclude }, limit), nil
}

func (r productRepo) collect(match func(*domain.Product) bool, limit int) []domain.Product {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.Product
	for _, p := range r.db.products {
		if match(p) {
			out = append(out, r.db.joinProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (db *DB) joinProduct(p *domain.Product) domain.Product {
	out := *p
	out.Images = append([]string{}, p.Images...)
	for _, b := range db.brands {
		if b.ID == p.BrandID {
			out.BrandName = b.Name
		}
	}
	for _, c := range db.categories {
		if c.ID == p.CategoryID {
			out.CategoryName = c.Name
		}
	}
	return out
}

// --- rooms ---

type roomRepo struct{ db *DB }

func (r roomRepo) Create(_ context.Context, room *domain.ChatRoom) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.rooms {
		if existing.ProductID == room.ProductID && existing.BuyerID == room.BuyerID {
			return errors.New("duplicate chat room")
		}
	}
	room.ID = uuid.New()
	room.CreatedAt = r.db.now()
	cp := *room
	cp.Product = nil
	r.db.rooms[room.ID] = &cp
	return nil
}

func (r roomRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	room, ok := r.db.rooms[id]
	if !ok {
		return nil, nil
	}
	out := r.db.joinRoom(room)
	return &out, nil
}

func (r roomRepo) GetByParticipants(_ context.Context, productID, buyerID uuid.UUID) (*domain.ChatRoom, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, room := range r.db.rooms {
		if room.ProductID == productID && room.BuyerID == buyerID {
			out := r.db.joinRoom(room)
			return &out, nil
		}
	}
	return nil, nil
}

func (r roomRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.ChatRoom, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.ChatRoom
	for _, room := range r.db.rooms {
		if room.IsParticipant(userID) && !room.HasLeft(userID) {
			out = append(out, r.db.joinRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r roomRepo) Leave(_ context.Context, roomID, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	room, ok := r.db.rooms[roomID]
	if !ok {
		return nil
	}
	switch userID {
	case room.BuyerID:
		room.BuyerLeft = true
	case room.SellerID:
		room.SellerLeft = true
	default:
		return ErrNotParticipant
	}
	if room.BuyerLeft && room.SellerLeft {
		delete(r.db.rooms, roomID)
		delete(r.db.messages, roomID)
	}
	return nil
}

func (db *DB) joinRoom(room *domain.ChatRoom) domain.ChatRoom {
	out := *room
	if p, ok := db.products[room.ProductID]; ok {
		summary := &domain.ProductSummary{ID: p.ID, Title: p.Title, Price: p.Price}
		if len(p.Images) > 0 {
			img := p.Images[0]
			summary.Image = &img
		}
		out.Product = summary
	}
	return out
}

// --- messages ---

type messageRepo struct{ db *DB }

func (r messageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.rooms[msg.RoomID]; !ok {
		return errors.New("chat room does not exist")
	}
	msg.ID = uuid.New()
	msg.CreatedAt = r.db.now()
	r.db.messages[msg.RoomID] = append(r.db.messages[msg.RoomID], *msg)
	return nil
}

func (r messageRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]domain.Message, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]domain.Message(nil), r.db.messages[roomID]...), nil
}
