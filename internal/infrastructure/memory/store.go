package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/domain/repository"
)

var (
	_ repository.UserRepository       = (*UserRepo)(nil)
	_ repository.UnitRepository       = (*UnitRepo)(nil)
	_ repository.MembershipRepository = (*MembershipRepo)(nil)
)

type state struct {
	units   map[string]entity.Unit
	members map[string]entity.Membership
}

func (st *state) clone() *state {
	return &state{
		units:   maps.Clone(st.units),
		members: maps.Clone(st.members),
	}
}

// Store persistencia en proceso para usuarios, unidades y membresías.
// Las transacciones de unidades se serializan con un único lock y se revierten restaurando una copia.
// Los usuarios tienen su propio lock: no participan de esas transacciones.
type Store struct {
	mu sync.Mutex
	st *state

	usersMu sync.Mutex
	users   map[string]entity.User // por email
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		st: &state{
			units:   make(map[string]entity.Unit),
			members: make(map[string]entity.Membership),
		},
		users: make(map[string]entity.User),
	}
}

// Users repositorio de usuarios.
func (s *Store) Users() *UserRepo { return &UserRepo{root: s} }

// Units repositorio de unidades fuera de transacción.
func (s *Store) Units() *UnitRepo { return &UnitRepo{mu: &s.mu, root: s} }

// Memberships repositorio de membresías fuera de transacción.
func (s *Store) Memberships() *MembershipRepo { return &MembershipRepo{mu: &s.mu, root: s} }

// Run ejecuta fn con repos atados a la transacción. Si fn falla no queda ningún cambio.
func (s *Store) Run(ctx context.Context, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&UnitRepo{root: s}, &MembershipRepo{root: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// RunLocked igual que Run (el lock global ya serializa todas las unidades), exige que la unidad exista.
func (s *Store) RunLocked(ctx context.Context, unitID string, fn func(units repository.UnitRepository, members repository.MembershipRepository) error) error {
	return s.Run(ctx, func(units repository.UnitRepository, members repository.MembershipRepository) error {
		u, err := units.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.ErrNotFound
		}
		return fn(units, members)
	})
}

// lock adquiere el lock solo fuera de transacción (mu == nil dentro de Run).
func lock(mu *sync.Mutex) func() {
	if mu == nil {
		return func() {}
	}
	mu.Lock()
	return mu.Unlock
}

// UserRepo adaptador en memoria de repository.UserRepository.
type UserRepo struct {
	root *Store
}

func (r *UserRepo) Create(_ context.Context, user *entity.User) error {
	r.root.usersMu.Lock()
	defer r.root.usersMu.Unlock()
	if _, ok := r.root.users[user.Email]; ok {
		return domain.ErrEmailAlreadyExists
	}
	r.root.users[user.Email] = *user
	return nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.root.usersMu.Lock()
	defer r.root.usersMu.Unlock()
	u, ok := r.root.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.root.usersMu.Lock()
	defer r.root.usersMu.Unlock()
	_, ok := r.root.users[email]
	return ok, nil
}

func (r *UserRepo) UpdatePassword(_ context.Context, email, passwordHash string) error {
	r.root.usersMu.Lock()
	defer r.root.usersMu.Unlock()
	u, ok := r.root.users[email]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.root.users[email] = u
	return nil
}

// UnitRepo adaptador en memoria de repository.UnitRepository.
type UnitRepo struct {
	mu   *sync.Mutex
	root *Store
}

func (r *UnitRepo) Create(_ context.Context, unit *entity.Unit) error {
	defer lock(r.mu)()
	r.root.st.units[unit.ID] = *unit
	return nil
}

func (r *UnitRepo) GetByID(_ context.Context, id string) (*entity.Unit, error) {
	defer lock(r.mu)()
	u, ok := r.root.st.units[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UnitRepo) Delete(_ context.Context, id string) error {
	defer lock(r.mu)()
	delete(r.root.st.units, id)
	return nil
}

// MembershipRepo adaptador en memoria de repository.MembershipRepository.
type MembershipRepo struct {
	mu   *sync.Mutex
	root *Store
}

func (r *MembershipRepo) Create(_ context.Context, m *entity.Membership) error {
	defer lock(r.mu)()
	for _, existing := range r.root.st.members {
		if existing.UnitID == m.UnitID && existing.Principal == m.Principal {
			return domain.ErrAlreadyMember
		}
	}
	r.root.st.members[m.ID] = *m
	return nil
}

func (r *MembershipRepo) GetByID(_ context.Context, id string) (*entity.Membership, error) {
	defer lock(r.mu)()
	m, ok := r.root.st.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MembershipRepo) GetByUnitAndPrincipal(_ context.Context, unitID, principal string) (*entity.Membership, error) {
	defer lock(r.mu)()
	for _, m := range r.root.st.members {
		if m.UnitID == unitID && m.Principal == principal {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MembershipRepo) ListByUnit(_ context.Context, unitID string) ([]*entity.Membership, error) {
	defer lock(r.mu)()
	var list []*entity.Membership
	for _, m := range r.root.st.members {
		m := m // per-iteration copy (go 1.21 loop semantics)
		if m.UnitID == unitID {
			list = append(list, &m)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list, nil
}

func (r *MembershipRepo) CountByRole(_ context.Context, unitID string, role entity.Role) (int, error) {
	defer lock(r.mu)()
	n := 0
	for _, m := range r.root.st.members {
		if m.UnitID == unitID && m.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *MembershipRepo) UpdateRole(_ context.Context, id string, role entity.Role) error {
	defer lock(r.mu)()
	m, ok := r.root.st.members[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Role = role
	r.root.st.members[id] = m
	return nil
}

func (r *MembershipRepo) Delete(_ context.Context, id string) error {
	defer lock(r.mu)()
	delete(r.root.st.members, id)
	return nil
}

func (r *MembershipRepo) DeleteByUnit(_ context.Context, unitID string) error {
	defer lock(r.mu)()
	for id, m := range r.root.st.members {
		if m.UnitID == unitID {
			delete(r.root.st.members, id)
		}
	}
	return nil
}
