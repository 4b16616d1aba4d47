package projects

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
	"github.com/shared-wheels/carpool-ledger-api/internal/ledger"
	"github.com/shared-wheels/carpool-ledger-api/internal/platform/keylock"
	clockport "github.com/shared-wheels/carpool-ledger-api/internal/ports/out/clock"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

// Service owns project lifecycle and membership: create, join, leave, delete.
type Service struct {
	store treestore.Store
	locks *keylock.Keyed
	clk   clockport.Clock

	newProjectID func() domain.ProjectID
}

func NewService(store treestore.Store, locks *keylock.Keyed, clk clockport.Clock) *Service {
	return &Service{
		store: store,
		locks: locks,
		clk:   clk,
		newProjectID: func() domain.ProjectID {
			return domain.ProjectID(uuid.NewString())
		},
	}
}

// SetNewProjectIDForTest overrides project ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewProjectIDForTest(fn func() domain.ProjectID) {
	if fn != nil {
		s.newProjectID = fn
	}
}

// memberLockKey scopes a lock to one member. Membership moves (create, join,
// leave) serialize on this key so a member cannot concurrently enter two
// projects: the at-most-one-project check and the apply happen under it.
// The member lock is always acquired before the project lock.
func memberLockKey(id domain.MemberID) string {
	return "member/" + string(id)
}

// CreateProjectAndAssign creates a project and registers the caller as its
// first member with the admin role and zero aggregates.
func (s *Service) CreateProjectAndAssign(ctx context.Context, caller domain.MemberID, in CreateProjectInput) (domain.Project, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	if name == "" {
		return domain.Project{}, errValidation("invalid name", map[string]any{"name": "must be non-empty"})
	}
	if strings.TrimSpace(in.Password) == "" {
		return domain.Project{}, errValidation("invalid password", map[string]any{"password": "must be non-empty"})
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return domain.Project{}, errValidation("invalid date range", map[string]any{"endDate": "must be on or after startDate"})
	}

	s.locks.Lock(memberLockKey(caller))
	defer s.locks.Unlock(memberLockKey(caller))

	if _, ok, err := s.membershipOf(ctx, caller); err != nil {
		return domain.Project{}, err
	} else if ok {
		return domain.Project{}, errAlreadyInProject()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Project{}, fmt.Errorf("hash project password: %w", err)
	}

	now := s.clk.Now()
	rec := ledger.ProjectRecord{
		ID:           s.newProjectID(),
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		PasswordHash: string(hash),
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Members:      map[domain.MemberID]bool{caller: true},
		CreatedAt:    now,
	}
	membership := ledger.MembershipRecord{
		ProjectID: rec.ID,
		Role:      domain.RoleAdmin,
		JoinedAt:  now,
	}

	err = s.store.Apply(ctx,
		treestore.Write{Path: ledger.ProjectPath(rec.ID), Value: rec},
		treestore.Write{Path: ledger.MembershipPath(caller), Value: membership},
	)
	if err != nil {
		return domain.Project{}, err
	}
	return rec.Domain(), nil
}

// JoinProject checks the supplied password against the project credential and
// registers the caller with the user role and zero aggregates. Joining a
// project the caller already belongs to is a no-op.
func (s *Service) JoinProject(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID, password string) (domain.Project, error) {
	s.locks.Lock(memberLockKey(caller))
	defer s.locks.Unlock(memberLockKey(caller))
	s.locks.Lock(string(projectID))
	defer s.locks.Unlock(string(projectID))

	var rec ledger.ProjectRecord
	ok, err := s.store.Get(ctx, ledger.ProjectPath(projectID), &rec)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, errProjectNotFound()
	}

	if m, ok, err := s.membershipOf(ctx, caller); err != nil {
		return domain.Project{}, err
	} else if ok {
		if m.ProjectID == projectID {
			return rec.Domain(), nil
		}
		return domain.Project{}, errAlreadyInProject()
	}

	if len(rec.Members) >= domain.MaxProjectMembers {
		return domain.Project{}, errProjectFull()
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return domain.Project{}, errInvalidPassword()
	}

	if rec.Members == nil {
		rec.Members = make(map[domain.MemberID]bool, 1)
	}
	rec.Members[caller] = true
	membership := ledger.MembershipRecord{
		ProjectID: projectID,
		Role:      domain.RoleUser,
		JoinedAt:  s.clk.Now(),
	}

	err = s.store.Apply(ctx,
		treestore.Write{Path: ledger.ProjectPath(projectID), Value: rec},
		treestore.Write{Path: ledger.MembershipPath(caller), Value: membership},
	)
	if err != nil {
		return domain.Project{}, err
	}
	return rec.Domain(), nil
}

// LeaveProject removes the caller's membership and the caller's entry in the
// project member set. It is idempotent and clears each side independently, so
// a dangling member-set entry is cleaned up even when the membership record
// is gone or points elsewhere. Accrued kms stay in the project totals.
func (s *Service) LeaveProject(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID) error {
	s.locks.Lock(memberLockKey(caller))
	defer s.locks.Unlock(memberLockKey(caller))
	s.locks.Lock(string(projectID))
	defer s.locks.Unlock(string(projectID))

	var writes []treestore.Write

	m, ok, err := s.membershipOf(ctx, caller)
	if err != nil {
		return err
	}
	if ok && m.ProjectID == projectID {
		writes = append(writes, treestore.Remove(ledger.MembershipPath(caller)))
	}

	var rec ledger.ProjectRecord
	ok, err = s.store.Get(ctx, ledger.ProjectPath(projectID), &rec)
	if err != nil {
		return err
	}
	if ok && rec.Members[caller] {
		delete(rec.Members, caller)
		writes = append(writes, treestore.Write{Path: ledger.ProjectPath(projectID), Value: rec})
	}

	if len(writes) == 0 {
		return nil
	}
	return s.store.Apply(ctx, writes...)
}

// DeleteProject removes the project, all its trips and tickets, and every
// member's membership record in one multi-path apply, so a failure leaves
// nothing half-deleted. Only the project admin may delete.
func (s *Service) DeleteProject(ctx context.Context, caller domain.MemberID, projectID domain.ProjectID) error {
	s.locks.Lock(string(projectID))
	defer s.locks.Unlock(string(projectID))

	var rec ledger.ProjectRecord
	ok, err := s.store.Get(ctx, ledger.ProjectPath(projectID), &rec)
	if err != nil {
		return err
	}
	if !ok {
		return errProjectNotFound()
	}

	m, ok, err := s.membershipOf(ctx, caller)
	if err != nil {
		return err
	}
	if !ok || m.ProjectID != projectID || m.Role != domain.RoleAdmin {
		return errNotProjectAdmin()
	}

	writes := []treestore.Write{
		treestore.Remove(ledger.ProjectPath(projectID)),
		treestore.Remove(ledger.TripsPath(projectID)),
		treestore.Remove(ledger.TicketsPath(projectID)),
	}
	for memberID := range rec.Members {
		writes = append(writes, treestore.Remove(ledger.MembershipPath(memberID)))
	}
	return s.store.Apply(ctx, writes...)
}

// Project returns a project by id.
func (s *Service) Project(ctx context.Context, projectID domain.ProjectID) (domain.Project, error) {
	var rec ledger.ProjectRecord
	ok, err := s.store.Get(ctx, ledger.ProjectPath(projectID), &rec)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, errProjectNotFound()
	}
	return rec.Domain(), nil
}

// ProjectForMember returns the project the caller currently belongs to.
// The second return is false when the caller is in no project.
func (s *Service) ProjectForMember(ctx context.Context, caller domain.MemberID) (domain.Project, bool, error) {
	m, ok, err := s.membershipOf(ctx, caller)
	if err != nil || !ok {
		return domain.Project{}, false, err
	}

	var rec ledger.ProjectRecord
	ok, err = s.store.Get(ctx, ledger.ProjectPath(m.ProjectID), &rec)
	if err != nil {
		return domain.Project{}, false, err
	}
	if !ok {
		// Dangling membership; treat as not in a project.
		return domain.Project{}, false, nil
	}
	return rec.Domain(), true, nil
}

// Membership returns the caller's membership record.
func (s *Service) Membership(ctx context.Context, caller domain.MemberID) (domain.Membership, bool, error) {
	m, ok, err := s.membershipOf(ctx, caller)
	if err != nil || !ok {
		return domain.Membership{}, false, err
	}
	return m.Domain(caller), true, nil
}

// Members lists the project's members with their accrued aggregates, ordered
// by accrued kms descending. Profiles are fetched concurrently.
func (s *Service) Members(ctx context.Context, projectID domain.ProjectID) ([]MemberStanding, error) {
	s.locks.RLock(string(projectID))
	defer s.locks.RUnlock(string(projectID))

	var rec ledger.ProjectRecord
	ok, err := s.store.Get(ctx, ledger.ProjectPath(projectID), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errProjectNotFound()
	}

	ids := make([]domain.MemberID, 0, len(rec.Members))
	for id := range rec.Members {
		ids = append(ids, id)
	}

	out := make([]MemberStanding, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			standing, err := s.standingOf(gctx, id)
			if err != nil {
				return err
			}
			out[i] = standing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Membership, out[j].Membership
		if a.KmsAccrued != b.KmsAccrued {
			return a.KmsAccrued > b.KmsAccrued
		}
		return out[i].Member.ID < out[j].Member.ID
	})
	return out, nil
}

func (s *Service) standingOf(ctx context.Context, id domain.MemberID) (MemberStanding, error) {
	var member ledger.MemberRecord
	if _, err := s.store.Get(ctx, ledger.MemberPath(id), &member); err != nil {
		return MemberStanding{}, err
	}
	var membership ledger.MembershipRecord
	if _, err := s.store.Get(ctx, ledger.MembershipPath(id), &membership); err != nil {
		return MemberStanding{}, err
	}
	return MemberStanding{
		Member: domain.Member{
			ID:          id,
			DisplayName: member.DisplayName,
			Email:       member.Email,
		},
		Membership: membership.Domain(id),
	}, nil
}

func (s *Service) membershipOf(ctx context.Context, id domain.MemberID) (ledger.MembershipRecord, bool, error) {
	var m ledger.MembershipRecord
	ok, err := s.store.Get(ctx, ledger.MembershipPath(id), &m)
	if err != nil {
		return ledger.MembershipRecord{}, false, err
	}
	return m, ok, nil
}
