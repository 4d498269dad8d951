package service

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/communication/internal/model"
	"github.com/emrgen/communication/internal/store"
)

// RolePolicy decides whether a user may see every communication regardless of
// email account ownership, the way email admins and system managers do.
type RolePolicy interface {
	IsPrivileged(ctx context.Context, user string) (bool, error)
}

// ReferenceChecker answers read-permission queries for the record a
// communication is filed against. The host application owns the records, so
// the check is delegated.
type ReferenceChecker interface {
	HasReadPermission(ctx context.Context, doctype, name, user string) (bool, error)
}

var _ RolePolicy = (*StaticRolePolicy)(nil)

// StaticRolePolicy grants privilege to a fixed set of users.
type StaticRolePolicy struct {
	privileged mapset.Set[string]
}

func NewStaticRolePolicy(users ...string) *StaticRolePolicy {
	return &StaticRolePolicy{privileged: mapset.NewSet(users...)}
}

func (p *StaticRolePolicy) IsPrivileged(ctx context.Context, user string) (bool, error) {
	return p.privileged.Contains(user), nil
}

type allowAllReferences struct{}

func (allowAllReferences) HasReadPermission(ctx context.Context, doctype, name, user string) (bool, error) {
	return true, nil
}

// scopeFor builds the list-permission scope of a user: privileged users see
// all, others see only their email accounts (or no email at all).
func (s *CommunicationService) scopeFor(ctx context.Context, user string) (store.PermissionScope, error) {
	privileged, err := s.roles.IsPrivileged(ctx, user)
	if err != nil {
		return store.PermissionScope{}, err
	}
	if privileged {
		return store.PermissionScope{Privileged: true}, nil
	}

	accounts, err := s.store.ListUserEmailAccounts(ctx, user)
	if err != nil {
		return store.PermissionScope{}, err
	}

	return store.PermissionScope{EmailAccounts: accounts}, nil
}

// HasReadPermission reports whether the user may read the communication. A
// communication filed against itself is never readable through its reference;
// one filed against another record inherits that record's read permission.
func (s *CommunicationService) HasReadPermission(ctx context.Context, comm *model.Communication, user string) (bool, error) {
	if comm.ReferenceDoctype == model.DoctypeCommunication && comm.ReferenceName == comm.ID {
		return false, nil
	}

	if comm.ReferenceDoctype != "" && comm.ReferenceName != "" {
		return s.refs.HasReadPermission(ctx, comm.ReferenceDoctype, comm.ReferenceName, user)
	}

	return user == comm.User, nil
}
