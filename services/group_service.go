package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
	"github.com/Dosada05/mahjong-league/storage"
	"github.com/google/uuid"
)

var allowedLogoContentTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

type GroupService interface {
	CreateGroup(ctx context.Context, ownerID int, name string) (*models.Group, error)
	GetGroup(ctx context.Context, groupID int) (*models.Group, error)
	JoinGroup(ctx context.Context, groupID, userID int) error
	LeaveGroup(ctx context.Context, groupID, userID int) error
	ListMembers(ctx context.Context, groupID, actorID int) ([]*models.GroupMember, error)
	UpdateMemberRole(ctx context.Context, groupID, userID int, role models.GroupRole, actorID int) error
	RemoveMember(ctx context.Context, groupID, userID, actorID int) error
	UploadLogo(ctx context.Context, groupID, actorID int, contentType string, file io.Reader) (*models.Group, error)
}

type groupService struct {
	groups   repositories.GroupRepository
	members  repositories.GroupMemberRepository
	users    repositories.UserRepository
	uploader storage.FileUploader
	auth     groupAuth
}

func NewGroupService(
	groups repositories.GroupRepository,
	members repositories.GroupMemberRepository,
	users repositories.UserRepository,
	uploader storage.FileUploader,
) GroupService {
	return &groupService{
		groups:   groups,
		members:  members,
		users:    users,
		uploader: uploader,
		auth:     groupAuth{groups: groups, members: members},
	}
}

// CreateGroup registers a new group; the creator joins as admin right away.
func (s *groupService) CreateGroup(ctx context.Context, ownerID int, name string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	group := &models.Group{Name: name, OwnerID: ownerID}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	member := &models.GroupMember{GroupID: group.ID, UserID: ownerID, Role: models.GroupRoleAdmin}
	if err := s.members.Add(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add group owner as member: %w", err)
	}
	return group, nil
}

func (s *groupService) GetGroup(ctx context.Context, groupID int) (*models.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	s.populateLogoURL(group)
	return group, nil
}

func (s *groupService) JoinGroup(ctx context.Context, groupID, userID int) error {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return err
	}
	member := &models.GroupMember{GroupID: groupID, UserID: userID, Role: models.GroupRoleMember}
	if err := s.members.Add(ctx, member); err != nil {
		if errors.Is(err, repositories.ErrGroupMemberConflict) {
			return ErrAlreadyGroupMember
		}
		return err
	}
	return nil
}

func (s *groupService) LeaveGroup(ctx context.Context, groupID, userID int) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == userID {
		return fmt.Errorf("%w: the group owner cannot leave", ErrForbiddenOperation)
	}
	if err := s.members.Remove(ctx, groupID, userID); err != nil {
		if errors.Is(err, repositories.ErrGroupMemberNotFound) {
			return ErrNotGroupMember
		}
		return err
	}
	return nil
}

func (s *groupService) ListMembers(ctx context.Context, groupID, actorID int) ([]*models.GroupMember, error) {
	if err := s.auth.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	members, err := s.members.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return members, nil
	}
	byID := make(map[int]*models.User, len(users))
	for _, u := range users {
		u.PasswordHash = ""
		byID[u.ID] = u
	}
	for _, m := range members {
		m.User = byID[m.UserID]
	}
	return members, nil
}

func (s *groupService) UpdateMemberRole(ctx context.Context, groupID, userID int, role models.GroupRole, actorID int) error {
	if role != models.GroupRoleAdmin && role != models.GroupRoleMember {
		return fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if group.OwnerID == userID && role != models.GroupRoleAdmin {
		return fmt.Errorf("%w: the group owner keeps the admin role", ErrForbiddenOperation)
	}
	if err := s.members.UpdateRole(ctx, groupID, userID, role); err != nil {
		if errors.Is(err, repositories.ErrGroupMemberNotFound) {
			return ErrNotGroupMember
		}
		return err
	}
	return nil
}

func (s *groupService) RemoveMember(ctx context.Context, groupID, userID, actorID int) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if group.OwnerID == userID {
		return fmt.Errorf("%w: the group owner cannot be removed", ErrForbiddenOperation)
	}
	if err := s.members.Remove(ctx, groupID, userID); err != nil {
		if errors.Is(err, repositories.ErrGroupMemberNotFound) {
			return ErrNotGroupMember
		}
		return err
	}
	return nil
}

// UploadLogo stores the image in the object store, swaps the group's logo
// key and removes the previous object best effort.
func (s *groupService) UploadLogo(ctx context.Context, groupID, actorID int, contentType string, file io.Reader) (*models.Group, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	ext, ok := allowedLogoContentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported logo content type %q", ErrValidationFailed, contentType)
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrForbiddenOperation)
	}

	key := fmt.Sprintf("groups/%d/logo-%s.%s", groupID, uuid.NewString(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload group logo: %w", err)
	}
	if err := s.groups.UpdateLogoKey(ctx, groupID, &result.Key); err != nil {
		return nil, err
	}

	if group.LogoKey != nil && *group.LogoKey != result.Key {
		// Осиротевший объект в бакете не критичен.
		_ = s.uploader.Delete(ctx, *group.LogoKey)
	}

	group.LogoKey = &result.Key
	s.populateLogoURL(group)
	return group, nil
}

func (s *groupService) populateLogoURL(group *models.Group) {
	if s.uploader == nil || group.LogoKey == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*group.LogoKey); url != "" {
		group.LogoURL = &url
	}
}
