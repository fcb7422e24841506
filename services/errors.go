package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed    = errors.New("validation failed")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrGroupNameRequired   = errors.New("group name is required")
	ErrSeatsFull           = errors.New("all seats of the game are already taken")
	ErrGameNotUpdatable    = errors.New("game can no longer be updated")
	ErrGameStillInProgress = errors.New("game is still in progress")
	ErrVariantDisabled     = errors.New("game variant is not enabled by the season rules")
	ErrRulesInvalid        = errors.New("season rule set is invalid")

	// Ошибки конфликтов
	ErrStaleReversal        = errors.New("later point changes exist, settlement cannot be reverted")
	ErrAnotherSeasonRunning = errors.New("group already has a running season")
	ErrSeasonInvalidState   = errors.New("invalid season state transition")
	ErrSeasonCodeConflict   = errors.New("season code already used in this group")
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrAlreadyGroupMember   = errors.New("user is already a member of the group")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrNotGroupMember       = errors.New("user is not a member of the group")

	// Ошибки, специфичные для сущностей (могут дублировать ErrNotFound, но дают больше контекста)
	ErrUserNotFound   = errors.New("user not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrGameNotFound   = errors.New("game not found")
	ErrSeasonNotFound = errors.New("season not found")
	ErrNoSuchRecord   = errors.New("player has no record in this game")
)
