package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"community-chat/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository abstracts group persistence. Membership changes are single
// statements or transactions so concurrent requests and approvals never lose updates.
type GroupRepository interface {
	CreateGroup(ctx context.Context, draft models.GroupDraft) (models.ChatGroup, error)
	GetGroup(ctx context.Context, groupID int) (models.ChatGroup, error)
	ListGroups(ctx context.Context, filter models.GroupFilter) ([]models.ChatGroup, error)
	UpdateGroup(ctx context.Context, groupID int, patch models.GroupPatch) (models.ChatGroup, error)
	DeleteGroup(ctx context.Context, groupID int) (models.ChatGroup, error)
	IsParticipant(ctx context.Context, groupID int, userID int) (bool, error)
	AddJoinRequest(ctx context.Context, groupID int, userID int) (bool, error)
	ApproveJoinRequest(ctx context.Context, groupID int, userID int, actorID int) (bool, error)
	RejectJoinRequest(ctx context.Context, groupID int, userID int, actorID int) (bool, error)
	RemoveMember(ctx context.Context, groupID int, userID int) (bool, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, title, description, media_mimetype, media_filename, group_type, created_by, updated_by, created_at, updated_at`

type groupRow struct {
	ID            int            `db:"id"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	MediaMimeType sql.NullString `db:"media_mimetype"`
	MediaFilename sql.NullString `db:"media_filename"`
	GroupType     string         `db:"group_type"`
	CreatedBy     int            `db:"created_by"`
	UpdatedBy     sql.NullInt64  `db:"updated_by"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type relationRow struct {
	GroupID  int    `db:"group_id"`
	UserID   int    `db:"user_id"`
	Relation string `db:"relation"`
}

func (r groupRow) toModel() models.ChatGroup {
	group := models.ChatGroup{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		GroupType:   models.GroupType(r.GroupType),
		CreatedBy:   r.CreatedBy,
		UpdatedBy:   nullIntPtr(r.UpdatedBy),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Members:     []int{},
		Admins:      []int{},
		Requests:    []int{},
	}
	if r.MediaFilename.Valid {
		group.Media = &models.MediaRef{MimeType: r.MediaMimeType.String, Filename: r.MediaFilename.String}
	}
	return group
}

func applyRelation(group *models.ChatGroup, rel relationRow) {
	switch models.Relation(rel.Relation) {
	case models.RelationMember:
		group.Members = append(group.Members, rel.UserID)
	case models.RelationAdmin:
		group.Admins = append(group.Admins, rel.UserID)
	case models.RelationRequest:
		group.Requests = append(group.Requests, rel.UserID)
	}
}

// CreateGroup creates a group with the creator as admin, atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, draft models.GroupDraft) (models.ChatGroup, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatGroup{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	groupType := draft.GroupType
	if groupType == "" {
		groupType = models.GroupPrivate
	}

	var row groupRow
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chat_groups (title, description, group_type, created_by, updated_by)
        VALUES ($1, $2, $3, $4, $4) RETURNING `+groupColumns, draft.Title, draft.Description, string(groupType), draft.CreatedBy).
		StructScan(&row); err != nil {
		return models.ChatGroup{}, err
	}
	group := row.toModel()

	// the creator is an admin, not a plain member
	memberSet := map[int]struct{}{}
	for _, id := range draft.Members {
		if id != draft.CreatedBy {
			memberSet[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_relations (group_id, user_id, relation) VALUES ($1, $2, 'admin')`, group.ID, draft.CreatedBy); err != nil {
		return models.ChatGroup{}, err
	}
	group.Admins = append(group.Admins, draft.CreatedBy)
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO group_relations (group_id, user_id, relation) VALUES ($1, $2, 'member')`, group.ID, id); err != nil {
			return models.ChatGroup{}, err
		}
		group.Members = append(group.Members, id)
	}

	if err = tx.Commit(); err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// GetGroup fetches a group with its members, admins and pending requests.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	var row groupRow
	err := r.db.GetContext(ctx, &row, `SELECT `+groupColumns+` FROM chat_groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	if err != nil {
		return models.ChatGroup{}, err
	}
	groups, err := r.withRelations(ctx, []groupRow{row})
	if err != nil {
		return models.ChatGroup{}, err
	}
	return groups[0], nil
}

// ListGroups returns the groups visible under the filter.
func (r *GroupRepo) ListGroups(ctx context.Context, filter models.GroupFilter) ([]models.ChatGroup, error) {
	var where whereBuilder
	if !filter.All {
		userArg := where.next(filter.UserID)
		visibility := `id IN (SELECT group_id FROM group_relations WHERE user_id=` + userArg + ` AND relation IN ('member', 'admin'))`
		if filter.IncludePublic {
			visibility = `(group_type = 'public' OR ` + visibility + `)`
		}
		where.raw(visibility)
	}
	if filter.Search != "" {
		where.add("title ILIKE '%%' || $%d || '%%'", filter.Search)
	}
	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `SELECT ` + groupColumns + ` FROM chat_groups` + where.String() +
		` ORDER BY created_at DESC, id DESC LIMIT ` + where.next(limit) + ` OFFSET ` + where.next(offset)

	var rows []groupRow
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	return r.withRelations(ctx, rows)
}

// UpdateGroup applies a patch to the group's descriptive fields.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, patch models.GroupPatch) (models.ChatGroup, error) {
	var groupType *string
	if patch.GroupType != nil {
		v := string(*patch.GroupType)
		groupType = &v
	}
	var row groupRow
	err := r.db.QueryRowxContext(ctx, `UPDATE chat_groups SET
            title = COALESCE($2, title),
            description = COALESCE($3, description),
            group_type = COALESCE($4, group_type),
            updated_by = $5,
            updated_at = NOW()
        WHERE id=$1 RETURNING `+groupColumns, groupID, patch.Title, patch.Description, groupType, patch.UpdatedBy).
		StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	if err != nil {
		return models.ChatGroup{}, err
	}
	groups, err := r.withRelations(ctx, []groupRow{row})
	if err != nil {
		return models.ChatGroup{}, err
	}
	return groups[0], nil
}

// DeleteGroup removes the group and the message notifications scoped to it.
// Relations and messages go with the group through ON DELETE CASCADE.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID int) (models.ChatGroup, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return models.ChatGroup{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatGroup{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_notifications WHERE type='message' AND group_id=$1`, groupID); err != nil {
		return models.ChatGroup{}, err
	}
	var res sql.Result
	if res, err = tx.ExecContext(ctx, `DELETE FROM chat_groups WHERE id=$1`, groupID); err != nil {
		return models.ChatGroup{}, err
	}
	var count int64
	if count, err = res.RowsAffected(); err != nil {
		return models.ChatGroup{}, err
	}
	if count == 0 {
		err = ErrGroupNotFound
		return models.ChatGroup{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// IsParticipant reports whether the user is a member or admin.
func (r *GroupRepo) IsParticipant(ctx context.Context, groupID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_relations
        WHERE group_id=$1 AND user_id=$2 AND relation IN ('member', 'admin'))`, groupID, userID)
	return exists, err
}

// AddJoinRequest inserts a request row only when the user has no relation to
// the group. It reports whether a row was inserted.
func (r *GroupRepo) AddJoinRequest(ctx context.Context, groupID int, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO group_relations (group_id, user_id, relation)
        SELECT $1, $2, 'request'
        WHERE EXISTS (SELECT 1 FROM chat_groups WHERE id=$1)
        AND NOT EXISTS (SELECT 1 FROM group_relations WHERE group_id=$1 AND user_id=$2)
        ON CONFLICT DO NOTHING`, groupID, userID)
	return affected(res, err)
}

// ApproveJoinRequest turns a pending request into membership and marks every
// pending request notification for the pair approved, in one transaction. It
// reports false when no request was pending.
func (r *GroupRepo) ApproveJoinRequest(ctx context.Context, groupID int, userID int, actorID int) (bool, error) {
	return r.resolveJoinRequest(ctx, groupID, userID, actorID, models.RequestApproved)
}

// RejectJoinRequest drops a pending request and marks its notifications
// rejected, in one transaction. It reports false when no request was pending.
func (r *GroupRepo) RejectJoinRequest(ctx context.Context, groupID int, userID int, actorID int) (bool, error) {
	return r.resolveJoinRequest(ctx, groupID, userID, actorID, models.RequestRejected)
}

func (r *GroupRepo) resolveJoinRequest(ctx context.Context, groupID, userID, actorID int, status models.RequestStatus) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	removed, err := affected(tx.ExecContext(ctx, `DELETE FROM group_relations WHERE group_id=$1 AND user_id=$2 AND relation='request'`, groupID, userID))
	if err != nil || !removed {
		return false, err
	}
	if status == models.RequestApproved {
		if _, err := tx.ExecContext(ctx, `INSERT INTO group_relations (group_id, user_id, relation) VALUES ($1, $2, 'member')
        ON CONFLICT DO NOTHING`, groupID, userID); err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chat_groups SET updated_at=NOW() WHERE id=$1`, groupID); err != nil {
			return false, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_notifications SET request_status=$3, updated_by=$4, updated_at=NOW()
        WHERE type='request' AND group_id=$1 AND sender_id=$2 AND request_status='pending'`,
		groupID, userID, string(status), actorID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveMember removes the user from the group's members.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID int, userID int) (bool, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM group_relations WHERE group_id=$1 AND user_id=$2 AND relation='member'`, groupID, userID))
}

func (r *GroupRepo) withRelations(ctx context.Context, rows []groupRow) ([]models.ChatGroup, error) {
	groups := make([]models.ChatGroup, 0, len(rows))
	if len(rows) == 0 {
		return groups, nil
	}
	index := make(map[int]int, len(rows))
	ids := make([]int64, 0, len(rows))
	for i, row := range rows {
		groups = append(groups, row.toModel())
		index[row.ID] = i
		ids = append(ids, int64(row.ID))
	}

	var rels []relationRow
	if err := r.db.SelectContext(ctx, &rels, `SELECT group_id, user_id, relation FROM group_relations
        WHERE group_id = ANY($1) ORDER BY group_id, user_id`, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, rel := range rels {
		if i, ok := index[rel.GroupID]; ok {
			applyRelation(&groups[i], rel)
		}
	}
	return groups, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
